package driver

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// workerRng adapts a *rand.Rand (RNG engine selection is out of scope per
// spec §1) to scatter.Rng. Each parallel worker owns a distinct instance
// so no synchronisation is needed across goroutines.
type workerRng struct {
	r *rand.Rand
}

func newWorkerRng(seed int64) workerRng {
	return workerRng{r: rand.New(rand.NewSource(seed))}
}

func (w workerRng) Float32() float32 {
	return w.r.Float32()
}

// UnitVec3 samples a uniformly distributed point on the unit sphere via
// the standard two-parameter transform, avoiding the polar clustering a
// naive per-axis uniform sample would produce.
func (w workerRng) UnitVec3() mgl32.Vec3 {
	u := w.r.Float64()
	v := w.r.Float64()
	theta := 2 * math.Pi * u
	phi := math.Acos(2*v - 1)
	sinPhi := math.Sin(phi)
	return mgl32.Vec3{
		float32(sinPhi * math.Cos(theta)),
		float32(sinPhi * math.Sin(theta)),
		float32(math.Cos(phi)),
	}
}
