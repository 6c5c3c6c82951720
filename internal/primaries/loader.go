package primaries

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/particle"
)

// ErrInputMissing marks a primaries file that is absent or empty, the
// InputMissing error kind of spec.md §7.
var ErrInputMissing = errors.New("primaries: input missing or empty")

// entryRecordSize is this package's own choice of on-disk (particle,
// pixel) pair layout: position (3), direction (3), energy (1), initial
// material id as a float32 — mirroring internal/outsink's record shape —
// followed by the pixel's two int32 coordinates. As with
// internal/geometry's loader, the exact byte layout is unspecified by
// spec.md §1; only the loader's §6 contract (empty file is an error,
// AABB rejection) is spec'd.
const entryRecordSize = 7*4 + 2*4

// Load reads a primaries file in this package's binary layout into
// parallel particle/pixel slices, still including out-of-bounds entries;
// callers apply RejectOutOfBounds separately per spec.md §4.5 step 4.
func Load(path string) ([]particle.Particle, []particle.Pixel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("primaries: %s: %w", path, ErrInputMissing)
		}
		return nil, nil, fmt.Errorf("primaries: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("primaries: %s: %w", path, ErrInputMissing)
	}
	if len(data)%entryRecordSize != 0 {
		return nil, nil, fmt.Errorf("primaries: %s: truncated entry record", path)
	}

	n := len(data) / entryRecordSize
	particles := make([]particle.Particle, n)
	pixels := make([]particle.Pixel, n)
	for i := 0; i < n; i++ {
		rec := data[i*entryRecordSize : (i+1)*entryRecordSize]
		getFloat := func(off int) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(rec[off : off+4]))
		}
		particles[i] = particle.Particle{
			Position:  mgl32.Vec3{getFloat(0), getFloat(4), getFloat(8)},
			Direction: mgl32.Vec3{getFloat(12), getFloat(16), getFloat(20)},
			Energy:    getFloat(24),
			Material:  int32(getFloat(28)),
		}
		pixels[i] = particle.Pixel{
			X: int32(binary.LittleEndian.Uint32(rec[32:36])),
			Y: int32(binary.LittleEndian.Uint32(rec[36:40])),
		}
	}
	return particles, pixels, nil
}
