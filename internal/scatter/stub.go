package scatter

import "github.com/go-gl/mathgl/mgl32"

// DeterministicStub is a fixed, non-random Rng for Dispatcher.Step unit
// tests: it always draws the same free-path fraction and the same outgoing
// direction, so a step's outcome is reproducible. The drivers in
// internal/driver do not take an Rng from the caller; they build their
// own seeded workerRng, so driver-level runs are reproduced by seed only.
type DeterministicStub struct {
	// Fraction is returned by Float32; it controls the sampled free path
	// via freePath's -ln(u) transform. A value close to 1 keeps the
	// sampled distance short; a small positive value makes it long.
	Fraction float32
	// Direction is returned by UnitVec3 for every call.
	Direction mgl32.Vec3
}

func (s DeterministicStub) Float32() float32 {
	if s.Fraction <= 0 {
		return 0.5
	}
	return s.Fraction
}

func (s DeterministicStub) UnitVec3() mgl32.Vec3 {
	if s.Direction == (mgl32.Vec3{}) {
		return mgl32.Vec3{0, 0, 1}
	}
	return s.Direction.Normalize()
}
