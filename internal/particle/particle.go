// Package particle defines the plain-data model shared by the Work Pool,
// Particle Store, and Output Sink: a particle's physical state, its
// injection-order tag, and the lifecycle status a slot can hold.
package particle

import "github.com/go-gl/mathgl/mgl32"

// Status is the lifecycle state of a Particle Store slot.
type Status uint8

const (
	// StatusEmpty marks a slot with no particle.
	StatusEmpty Status = iota
	// StatusAlive marks a slot mid-walk, eligible for the next physics event.
	StatusAlive
	// StatusDetected marks a slot that crossed a detector surface and is
	// waiting to be flushed.
	StatusDetected
	// StatusTerminated marks a slot whose particle fell below the energy
	// threshold or left the domain; terminated slots are freed immediately.
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusAlive:
		return "alive"
	case StatusDetected:
		return "detected"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// VacuumMaterial is the sentinel material id meaning "no material", i.e.
// vacuum.
const VacuumMaterial int32 = -1

// Tag is the 32-bit identity assigned by the orchestrator at injection: the
// index of the primary in the input primaries array. It is the sole key
// correlating a detected record back to pixel coordinates after output.
type Tag uint32

// Particle is one electron's physical state at a point in its random walk.
type Particle struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3 // unit vector
	Energy    float32    // kinetic energy, in the same units as material barriers
	Material  int32       // current material id, or VacuumMaterial
}

// Pixel is the (x, y) coordinate a primary maps to, used only to stamp
// detected records on output; it carries no simulation semantics.
type Pixel struct {
	X, Y int32
}

// Record is one detected-electron output record. Its written layout is
// 7 float32 + 2 int32 (position, direction, energy, pixel), as described
// for the Output Sink; Tag is kept in memory only and is not written.
type Record struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Energy    float32
	Pixel     Pixel
	Tag       Tag
}
