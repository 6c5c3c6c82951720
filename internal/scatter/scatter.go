// Package scatter selects and applies the next physics event for a live
// particle: elastic, inelastic, or boundary. Per the tagged-variant design
// note, dispatch is a closed switch over a small enum rather than a
// compile-time generic, since the dispatch cost is amortised over many
// events per particle.
package scatter

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/intersect"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/particle"
)

// EventKind is the closed set of physics events a single do_iteration step
// can produce for one slot.
type EventKind int

const (
	EventElastic EventKind = iota
	EventInelastic
	EventBoundary
)

// Outcome carries the updated particle state and the terminal status a
// dispatcher step produced, if any. StatusAlive means the particle
// continues; any other status means the caller must retire the slot.
type Outcome struct {
	Particle particle.Particle
	Status   particle.Status
	Pixel    particle.Pixel
}

// Rng is the minimal random source a Dispatcher needs: a uniform [0,1)
// draw and a unit-sphere direction draw. Physics coefficient sampling and
// RNG engine selection are out of scope per spec §1; callers inject their
// own source through this interface.
type Rng interface {
	Float32() float32
	UnitVec3() mgl32.Vec3
}

// Dispatcher applies one physics event per call, grounded on the tagged
// dispatch the design notes call for.
type Dispatcher struct {
	Materials []material.Material
	EnergyThr float32
}

// triangleView mirrors geometry.Triangle's fields the dispatcher reads,
// avoiding a dependency from scatter on geometry's concrete type.
type triangleView struct {
	MaterialIn  int32
	MaterialOut int32
	IsDetector  bool
}

// TriangleView builds a dispatcher-facing view from a geometry triangle's
// fields. Callers in internal/driver pass the result of this constructor.
func TriangleView(materialIn, materialOut int32, isDetector bool) triangleView {
	return triangleView{MaterialIn: materialIn, MaterialOut: materialOut, IsDetector: isDetector}
}

// Step advances p by exactly one physics event using rng for sampling.
// hit is the Intersector's result for p's current position and direction;
// callers run the Intersector themselves since it needs the geometry
// handle's concrete type.
func (d *Dispatcher) Step(p particle.Particle, hit intersect.Hit, hasHit bool, tri triangleView, rng Rng) Outcome {
	if !hasHit {
		return Outcome{Particle: p, Status: particle.StatusTerminated}
	}

	mat, ok := d.materialFor(p.Material)
	if !ok {
		// No physics bound to vacuum; a hit in vacuum can only be a
		// boundary crossing into a material or a detector.
		return d.boundary(p, hit, tri)
	}

	kind, dist := d.selectKind(mat, hit.Distance, rng)
	switch kind {
	case EventElastic:
		return d.elastic(p, dist, rng)
	case EventInelastic:
		return d.inelastic(p, mat, dist, rng)
	default:
		return d.boundary(p, hit, tri)
	}
}

func (d *Dispatcher) materialFor(id int32) (material.Material, bool) {
	if id == particle.VacuumMaterial || id < 0 || int(id) >= len(d.Materials) {
		return material.Material{}, false
	}
	return d.Materials[id], true
}

// selectKind decides whether the particle reaches the next boundary before
// its next scatter event, by comparing the boundary distance against an
// exponentially-sampled free path per candidate scatter model, returning
// the winning event along with the distance the particle travels before it.
func (d *Dispatcher) selectKind(mat material.Material, boundaryDist float32, rng Rng) (EventKind, float32) {
	elastic, hasElastic := mat.ModelByKind(material.Elastic)
	inelastic, hasInelastic := mat.ModelByKind(material.Inelastic)

	bestKind := EventBoundary
	bestDist := boundaryDist

	if hasElastic {
		if dist := freePath(elastic.MeanFreePath, rng); dist < bestDist {
			bestDist, bestKind = dist, EventElastic
		}
	}
	if hasInelastic {
		if dist := freePath(inelastic.MeanFreePath, rng); dist < bestDist {
			bestDist, bestKind = dist, EventInelastic
		}
	}
	return bestKind, bestDist
}

func freePath(meanFreePath float32, rng Rng) float32 {
	if meanFreePath <= 0 {
		return float32(math.MaxFloat32)
	}
	u := rng.Float32()
	if u <= 0 {
		u = 1e-7
	}
	return -meanFreePath * float32(math.Log(float64(u)))
}

func (d *Dispatcher) elastic(p particle.Particle, dist float32, rng Rng) Outcome {
	p.Position = p.Position.Add(p.Direction.Mul(dist))
	p.Direction = rng.UnitVec3()
	return Outcome{Particle: p, Status: particle.StatusAlive}
}

func (d *Dispatcher) inelastic(p particle.Particle, mat material.Material, dist float32, rng Rng) Outcome {
	p.Position = p.Position.Add(p.Direction.Mul(dist))
	model, _ := mat.ModelByKind(material.Inelastic)
	p.Energy -= p.Energy * model.EnergyLoss
	p.Direction = rng.UnitVec3()
	if p.Energy < d.EnergyThr {
		return Outcome{Particle: p, Status: particle.StatusTerminated}
	}
	return Outcome{Particle: p, Status: particle.StatusAlive}
}

func (d *Dispatcher) boundary(p particle.Particle, hit intersect.Hit, tri triangleView) Outcome {
	p.Position = p.Position.Add(p.Direction.Mul(hit.Distance))

	if tri.IsDetector {
		return Outcome{Particle: p, Status: particle.StatusDetected}
	}

	next := tri.MaterialOut
	if p.Material == tri.MaterialOut {
		next = tri.MaterialIn
	}

	if next == particle.VacuumMaterial {
		if cur, ok := d.materialFor(p.Material); ok && p.Energy < cur.Barrier {
			return Outcome{Particle: p, Status: particle.StatusTerminated}
		}
	}

	p.Material = next
	return Outcome{Particle: p, Status: particle.StatusAlive}
}
