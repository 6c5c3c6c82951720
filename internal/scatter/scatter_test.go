package scatter

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/intersect"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/particle"
)

func TestStepNoHitTerminates(t *testing.T) {
	d := &Dispatcher{EnergyThr: 1}
	p := particle.Particle{Energy: 10, Material: particle.VacuumMaterial}

	out := d.Step(p, intersect.Hit{}, false, triangleView{}, DeterministicStub{})
	if out.Status != particle.StatusTerminated {
		t.Fatalf("Status = %v, want Terminated", out.Status)
	}
}

func TestStepBoundaryIntoDetectorDetects(t *testing.T) {
	d := &Dispatcher{EnergyThr: 1}
	p := particle.Particle{Energy: 10, Material: particle.VacuumMaterial, Direction: mgl32.Vec3{0, 0, 1}}
	tri := TriangleView(particle.VacuumMaterial, 0, true)

	out := d.Step(p, intersect.Hit{Distance: 5}, true, tri, DeterministicStub{})
	if out.Status != particle.StatusDetected {
		t.Fatalf("Status = %v, want Detected", out.Status)
	}
}

func TestStepBoundaryBelowBarrierIntoVacuumTerminates(t *testing.T) {
	mat := material.Flat("absorber", 20, 0.5)
	mat.Models[0].MeanFreePath = 1e9 // force the boundary to win
	mat.Models[1].MeanFreePath = 1e9
	d := &Dispatcher{Materials: []material.Material{mat}, EnergyThr: 1}
	p := particle.Particle{Energy: 5, Material: 0, Direction: mgl32.Vec3{0, 0, 1}}
	tri := TriangleView(0, particle.VacuumMaterial, false)

	out := d.Step(p, intersect.Hit{Distance: 3}, true, tri, DeterministicStub{})
	if out.Status != particle.StatusTerminated {
		t.Fatalf("Status = %v, want Terminated (below barrier into vacuum)", out.Status)
	}
}

func TestStepInelasticBelowThresholdTerminates(t *testing.T) {
	mat := material.Flat("absorber", 0, 0.99)
	d := &Dispatcher{Materials: []material.Material{mat}, EnergyThr: 1}
	p := particle.Particle{Energy: 2, Material: 0, Direction: mgl32.Vec3{0, 0, 1}}

	// A very short mean free path forces an inelastic event well before the
	// boundary distance under the deterministic stub.
	mat.Models[1].MeanFreePath = 0.01
	d.Materials[0] = mat

	out := d.Step(p, intersect.Hit{Distance: 1000}, true, triangleView{}, DeterministicStub{Fraction: 0.5})
	if out.Status != particle.StatusTerminated {
		t.Fatalf("Status = %v, want Terminated", out.Status)
	}
	if out.Particle.Energy >= 2 {
		t.Fatalf("Energy = %v, want reduced from 2", out.Particle.Energy)
	}
}

func TestStepElasticChangesDirectionKeepsAlive(t *testing.T) {
	mat := material.Flat("bulk", 0, 0)
	mat.Models[0].MeanFreePath = 0.01 // force elastic to win
	mat.Models[1].MeanFreePath = 1e9
	d := &Dispatcher{Materials: []material.Material{mat}, EnergyThr: 1}
	p := particle.Particle{Energy: 10, Material: 0, Direction: mgl32.Vec3{0, 0, 1}}

	out := d.Step(p, intersect.Hit{Distance: 1000}, true, triangleView{}, DeterministicStub{Fraction: 0.5, Direction: mgl32.Vec3{1, 0, 0}})
	if out.Status != particle.StatusAlive {
		t.Fatalf("Status = %v, want Alive", out.Status)
	}
	if out.Particle.Direction != (mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("Direction = %v, want stub direction", out.Particle.Direction)
	}

	wantDist := -mat.Models[0].MeanFreePath * float32(math.Log(0.5))
	wantPos := p.Position.Add(p.Direction.Mul(wantDist))
	if out.Particle.Position != wantPos {
		t.Fatalf("Position = %v, want %v (advanced by the sampled free path before scattering)", out.Particle.Position, wantPos)
	}
}

func TestStepInelasticAdvancesPositionBeforeEnergyLoss(t *testing.T) {
	mat := material.Flat("absorber", 0, 0.5)
	mat.Models[0].MeanFreePath = 1e9
	mat.Models[1].MeanFreePath = 0.02 // force inelastic to win
	d := &Dispatcher{Materials: []material.Material{mat}, EnergyThr: 1}
	p := particle.Particle{Energy: 10, Material: 0, Direction: mgl32.Vec3{0, 0, 1}}

	out := d.Step(p, intersect.Hit{Distance: 1000}, true, triangleView{}, DeterministicStub{Fraction: 0.5})
	if out.Status != particle.StatusAlive {
		t.Fatalf("Status = %v, want Alive", out.Status)
	}

	wantDist := -mat.Models[1].MeanFreePath * float32(math.Log(0.5))
	wantPos := p.Position.Add(p.Direction.Mul(wantDist))
	if out.Particle.Position != wantPos {
		t.Fatalf("Position = %v, want %v (advanced by the sampled free path before scattering)", out.Particle.Position, wantPos)
	}
}

// TestStepMultiEventWalkAccumulatesPosition drives three consecutive
// elastic events through Step and checks the particle's position keeps
// moving each time, rather than staying frozen until a boundary event
// finally fires.
func TestStepMultiEventWalkAccumulatesPosition(t *testing.T) {
	mat := material.Flat("bulk", 0, 0)
	mat.Models[0].MeanFreePath = 0.01 // force elastic to win every step
	mat.Models[1].MeanFreePath = 1e9
	d := &Dispatcher{Materials: []material.Material{mat}, EnergyThr: 1}

	p := particle.Particle{Energy: 10, Material: 0, Direction: mgl32.Vec3{0, 0, 1}}
	rng := DeterministicStub{Fraction: 0.5, Direction: mgl32.Vec3{0, 0, 1}}

	var positions []mgl32.Vec3
	for i := 0; i < 3; i++ {
		out := d.Step(p, intersect.Hit{Distance: 1000}, true, triangleView{}, rng)
		if out.Status != particle.StatusAlive {
			t.Fatalf("event %d: Status = %v, want Alive", i, out.Status)
		}
		positions = append(positions, out.Particle.Position)
		p = out.Particle
	}

	for i := 1; i < len(positions); i++ {
		if positions[i] == positions[i-1] {
			t.Fatalf("event %d: position did not advance (stayed at %v)", i, positions[i])
		}
	}
}
