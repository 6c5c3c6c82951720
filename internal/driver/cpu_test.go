package driver

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/geometry"
	"github.com/nebula-sim/nebula/internal/intersect"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/particle"
)

func detectorGeometry(t *testing.T) *geometry.Handle {
	t.Helper()
	tri := geometry.Triangle{
		V0:         mgl32.Vec3{-10, -10, 10},
		V1:         mgl32.Vec3{10, -10, 10},
		V2:         mgl32.Vec3{0, 10, 10},
		IsDetector: true,
	}
	h, err := geometry.Build([]geometry.Triangle{tri})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

// TestVacuumBeamAimedAtDetector is scenario 1 of spec §8: a population
// with direct line of sight to a single detector triangle should all be
// detected within a handful of iterations.
func TestVacuumBeamAimedAtDetector(t *testing.T) {
	h := detectorGeometry(t)
	cfg := Config{
		Capacity:    64,
		Geometry:    h,
		Intersector: intersect.Octree{},
		Materials:   []material.Material{},
		EnergyThr:   1,
		Seed:        7,
	}
	d := NewCPU(cfg)
	defer d.Close()

	const n = 64
	particles := make([]particle.Particle, n)
	tags := make([]particle.Tag, n)
	for i := 0; i < n; i++ {
		particles[i] = particle.Particle{
			Position:  mgl32.Vec3{0, 0, 0},
			Direction: mgl32.Vec3{0, 0, 1},
			Energy:    1000,
			Material:  particle.VacuumMaterial,
		}
		tags[i] = particle.Tag(i)
	}

	if pushed := d.Push(particles, tags); pushed != n {
		t.Fatalf("pushed = %d, want %d", pushed, n)
	}

	var detectedTags []particle.Tag
	for i := 0; i < 10 && d.RunningCount() > 0; i++ {
		d.DoIteration()
		d.FlushDetected(func(p particle.Particle, tg particle.Tag) {
			detectedTags = append(detectedTags, tg)
		})
	}

	if len(detectedTags) != n {
		t.Fatalf("detected %d records, want %d", len(detectedTags), n)
	}
}

// TestAbsorbingSlabProducesNoDetections is scenario 2 of spec §8.
func TestAbsorbingSlabProducesNoDetections(t *testing.T) {
	h := detectorGeometry(t)
	mat := material.Flat("absorber", 0, 0.999999)
	mat.Models[1].MeanFreePath = 1e-6 // inelastic fires almost immediately
	cfg := Config{
		Capacity:    64,
		Geometry:    h,
		Intersector: intersect.Octree{},
		Materials:   []material.Material{mat},
		EnergyThr:   500,
		Seed:        11,
	}
	d := NewCPU(cfg)
	defer d.Close()

	const n = 32
	particles := make([]particle.Particle, n)
	tags := make([]particle.Tag, n)
	for i := 0; i < n; i++ {
		particles[i] = particle.Particle{
			Position:  mgl32.Vec3{0, 0, 0},
			Direction: mgl32.Vec3{0, 0, 1},
			Energy:    501,
			Material:  0,
		}
		tags[i] = particle.Tag(i)
	}
	d.Push(particles, tags)

	var detectedCount int
	for i := 0; i < 20 && d.RunningCount() > 0; i++ {
		d.DoIteration()
		d.FlushDetected(func(particle.Particle, particle.Tag) { detectedCount++ })
	}

	if d.RunningCount() != 0 {
		t.Fatalf("RunningCount = %d, want 0 (all terminated)", d.RunningCount())
	}
	if detectedCount != 0 {
		t.Fatalf("detected %d records, want 0", detectedCount)
	}
}
