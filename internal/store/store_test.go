package store

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/particle"
)

func makeParticles(n int) ([]particle.Particle, []particle.Tag) {
	ps := make([]particle.Particle, n)
	tags := make([]particle.Tag, n)
	for i := 0; i < n; i++ {
		ps[i] = particle.Particle{
			Position:  mgl32.Vec3{0, 0, 0},
			Direction: mgl32.Vec3{0, 0, 1},
			Energy:    10,
			Material:  particle.VacuumMaterial,
		}
		tags[i] = particle.Tag(i)
	}
	return ps, tags
}

func TestPushNeverExceedsCapacity(t *testing.T) {
	s := New(5)
	ps, tags := makeParticles(10)

	pushed := s.Push(ps, tags)
	if pushed != 5 {
		t.Fatalf("pushed = %d, want 5", pushed)
	}
	if s.RunningCount() != 5 {
		t.Fatalf("RunningCount = %d, want 5", s.RunningCount())
	}

	second := s.Push(ps, tags)
	if second != 0 {
		t.Fatalf("second push = %d, want 0 (slab full)", second)
	}
}

func TestDoIterationRoutesByStatus(t *testing.T) {
	s := New(4)
	ps, tags := makeParticles(3)
	s.Push(ps, tags)

	s.DoIteration(func(p particle.Particle, tg particle.Tag) (particle.Particle, particle.Status) {
		switch tg {
		case 0:
			return p, particle.StatusAlive
		case 1:
			return p, particle.StatusDetected
		default:
			return p, particle.StatusTerminated
		}
	})

	if got := s.RunningCount(); got != 1 {
		t.Fatalf("RunningCount = %d, want 1", got)
	}
	if got := s.DetectedCount(); got != 1 {
		t.Fatalf("DetectedCount = %d, want 1", got)
	}
}

func TestFlushDetectedEmptiesSlots(t *testing.T) {
	s := New(4)
	ps, tags := makeParticles(2)
	s.Push(ps, tags)

	s.DoIteration(func(p particle.Particle, tg particle.Tag) (particle.Particle, particle.Status) {
		return p, particle.StatusDetected
	})
	if s.DetectedCount() != 2 {
		t.Fatalf("DetectedCount = %d, want 2", s.DetectedCount())
	}

	var flushed []particle.Tag
	running := s.FlushDetected(func(p particle.Particle, tg particle.Tag) {
		flushed = append(flushed, tg)
	})

	if running != s.RunningCount() {
		t.Fatalf("FlushDetected running = %d, want %d", running, s.RunningCount())
	}
	if s.DetectedCount() != 0 {
		t.Fatalf("DetectedCount after flush = %d, want 0", s.DetectedCount())
	}
	if len(flushed) != 2 {
		t.Fatalf("flushed %d records, want 2", len(flushed))
	}
}

func TestDoIterationParallelMatchesSerialOutcome(t *testing.T) {
	s := New(64)
	ps, tags := makeParticles(50)
	s.Push(ps, tags)

	s.DoIterationParallel(4, func(workerID int, p particle.Particle, tg particle.Tag) (particle.Particle, particle.Status) {
		if tg%2 == 0 {
			return p, particle.StatusDetected
		}
		return p, particle.StatusAlive
	})

	if got := s.RunningCount(); got != 25 {
		t.Fatalf("RunningCount = %d, want 25", got)
	}
	if got := s.DetectedCount(); got != 25 {
		t.Fatalf("DetectedCount = %d, want 25", got)
	}
}

func TestCapacityBoundAcrossAliveAndDetected(t *testing.T) {
	s := New(3)
	ps, tags := makeParticles(3)
	s.Push(ps, tags)

	s.DoIteration(func(p particle.Particle, tg particle.Tag) (particle.Particle, particle.Status) {
		return p, particle.StatusDetected
	})

	if s.RunningCount()+s.DetectedCount() > s.Capacity() {
		t.Fatalf("running+detected = %d exceeds capacity %d", s.RunningCount()+s.DetectedCount(), s.Capacity())
	}

	more, _ := makeParticles(1)
	if pushed := s.Push(more, []particle.Tag{99}); pushed != 0 {
		t.Fatalf("pushed = %d, want 0 (slab full of detected-but-unflushed)", pushed)
	}
}
