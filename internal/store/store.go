// Package store implements the Particle Store: a fixed-capacity population
// of in-flight particles, backed by an ark ECS world so that per-slot
// component access follows the same archetype-storage pattern used
// elsewhere in this codebase's lineage.
package store

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/nebula-sim/nebula/internal/particle"
)

// position, direction, energy, materialID and tag are the ark components a
// slot is built from; kept as separate component types (rather than one
// Particle component) so the mapper only touches the fields do_iteration
// actually mutates, mirroring the corpus's one-field-per-component idiom.
type position struct{ X, Y, Z float32 }
type direction struct{ X, Y, Z float32 }
type energy struct{ Value float32 }
type materialID struct{ Value int32 }
type tag struct{ Value particle.Tag }

// ErrOutOfCapacity signals a push that would exceed the slab's fixed
// capacity. Per spec §7 this is an internal invariant violation, not a
// runtime error: callers must never call push with more room than
// remains.
type ErrOutOfCapacity struct {
	Requested, Remaining int
}

func (e ErrOutOfCapacity) Error() string {
	return fmt.Sprintf("store: push requested %d slots, only %d remain", e.Requested, e.Remaining)
}

// Store is the fixed-capacity slab of Particle Store invariant (a): capacity
// is set at construction and never resized.
type Store struct {
	capacity int
	world    *ecs.World

	posMap *ecs.Map1[position]
	dirMap *ecs.Map1[direction]
	enMap  *ecs.Map1[energy]
	matMap *ecs.Map1[materialID]
	tagMap *ecs.Map1[tag]
	mapper *ecs.Map5[position, direction, energy, materialID, tag]

	alive    []ecs.Entity
	detected []detectedSlot
}

type detectedSlot struct {
	entity ecs.Entity
	p      particle.Particle
	tag    particle.Tag
}

// New constructs an empty Store with the given fixed capacity.
func New(capacity int) *Store {
	world := ecs.NewWorld()

	s := &Store{
		capacity: capacity,
		world:    world,
		posMap:   ecs.NewMap1[position](world),
		dirMap:   ecs.NewMap1[direction](world),
		enMap:    ecs.NewMap1[energy](world),
		matMap:   ecs.NewMap1[materialID](world),
		tagMap:   ecs.NewMap1[tag](world),
		mapper:   ecs.NewMap5[position, direction, energy, materialID, tag](world),
	}
	return s
}

// Capacity returns the slab's fixed capacity (invariant a).
func (s *Store) Capacity() int { return s.capacity }

// RunningCount returns the number of alive slots (invariant b).
func (s *Store) RunningCount() int { return len(s.alive) }

// DetectedCount returns the number of slots holding a detected-but-not-
// flushed record.
func (s *Store) DetectedCount() int { return len(s.detected) }

// Push injects up to n particles (with their tags) into empty slots.
// Returns the actual count placed; never exceeds remaining capacity.
// Particles placed are immediately alive; push performs no scattering.
func (s *Store) Push(particles []particle.Particle, tags []particle.Tag) int {
	remaining := s.capacity - len(s.alive) - len(s.detected)
	n := len(particles)
	if n > len(tags) {
		n = len(tags)
	}
	if n > remaining {
		n = remaining
	}

	for i := 0; i < n; i++ {
		p := particles[i]
		e := s.mapper.NewEntity(
			&position{p.Position.X(), p.Position.Y(), p.Position.Z()},
			&direction{p.Direction.X(), p.Direction.Y(), p.Direction.Z()},
			&energy{p.Energy},
			&materialID{p.Material},
			&tag{tags[i]},
		)
		s.alive = append(s.alive, e)
	}
	return n
}

// StepFunc is supplied by internal/driver to advance one alive slot by
// exactly one physics event; it returns the updated particle plus the
// terminal status, if any.
type StepFunc func(p particle.Particle, t particle.Tag) (particle.Particle, particle.Status)

// DoIteration advances every alive slot by exactly one physics event via
// step. Detected slots move to the pending-detected set; terminated slots
// are freed immediately (invariant c).
func (s *Store) DoIteration(step StepFunc) {
	survivors := s.alive[:0]
	for _, e := range s.alive {
		pos := s.posMap.Get(e)
		dir := s.dirMap.Get(e)
		en := s.enMap.Get(e)
		mat := s.matMap.Get(e)
		tg := s.tagMap.Get(e)

		p := particle.Particle{
			Position:  vec3(pos.X, pos.Y, pos.Z),
			Direction: vec3(dir.X, dir.Y, dir.Z),
			Energy:    en.Value,
			Material:  mat.Value,
		}

		updated, status := step(p, tg.Value)

		switch status {
		case particle.StatusAlive:
			pos.X, pos.Y, pos.Z = updated.Position.X(), updated.Position.Y(), updated.Position.Z()
			dir.X, dir.Y, dir.Z = updated.Direction.X(), updated.Direction.Y(), updated.Direction.Z()
			en.Value = updated.Energy
			mat.Value = updated.Material
			survivors = append(survivors, e)
		case particle.StatusDetected:
			s.detected = append(s.detected, detectedSlot{entity: e, p: updated, tag: tg.Value})
		default: // Terminated
			s.mapper.Remove(e)
		}
	}
	s.alive = survivors
}

// ChunkStepFunc is a StepFunc plus a worker-local scratch slot index, so a
// parallel caller can hand each worker its own reusable buffers (e.g. RNG
// state) without sharing them across goroutines.
type ChunkStepFunc func(workerID int, p particle.Particle, t particle.Tag) (particle.Particle, particle.Status)

type slotResult struct {
	p      particle.Particle
	status particle.Status
}

// DoIterationParallel is DoIteration's chunked-goroutine variant: a
// snapshot phase (reading current component state), a parallel compute
// phase split across numWorkers chunks, then a single-threaded apply
// phase that mutates the ECS world and the alive/detected bookkeeping.
// Mirrors the snapshot/compute/apply split used for the CPU driver's
// per-frame physics pass.
func (s *Store) DoIterationParallel(numWorkers int, step ChunkStepFunc) {
	n := len(s.alive)
	if n == 0 {
		return
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	snapshot := make([]particle.Particle, n)
	tags := make([]particle.Tag, n)
	for i, e := range s.alive {
		pos := s.posMap.Get(e)
		dir := s.dirMap.Get(e)
		en := s.enMap.Get(e)
		mat := s.matMap.Get(e)
		tg := s.tagMap.Get(e)
		snapshot[i] = particle.Particle{
			Position:  vec3(pos.X, pos.Y, pos.Z),
			Direction: vec3(dir.X, dir.Y, dir.Z),
			Energy:    en.Value,
			Material:  mat.Value,
		}
		tags[i] = tg.Value
	}

	results := make([]slotResult, n)
	chunkSize := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(workerID, i0, i1 int) {
			defer wg.Done()
			for i := i0; i < i1; i++ {
				p, status := step(workerID, snapshot[i], tags[i])
				results[i] = slotResult{p: p, status: status}
			}
		}(w, start, end)
	}
	wg.Wait()

	survivors := s.alive[:0]
	for i, e := range s.alive {
		r := results[i]
		switch r.status {
		case particle.StatusAlive:
			pos := s.posMap.Get(e)
			dir := s.dirMap.Get(e)
			pos.X, pos.Y, pos.Z = r.p.Position.X(), r.p.Position.Y(), r.p.Position.Z()
			dir.X, dir.Y, dir.Z = r.p.Direction.X(), r.p.Direction.Y(), r.p.Direction.Z()
			s.enMap.Get(e).Value = r.p.Energy
			s.matMap.Get(e).Value = r.p.Material
			survivors = append(survivors, e)
		case particle.StatusDetected:
			s.detected = append(s.detected, detectedSlot{entity: e, p: r.p, tag: tags[i]})
		default: // Terminated
			s.mapper.Remove(e)
		}
	}
	s.alive = survivors
}

// FlushCallback receives one detected particle and its tag.
type FlushCallback func(p particle.Particle, t particle.Tag)

// FlushDetected invokes cb on every detected slot and empties it, returning
// the post-flush running count (which is unchanged by a flush).
func (s *Store) FlushDetected(cb FlushCallback) int {
	for _, d := range s.detected {
		cb(d.p, d.tag)
		s.mapper.Remove(d.entity)
	}
	s.detected = s.detected[:0]
	return len(s.alive)
}

func vec3(x, y, z float32) mgl32.Vec3 { return mgl32.Vec3{x, y, z} }
