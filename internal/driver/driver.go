// Package driver implements the Simulation Driver: the component that
// owns a Particle Store and advances it one physics event per slot per
// iteration. Two variants share this contract: a CPU variant that
// parallelises do_iteration across goroutines, and a GPU variant that
// dispatches a compute shader and stages transfers to overlap with
// compute.
package driver

import (
	"github.com/nebula-sim/nebula/internal/geometry"
	"github.com/nebula-sim/nebula/internal/intersect"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/particle"
	"github.com/nebula-sim/nebula/internal/store"
)

// Driver is the public contract both variants implement (spec §4.3).
type Driver interface {
	// Push injects up to len(tags) particles into empty slots and returns
	// the actual count placed.
	Push(particles []particle.Particle, tags []particle.Tag) int
	// DoIteration advances every alive slot by exactly one physics event.
	DoIteration()
	// RunningCount returns the number of alive slots.
	RunningCount() int
	// DetectedCount returns the number of pending-flush detected slots.
	DetectedCount() int
	// FlushDetected invokes cb on every detected slot and empties it,
	// returning the post-flush running count.
	FlushDetected(cb store.FlushCallback) int
	// Close releases any device resources the driver holds.
	Close()
}

// Config bundles a Driver's construction inputs, common to both variants.
type Config struct {
	Capacity    int
	Geometry    *geometry.Handle
	Intersector intersect.Intersector
	Materials   []material.Material
	EnergyThr   float32
	Seed        int64
}

// Terminated reports the per-worker termination predicate: no alive
// slots, and the work pool has nothing left to claim.
func Terminated(d Driver, poolDone bool) bool {
	return d.RunningCount() == 0 && poolDone
}
