// Package prescan implements the Prescan Controller: a pilot run over a
// small population used purely to tune frame_size and batch_size so that,
// in steady state, slot occupancy peaks near batch_factor*capacity
// without overflow (spec §4.4).
package prescan

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nebula-sim/nebula/internal/particle"
)

// ErrBadArgs is returned for the boundary conditions spec §8 names:
// prescan_size == 0, capacity == 0, or batch_factor <= 0.
var ErrBadArgs = errors.New("prescan: bad arguments")

// Driver is the subset of the Simulation Driver contract the pilot run
// needs.
type Driver interface {
	Push(particles []particle.Particle, tags []particle.Tag) int
	DoIteration()
	RunningCount() int
	DetectedCount() int
}

// Sample is one (running_count, detected_count) observation; index 0 is
// the post-push sample, indices 1..n are post-do_iteration samples.
type Sample struct {
	Running, Detected int
}

// Stats is the pilot run's full record plus the derived tuning values.
type Stats struct {
	Samples   []Sample
	KStar     int
	FrameSize int
	BatchSize int
}

// Run executes the pilot algorithm of spec §4.4 verbatim:
//  1. Push prescanSize particles; record (pushed, 0).
//  2. Repeatedly do_iteration, recording (running, detected) after each,
//     until running_count == 0.
//  3. k* = 1 + argmax_i running[i]; frame_size = k*.
//  4. A = 2*running[k*]/P + 2*detected[k*]/P + sum_{i=2k*,3k*,...<len} running[i]/P;
//     batch_size = floor(batch_factor * capacity / A).
//
// The index arithmetic in step 4 is intentionally exact: the first sampled
// offset is 2*k*, not k*, and the k*-sample itself is weighted by 2. This
// is preserved as specified rather than re-derived.
func Run(d Driver, particles []particle.Particle, tags []particle.Tag, capacity int, batchFactor float64) (Stats, error) {
	p := len(tags)
	if p == 0 || capacity <= 0 || batchFactor <= 0 {
		return Stats{}, fmt.Errorf("prescan_size=%d capacity=%d batch_factor=%v: %w", p, capacity, batchFactor, ErrBadArgs)
	}

	pushed := d.Push(particles, tags)
	samples := []Sample{{Running: pushed, Detected: 0}}

	for {
		d.DoIteration()
		s := Sample{Running: d.RunningCount(), Detected: d.DetectedCount()}
		samples = append(samples, s)
		if s.Running == 0 {
			break
		}
	}

	peak := 0
	for i, s := range samples {
		if s.Running > samples[peak].Running {
			peak = i
		}
	}
	kstar := 1 + peak
	frameSize := kstar

	terms := []float64{
		2 * float64(samples[kstar].Running) / float64(p),
		2 * float64(samples[kstar].Detected) / float64(p),
	}
	for i := 2 * kstar; i < len(samples); i += kstar {
		terms = append(terms, float64(samples[i].Running)/float64(p))
	}
	acc := floats.Sum(terms)
	if acc <= 0 {
		return Stats{}, fmt.Errorf("prescan: pilot population never detected or stayed running past k*=%d: %w", kstar, ErrBadArgs)
	}

	batchSize := int(batchFactor * float64(capacity) / acc)

	return Stats{
		Samples:   samples,
		KStar:     kstar,
		FrameSize: frameSize,
		BatchSize: batchSize,
	}, nil
}
