package driver

import (
	"math"
	"runtime"

	"github.com/nebula-sim/nebula/internal/geometry"
	"github.com/nebula-sim/nebula/internal/intersect"
	"github.com/nebula-sim/nebula/internal/particle"
	"github.com/nebula-sim/nebula/internal/scatter"
	"github.com/nebula-sim/nebula/internal/store"
)

// CPU is the CPU Simulation Driver variant: do_iteration is split into a
// snapshot/parallel-compute/apply pass, grounded on the chunked-goroutine
// worker pattern used elsewhere in this codebase for per-tick physics.
type CPU struct {
	store       *store.Store
	dispatcher  *scatter.Dispatcher
	geometry    *geometry.Handle
	intersector intersect.Intersector
	rngs        []workerRng
	numWorkers  int
}

// NewCPU constructs a CPU driver with GOMAXPROCS workers, each seeded
// deterministically from cfg.Seed so a fixed seed reproduces the same
// sequence of per-worker draws.
func NewCPU(cfg Config) *CPU {
	numWorkers := runtime.GOMAXPROCS(0)
	rngs := make([]workerRng, numWorkers)
	for i := range rngs {
		rngs[i] = newWorkerRng(cfg.Seed + int64(i))
	}
	return &CPU{
		store:       store.New(cfg.Capacity),
		dispatcher:  &scatter.Dispatcher{Materials: cfg.Materials, EnergyThr: cfg.EnergyThr},
		geometry:    cfg.Geometry,
		intersector: cfg.Intersector,
		rngs:        rngs,
		numWorkers:  numWorkers,
	}
}

func (d *CPU) Push(particles []particle.Particle, tags []particle.Tag) int {
	return d.store.Push(particles, tags)
}

func (d *CPU) DoIteration() {
	d.store.DoIterationParallel(d.numWorkers, func(workerID int, p particle.Particle, tg particle.Tag) (particle.Particle, particle.Status) {
		rng := d.rngs[workerID]
		hit, ok := d.intersector.Nearest(d.geometry, p.Position, p.Direction, float32(math.MaxFloat32))

		tri := scatter.TriangleView(particle.VacuumMaterial, particle.VacuumMaterial, false)
		if ok {
			t := d.geometry.Triangle(hit.TriangleIndex)
			tri = scatter.TriangleView(t.MaterialIn, t.MaterialOut, t.IsDetector)
		}

		out := d.dispatcher.Step(p, hit, ok, tri, rng)
		return out.Particle, out.Status
	})
}

func (d *CPU) RunningCount() int  { return d.store.RunningCount() }
func (d *CPU) DetectedCount() int { return d.store.DetectedCount() }

func (d *CPU) FlushDetected(cb store.FlushCallback) int {
	return d.store.FlushDetected(cb)
}

// Close is a no-op for the CPU variant: it holds no device resources.
func (d *CPU) Close() {}
