// Package orchestrator wires the Prescan Controller, Work Pool, and
// Simulation Driver workers into one run: it owns the phase progression,
// device discovery, worker lifecycle, and the run's progress metrics.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nebula-sim/nebula/internal/driver"
	"github.com/nebula-sim/nebula/internal/gpu"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/outsink"
	"github.com/nebula-sim/nebula/internal/particle"
	"github.com/nebula-sim/nebula/internal/prescan"
	"github.com/nebula-sim/nebula/internal/telemetry"
	"github.com/nebula-sim/nebula/internal/workpool"
)

// progressGauges tracks run-wide population counters, grouped the way the
// corpus groups worker-pool metrics: one GaugeVec per measurement, split
// by label rather than one gauge per quantity.
var progressGauges = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "nebula_run_particles",
		Help: "Particle counts by accounting bucket for the active run.",
	},
	[]string{"bucket"},
)

// Config bundles everything a run needs beyond the driver-level Config
// (internal/driver.Config), plus the prescan and batching knobs spec.md
// §4.4/§9 name.
type Config struct {
	Driver      driver.Config
	PrescanSize int
	BatchFactor float64
	UseGPU      bool
}

// ErrTooFewMaterials re-exports material.ErrTooFewMaterials's shape for
// callers that only import this package; the cross-check itself still
// lives in internal/material.
type ErrTooFewMaterials = material.ErrTooFewMaterials

// Run coordinates one full simulation: geometry/material cross-check,
// prescan, then steady-state draining of pool through one or more driver
// workers, writing every detected record to sink.
type Run struct {
	Phases *Phases

	cfg       Config
	sink      *outsink.Sink
	pool      *workpool.Pool
	prescan   prescan.Stats
	pixelByID []particle.Pixel
	summary   *telemetry.Writer
}

// SetSummaryWriter installs the per-worker run-summary sink (spec §4.5
// step 7: "join all workers; summarise timings"). A nil writer, or never
// calling this at all, leaves summary writing disabled.
func (r *Run) SetSummaryWriter(w *telemetry.Writer) { r.summary = w }

// SetPixelLookup installs the tag-to-pixel table built from the loaded
// primaries (spec §4.1: tag i is primary i), used to stamp detected
// records on flush.
func (r *Run) SetPixelLookup(pixels []particle.Pixel) { r.pixelByID = pixels }

func (r *Run) pixelFor(t particle.Tag) particle.Pixel {
	if int(t) < len(r.pixelByID) {
		return r.pixelByID[t]
	}
	return particle.Pixel{}
}

// NewRun validates the geometry/material cross-check (spec §4.5 step 3)
// and constructs a Run parked at PhaseInit.
func NewRun(cfg Config, sink *outsink.Sink) (*Run, error) {
	tooMany, err := material.CrossCheck(cfg.Driver.Geometry.MaxMaterialID(), len(cfg.Driver.Materials))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	_ = tooMany // caller logs the warning; Run itself does not own a logger.

	return &Run{Phases: NewPhases(), cfg: cfg, sink: sink}, nil
}

// StartMetricsServer exposes progressGauges (and the default process/Go
// collectors) on addr at /metrics, returning the bound address once the
// listener is up. It never gates run correctness (spec §9); a failure
// after startup is only reported through onError, not surfaced to the
// run itself.
func StartMetricsServer(addr string, onError func(error)) (net.Addr, error) {
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.Serve(ln, mux); err != nil && onError != nil {
			onError(fmt.Errorf("orchestrator: metrics server: %w", err))
		}
	}()
	return ln.Addr(), nil
}

// OpenDevice discovers a wgpu adapter with retry, per spec §9's note that
// adapter acquisition is flaky on some drivers immediately after process
// start. Callers that run CPU-only should skip this entirely.
func OpenDevice(ctx context.Context, maxRetries uint64) (*gpu.Device, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	var dev *gpu.Device
	err := backoff.Retry(func() error {
		d, err := gpu.Open(ctx)
		if err != nil {
			return err
		}
		dev = d
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: device discovery: %w", err)
	}
	return dev, nil
}

// RunPrescan executes the pilot population and advances PhasePrescanDone.
// It must run on exactly one worker (device 0) before any worker reaches
// the steady-state loop.
func (r *Run) RunPrescan(d driver.Driver, sample []particle.Particle, tags []particle.Tag) (prescan.Stats, error) {
	stats, err := prescan.Run(d, sample, tags, r.cfg.Driver.Capacity, r.cfg.BatchFactor)
	if err != nil {
		return prescan.Stats{}, err
	}
	r.prescan = stats
	r.Phases.Reach(PhasePrescanDone)
	return stats, nil
}

// SetPool installs the Work Pool the steady-state workers draw from; it
// must be called after RunPrescan's sample has been excluded from (or
// re-enqueued into) the pool's backing slice by the caller.
func (r *Run) SetPool(pool *workpool.Pool) { r.pool = pool }

// Worker drains pool through d, periodically pushing batches sized by the
// prescan's batch_size, running do_iteration frame_size times between each
// push/drain cycle (spec §4.3's do_iteration×frame_size steady-state
// pipeline, tuned by §4.4's Prescan Controller so slot occupancy peaks near
// batch_factor*capacity), advancing gauges, and flushing detected records
// to sink until both the driver and the pool are drained. On normal
// completion it writes workerID's run summary via r.summary, if installed.
func (r *Run) Worker(ctx context.Context, workerID int, d driver.Driver) error {
	r.Phases.Wait(PhasePrescanDone)
	batchSize := r.prescan.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	frameSize := r.prescan.FrameSize
	if frameSize < 1 {
		frameSize = 1
	}

	w := outsink.NewWriter(r.sink)
	defer w.Flush()

	start := time.Now()
	var primariesPushed, detectedCount, iterations int

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if room := r.cfg.Driver.Capacity - d.RunningCount(); room > 0 {
			particles, tags, n := r.pool.GetWork(min(room, batchSize))
			if n > 0 {
				d.Push(particles, tags)
				primariesPushed += n
			}
		}

		for i := 0; i < frameSize; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			d.DoIteration()
			iterations++
		}

		d.FlushDetected(func(p particle.Particle, t particle.Tag) {
			rec := particle.Record{
				Position:  p.Position,
				Direction: p.Direction,
				Energy:    p.Energy,
				Pixel:     r.pixelFor(t),
				Tag:       t,
			}
			_ = w.Add(rec)
			detectedCount++
		})

		progressGauges.WithLabelValues("running").Set(float64(d.RunningCount()))
		progressGauges.WithLabelValues("pool_remaining").Set(float64(r.pool.PrimariesToGo()))

		if driver.Terminated(d, r.pool.Done()) {
			r.writeSummary(workerID, primariesPushed, detectedCount, iterations, time.Since(start))
			return nil
		}
	}
}

func (r *Run) writeSummary(workerID, primaries, detected, iterations int, elapsed time.Duration) {
	if r.summary == nil {
		return
	}
	var throughput float64
	if s := elapsed.Seconds(); s > 0 {
		throughput = float64(iterations) / s
	}
	_ = r.summary.WriteSummary(telemetry.WorkerSummary{
		WorkerID:     workerID,
		Primaries:    primaries,
		Detected:     detected,
		Iterations:   iterations,
		ElapsedMS:    float64(elapsed.Milliseconds()),
		ThroughputHz: throughput,
	})
}

// RunWorkers spawns one worker per driver and blocks until all finish or
// one returns an error, via errgroup the same way the corpus fans out
// independent per-connection loops and joins on the first failure.
func (r *Run) RunWorkers(ctx context.Context, drivers []driver.Driver) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, d := range drivers {
		i, d := i, d
		g.Go(func() error { return r.Worker(ctx, i, d) })
	}
	return g.Wait()
}
