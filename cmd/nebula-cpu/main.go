// Command nebula-cpu runs the CPU Simulation Driver variant: a single
// driver instance parallelised internally across hardware threads (spec
// §5), fed by one Work Pool and writing detected records to a file or
// stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/nebula-sim/nebula/internal/config"
	"github.com/nebula-sim/nebula/internal/driver"
	"github.com/nebula-sim/nebula/internal/geometry"
	"github.com/nebula-sim/nebula/internal/intersect"
	"github.com/nebula-sim/nebula/internal/logging"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/orchestrator"
	"github.com/nebula-sim/nebula/internal/outsink"
	"github.com/nebula-sim/nebula/internal/primaries"
	"github.com/nebula-sim/nebula/internal/telemetry"
	"github.com/nebula-sim/nebula/internal/workpool"
)

// defaultPrescanSize and defaultBatchFactor are the pilot-run knobs the GPU
// CLI exposes as flags; spec.md §6 does not give the CPU variant the same
// two options, so it runs the prescan with the same built-in defaults
// instead of a third, unused pair of flags.
const (
	defaultPrescanSize = 1000
	defaultBatchFactor = 0.9
)

func fail(log logging.Logger, err error) {
	kind := config.Classify(err)
	log.Errorf("%s: %v", kind, err)
	_ = log.Sync()
	os.Exit(config.ExitCode(kind))
}

func main() {
	log, err := logging.New(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	fs := flag.NewFlagSet("nebula-cpu", flag.ContinueOnError)
	cfg, err := config.ParseCPU(fs, os.Args[1:])
	if err != nil {
		fail(log, err)
	}

	tris, err := geometry.LoadTriangles(cfg.GeometryPath)
	if err != nil {
		fail(log, err)
	}
	geom, err := geometry.Build(tris)
	if err != nil {
		fail(log, err)
	}
	log.Infof("loaded %d triangles", geom.Count())

	materials := make([]material.Material, len(cfg.MaterialPaths))
	for i, p := range cfg.MaterialPaths {
		m, err := material.Load(p)
		if err != nil {
			fail(log, err)
		}
		materials[i] = m
	}
	log.Infof("loaded %d materials", len(materials))

	parts, pixels, err := primaries.Load(cfg.PrimariesPath)
	if err != nil {
		fail(log, err)
	}
	parts, pixels, dropped := primaries.RejectOutOfBounds(parts, pixels, geom.Bounds())
	if dropped > 0 {
		log.Warnf("rejected %d primaries outside geometry bounds", dropped)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	primaries.PrescanShuffle(parts, pixels, defaultPrescanSize, rng)
	tags := primaries.AssignTags(parts)

	out := os.Stdout
	if cfg.DetectFilename != "stdout" {
		f, err := os.Create(cfg.DetectFilename)
		if err != nil {
			fail(log, fmt.Errorf("%w: creating %s: %v", config.ErrBadArgs, cfg.DetectFilename, err))
		}
		defer f.Close()
		out = f
	}
	sink := outsink.NewSink(out)

	driverCfg := driver.Config{
		Capacity:    1_000_000,
		Geometry:    geom,
		Intersector: intersect.Octree{},
		Materials:   materials,
		EnergyThr:   float32(cfg.EnergyThreshold),
		Seed:        cfg.Seed,
	}

	run, err := orchestrator.NewRun(orchestrator.Config{
		Driver:      driverCfg,
		PrescanSize: defaultPrescanSize,
		BatchFactor: defaultBatchFactor,
	}, sink)
	if err != nil {
		fail(log, err)
	}
	run.Phases.Reach(orchestrator.PhaseGeometryLoaded)
	run.Phases.Reach(orchestrator.PhaseMaterialsLoaded)

	if cfg.SummaryFilename != "" {
		sf, err := os.Create(cfg.SummaryFilename)
		if err != nil {
			fail(log, fmt.Errorf("%w: creating %s: %v", config.ErrBadArgs, cfg.SummaryFilename, err))
		}
		defer sf.Close()
		run.SetSummaryWriter(telemetry.NewWriter(sf))
	}

	cpu := driver.NewCPU(driverCfg)
	defer cpu.Close()

	// Spec §4.5 step 4 publishes the Work Pool (over the primaries the
	// prescan sample is excluded from) and sets primaries_loaded before
	// step 5 waits on prescan_done; the prescan itself runs over the
	// shuffled-to-front sample.
	n := defaultPrescanSize
	if n > len(parts) {
		n = len(parts)
	}
	pool := workpool.New(parts[n:], tags[n:])
	run.SetPool(pool)
	run.SetPixelLookup(pixels)
	run.Phases.Reach(orchestrator.PhasePrimariesLoaded)

	if _, err := run.RunPrescan(cpu, parts[:n], tags[:n]); err != nil {
		fail(log, err)
	}
	log.Infof("prescan done")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		addr, err := orchestrator.StartMetricsServer(cfg.MetricsAddr, func(err error) { log.Warnf("%v", err) })
		if err != nil {
			fail(log, err)
		}
		log.Infof("metrics listening on %s", addr)
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Println(telemetry.ProgressLine(pool.Total(), pool.PrimariesToGo(), []int{cpu.RunningCount()}))
			}
		}
	}()

	start := time.Now()
	runErr := run.RunWorkers(ctx, []driver.Driver{cpu})
	close(done)

	if runErr != nil {
		fail(log, runErr)
	}

	log.Infof("run complete in %s", time.Since(start))
	if err := sink.Close(); err != nil {
		fail(log, err)
	}
}
