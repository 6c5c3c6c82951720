// Command nebula-gpu runs the GPU Simulation Driver variant: it opens one
// compute device, runs a single GPU driver fed by a Work Pool, and writes
// detected records to stdout.
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

// deviceRetries bounds the orchestrator-level adapter-discovery retry
// layered over internal/gpu.Open's own retry, per spec §9's note that
// transient adapter acquisition failures are a DeviceError, not a usage
// error.
const deviceRetries = 3

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

	fs := flag.NewFlagSet("nebula-gpu", flag.ContinueOnError)
	cfg, err := config.ParseGPU(fs, os.Args[1:])
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
	primaries.PrescanShuffle(parts, pixels, cfg.PrescanSize, rng)
	tags := primaries.AssignTags(parts)
	if cfg.SortPrimaries {
		log.Warnf("--sort-primaries requested but no loader-defined sort key is wired in this build; skipping")
	}

	out := os.Stdout
	sink := outsink.NewSink(out)

	driverCfg := driver.Config{
		Capacity:    cfg.Capacity,
		Geometry:    geom,
		Intersector: intersect.Octree{},
		Materials:   materials,
		EnergyThr:   float32(cfg.EnergyThreshold),
		Seed:        cfg.Seed,
	}

	run, err := orchestrator.NewRun(orchestrator.Config{
		Driver:      driverCfg,
		PrescanSize: cfg.PrescanSize,
		BatchFactor: cfg.BatchFactor,
		UseGPU:      true,
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev, err := orchestrator.OpenDevice(ctx, deviceRetries)
	if err != nil {
		fail(log, err)
	}
	defer dev.Close()

	gpuDriver, err := driver.NewGPU(driverCfg, dev)
	if err != nil {
		fail(log, fmt.Errorf("nebula-gpu: %w", err))
	}
	defer gpuDriver.Close()

	if cfg.MetricsAddr != "" {
		addr, err := orchestrator.StartMetricsServer(cfg.MetricsAddr, func(err error) { log.Warnf("%v", err) })
		if err != nil {
			fail(log, err)
		}
		log.Infof("metrics listening on %s", addr)
	}

	n := cfg.PrescanSize
	if n > len(parts) {
		n = len(parts)
	}
	pool := workpool.New(parts[n:], tags[n:])
	run.SetPool(pool)
	run.SetPixelLookup(pixels)
	run.Phases.Reach(orchestrator.PhasePrimariesLoaded)

	if _, err := run.RunPrescan(gpuDriver, parts[:n], tags[:n]); err != nil {
		fail(log, err)
	}
	log.Infof("prescan done")

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Println(telemetry.ProgressLine(pool.Total(), pool.PrimariesToGo(), []int{gpuDriver.RunningCount()}))
			}
		}
	}()

	start := time.Now()
	runErr := run.RunWorkers(ctx, []driver.Driver{gpuDriver})
	close(done)

	if runErr != nil {
		fail(log, runErr)
	}

	log.Infof("run complete in %s", time.Since(start))
	if err := sink.Close(); err != nil {
		fail(log, err)
	}
}
