package orchestrator

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/driver"
	"github.com/nebula-sim/nebula/internal/geometry"
	"github.com/nebula-sim/nebula/internal/intersect"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/outsink"
	"github.com/nebula-sim/nebula/internal/particle"
	"github.com/nebula-sim/nebula/internal/telemetry"
	"github.com/nebula-sim/nebula/internal/workpool"
)

func detectorGeometry(t *testing.T) *geometry.Handle {
	t.Helper()
	tri := geometry.Triangle{
		V0:          mgl32.Vec3{-10, -10, 10},
		V1:          mgl32.Vec3{10, -10, 10},
		V2:          mgl32.Vec3{0, 10, 10},
		MaterialIn:  particle.VacuumMaterial,
		MaterialOut: particle.VacuumMaterial,
		IsDetector:  true,
	}
	h, err := geometry.Build([]geometry.Triangle{tri})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return h
}

func beam(n int) ([]particle.Particle, []particle.Tag) {
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
	return particles, tags
}

func TestStartMetricsServerServesMetrics(t *testing.T) {
	addr, err := StartMetricsServer("127.0.0.1:0", func(err error) { t.Logf("metrics server: %v", err) })
	if err != nil {
		t.Fatalf("StartMetricsServer: %v", err)
	}

	var resp *http.Response
	for i := 0; i < 20; i++ {
		resp, err = http.Get("http://" + addr.String() + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestNewRunRejectsTooFewMaterials(t *testing.T) {
	h := detectorGeometry(t) // triangle borders VacuumMaterial on both sides
	tri := geometry.Triangle{
		V0: mgl32.Vec3{0, 0, 0}, V1: mgl32.Vec3{1, 0, 0}, V2: mgl32.Vec3{0, 1, 0},
		MaterialIn: 3,
	}
	h2, err := geometry.Build([]geometry.Triangle{tri})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_ = h

	cfg := Config{
		Driver: driver.Config{
			Capacity: 16,
			Geometry: h2,
		},
		PrescanSize: 8,
		BatchFactor: 0.5,
	}
	sink := outsink.NewSink(&bytes.Buffer{})
	if _, err := NewRun(cfg, sink); err == nil {
		t.Fatalf("NewRun: want error for under-provisioned material table")
	}
}

func TestRunEndToEndDetectsAllPrimaries(t *testing.T) {
	h := detectorGeometry(t)
	var buf bytes.Buffer
	sink := outsink.NewSink(&buf)

	cfg := Config{
		Driver: driver.Config{
			Capacity:    256,
			Geometry:    h,
			Intersector: intersect.Octree{},
			Materials:   []material.Material{},
			EnergyThr:   1,
			Seed:        5,
		},
		PrescanSize: 32,
		BatchFactor: 0.5,
	}

	run, err := NewRun(cfg, sink)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	prescanParticles, prescanTags := beam(cfg.PrescanSize)
	prescanDriver := driver.NewCPU(cfg.Driver)
	if _, err := run.RunPrescan(prescanDriver, prescanParticles, prescanTags); err != nil {
		t.Fatalf("RunPrescan: %v", err)
	}
	prescanDriver.Close()

	const total = 200
	particles, tags := beam(total)
	pool := workpool.New(particles, tags)
	run.SetPool(pool)

	pixels := make([]particle.Pixel, total)
	for i := range pixels {
		pixels[i] = particle.Pixel{X: int32(i), Y: 0}
	}
	run.SetPixelLookup(pixels)

	var summaryBuf bytes.Buffer
	run.SetSummaryWriter(telemetry.NewWriter(&summaryBuf))

	d := driver.NewCPU(cfg.Driver)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run.RunWorkers(ctx, []driver.Driver{d}); err != nil {
		t.Fatalf("RunWorkers: %v", err)
	}

	if buf.Len()%outsink.RecordSize != 0 {
		t.Fatalf("output length %d is not a multiple of RecordSize", buf.Len())
	}
	got := buf.Len() / outsink.RecordSize
	if got != total {
		t.Fatalf("wrote %d records, want %d", got, total)
	}

	if !strings.Contains(summaryBuf.String(), "worker_id") {
		t.Fatalf("summary writer produced no header: %q", summaryBuf.String())
	}
	if !strings.Contains(summaryBuf.String(), "200") {
		t.Fatalf("summary writer missing expected primaries/detected count: %q", summaryBuf.String())
	}
}
