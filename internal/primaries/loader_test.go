package primaries

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/particle"
)

func writePrimariesFile(t *testing.T, particles []particle.Particle, pixels []particle.Pixel) string {
	t.Helper()
	buf := make([]byte, len(particles)*entryRecordSize)
	for i := range particles {
		rec := buf[i*entryRecordSize : (i+1)*entryRecordSize]
		putFloat := func(off int, v float32) {
			binary.LittleEndian.PutUint32(rec[off:off+4], math.Float32bits(v))
		}
		p := particles[i]
		putFloat(0, p.Position.X())
		putFloat(4, p.Position.Y())
		putFloat(8, p.Position.Z())
		putFloat(12, p.Direction.X())
		putFloat(16, p.Direction.Y())
		putFloat(20, p.Direction.Z())
		putFloat(24, p.Energy)
		putFloat(28, float32(p.Material))
		binary.LittleEndian.PutUint32(rec[32:36], uint32(pixels[i].X))
		binary.LittleEndian.PutUint32(rec[36:40], uint32(pixels[i].Y))
	}
	path := filepath.Join(t.TempDir(), "primaries.pri")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadRoundTrip(t *testing.T) {
	wantP := []particle.Particle{
		{Position: mgl32.Vec3{1, 2, 3}, Direction: mgl32.Vec3{0, 0, 1}, Energy: 500, Material: particle.VacuumMaterial},
		{Position: mgl32.Vec3{4, 5, 6}, Direction: mgl32.Vec3{0, 1, 0}, Energy: 250, Material: 0},
	}
	wantX := []particle.Pixel{{X: 7, Y: 8}, {X: 9, Y: 10}}
	path := writePrimariesFile(t, wantP, wantX)

	gotP, gotX, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(gotP) != 2 || len(gotX) != 2 {
		t.Fatalf("got %d particles, %d pixels, want 2 and 2", len(gotP), len(gotX))
	}
	for i := range wantP {
		if gotP[i] != wantP[i] {
			t.Fatalf("particle %d = %+v, want %+v", i, gotP[i], wantP[i])
		}
		if gotX[i] != wantX[i] {
			t.Fatalf("pixel %d = %+v, want %+v", i, gotX[i], wantX[i])
		}
	}
}

func TestLoadEmptyFileIsInputMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pri")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := Load(path); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("Load on empty file: err = %v, want ErrInputMissing", err)
	}
}

func TestLoadMissingFileIsInputMissing(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.pri")); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("Load on missing file: err = %v, want ErrInputMissing", err)
	}
}
