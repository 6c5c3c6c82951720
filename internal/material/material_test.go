package material

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFlat(t *testing.T) {
	m := Flat("absorber", 2.0, 0.9)
	if m.Barrier != 2.0 {
		t.Fatalf("Barrier = %v, want 2.0", m.Barrier)
	}
	el, ok := m.ModelByKind(Elastic)
	if !ok {
		t.Fatal("expected an elastic model")
	}
	if el.MeanFreePath != 1 {
		t.Fatalf("elastic MeanFreePath = %v, want 1", el.MeanFreePath)
	}
	inel, ok := m.ModelByKind(Inelastic)
	if !ok {
		t.Fatal("expected an inelastic model")
	}
	if inel.EnergyLoss != 0.9 {
		t.Fatalf("EnergyLoss = %v, want 0.9", inel.EnergyLoss)
	}
}

func TestCrossCheck(t *testing.T) {
	tests := []struct {
		name    string
		maxID   int32
		loaded  int
		wantErr bool
		tooMany bool
	}{
		{"exact fit", 2, 3, false, false},
		{"too few", 2, 2, true, false},
		{"too many", 0, 3, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tooMany, err := CrossCheck(tt.maxID, tt.loaded)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tooMany != tt.tooMany {
				t.Fatalf("tooMany = %v, want %v", tooMany, tt.tooMany)
			}
		})
	}
}

func TestLoadLegacyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aluminumt")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	write := func(v any) {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	write(uint32(1))             // modelCount
	write(uint8(0))              // Elastic
	write(float32(0.5))          // meanFreePath
	write(float32(0))            // energyLoss
	write(uint32(2))             // coeffCount
	write([]float32{1.0, 2.0})   // coefficients
	write(float32(3.5))          // barrier
	f.Close()

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Barrier != 3.5 {
		t.Fatalf("Barrier = %v, want 3.5", m.Barrier)
	}
	el, ok := m.ModelByKind(Elastic)
	if !ok || el.MeanFreePath != 0.5 {
		t.Fatalf("elastic model = %+v, ok=%v", el, ok)
	}
}

func TestLoadLegacyEmptyFileIsInputMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emptyt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrInputMissing) {
		t.Fatalf("err = %v, want ErrInputMissing", err)
	}
}

func TestLoadHierarchical(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gold.material.yaml")
	doc := `
name: gold
barrier: 4.5
models:
  elastic:
    mean_free_path: 0.2
  inelastic:
    mean_free_path: 0.1
    energy_loss: 0.3
    coefficients: [1, 2, 3]
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "gold" || m.Barrier != 4.5 {
		t.Fatalf("m = %+v", m)
	}
	inel, ok := m.ModelByKind(Inelastic)
	if !ok || len(inel.Coefficients) != 3 {
		t.Fatalf("inelastic model = %+v, ok=%v", inel, ok)
	}
}

func TestLoadHierarchicalMissingIsInputMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrInputMissing) {
		t.Fatalf("err = %v, want ErrInputMissing", err)
	}
}

func TestLoadHierarchicalUnknownModelKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	doc := "name: bad\nbarrier: 1\nmodels:\n  diffuse:\n    mean_free_path: 1\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown scatter model kind")
	}
}
