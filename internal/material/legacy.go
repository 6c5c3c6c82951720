package material

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// legacy binary layout, little-endian:
//   uint32 modelCount
//   for each model:
//     uint8  kind (0=elastic, 1=inelastic)
//     float32 meanFreePath
//     float32 energyLoss
//     uint32 coefficientCount
//     float32[coefficientCount] coefficients
//   float32 barrier

func loadLegacy(path string) (Material, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Material{}, fmt.Errorf("material: %s: %w", path, ErrInputMissing)
		}
		return Material{}, fmt.Errorf("material: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Material{}, fmt.Errorf("material: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return Material{}, fmt.Errorf("material: %s: %w", path, ErrInputMissing)
	}

	var modelCount uint32
	if err := binary.Read(f, binary.LittleEndian, &modelCount); err != nil {
		return Material{}, fmt.Errorf("material: reading model count from %s: %w", path, err)
	}

	models := make([]ScatterModel, 0, modelCount)
	for i := uint32(0); i < modelCount; i++ {
		model, err := readLegacyModel(f)
		if err != nil {
			return Material{}, fmt.Errorf("material: reading model %d from %s: %w", i, path, err)
		}
		models = append(models, model)
	}

	var barrier float32
	if err := binary.Read(f, binary.LittleEndian, &barrier); err != nil {
		return Material{}, fmt.Errorf("material: reading barrier from %s: %w", path, err)
	}

	return Material{Name: path, Barrier: barrier, Models: models}, nil
}

func readLegacyModel(r io.Reader) (ScatterModel, error) {
	var kind uint8
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return ScatterModel{}, err
	}

	var meanFreePath, energyLoss float32
	if err := binary.Read(r, binary.LittleEndian, &meanFreePath); err != nil {
		return ScatterModel{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &energyLoss); err != nil {
		return ScatterModel{}, err
	}

	var coeffCount uint32
	if err := binary.Read(r, binary.LittleEndian, &coeffCount); err != nil {
		return ScatterModel{}, err
	}
	coeffs := make([]float32, coeffCount)
	if coeffCount > 0 {
		if err := binary.Read(r, binary.LittleEndian, &coeffs); err != nil {
			return ScatterModel{}, err
		}
	}

	return ScatterModel{
		Kind:         ScatterKind(kind),
		MeanFreePath: meanFreePath,
		EnergyLoss:   energyLoss,
		Coefficients: coeffs,
	}, nil
}
