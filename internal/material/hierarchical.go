package material

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// hierarchicalDoc mirrors the self-describing YAML material format: named
// scatter-model kinds nested under the material, so the file reads like
// documentation of itself.
type hierarchicalDoc struct {
	Name    string                   `yaml:"name"`
	Barrier float32                  `yaml:"barrier"`
	Models  map[string]hierModel `yaml:"models"`
}

type hierModel struct {
	MeanFreePath float32   `yaml:"mean_free_path"`
	EnergyLoss   float32   `yaml:"energy_loss"`
	Coefficients []float32 `yaml:"coefficients"`
}

func loadHierarchical(path string) (Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Material{}, fmt.Errorf("material: %s: %w", path, ErrInputMissing)
		}
		return Material{}, fmt.Errorf("material: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return Material{}, fmt.Errorf("material: %s: %w", path, ErrInputMissing)
	}

	var doc hierarchicalDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Material{}, fmt.Errorf("material: parsing %s: %w", path, err)
	}

	models := make([]ScatterModel, 0, len(doc.Models))
	for name, m := range doc.Models {
		kind, err := parseScatterKind(name)
		if err != nil {
			return Material{}, fmt.Errorf("material: %s: %w", path, err)
		}
		models = append(models, ScatterModel{
			Kind:         kind,
			MeanFreePath: m.MeanFreePath,
			EnergyLoss:   m.EnergyLoss,
			Coefficients: m.Coefficients,
		})
	}

	name := doc.Name
	if name == "" {
		name = path
	}

	return Material{Name: name, Barrier: doc.Barrier, Models: models}, nil
}

func parseScatterKind(name string) (ScatterKind, error) {
	switch name {
	case "elastic":
		return Elastic, nil
	case "inelastic":
		return Inelastic, nil
	default:
		return 0, fmt.Errorf("unknown scatter model kind %q", name)
	}
}
