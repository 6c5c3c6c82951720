// Package material loads the per-region physics bundle a Particle's current
// material id maps to: a set of scatter models plus a vacuum barrier
// energy. Two on-disk formats are supported (spec §6), dispatched by
// filename suffix; both yield the same in-memory Material value.
package material

import (
	"fmt"
	"strings"
)

// ScatterKind is the closed set of physics events a Material's scatter
// models can describe, per spec §9's tagged-variant design note.
type ScatterKind int

const (
	Elastic ScatterKind = iota
	Inelastic
)

func (k ScatterKind) String() string {
	if k == Elastic {
		return "elastic"
	}
	return "inelastic"
}

// ScatterModel holds the coefficients for one scatter kind. The coefficient
// tables themselves are external per spec §1; this struct is the minimal
// shape both loaders populate and internal/scatter consumes.
type ScatterModel struct {
	Kind         ScatterKind
	MeanFreePath float32   // mean distance between events of this kind, in length units
	EnergyLoss   float32   // mean fractional energy loss per inelastic event (0 for elastic)
	Coefficients []float32 // opaque per-model coefficient table
}

// Material is the immutable physics bundle bound to a material id.
type Material struct {
	Name    string
	Barrier float32 // vacuum barrier energy; particles below it cannot enter vacuum
	Models  []ScatterModel
}

// ModelByKind returns the first scatter model of the given kind, if any.
func (m Material) ModelByKind(k ScatterKind) (ScatterModel, bool) {
	for _, sm := range m.Models {
		if sm.Kind == k {
			return sm, true
		}
	}
	return ScatterModel{}, false
}

// Load dispatches to the legacy binary loader or the hierarchical YAML
// loader based on the filename suffix, per spec §6: suffix ending in "t"
// is legacy, anything else is hierarchical.
func Load(path string) (Material, error) {
	if strings.HasSuffix(path, "t") {
		return loadLegacy(path)
	}
	return loadHierarchical(path)
}

// Flat constructs a minimal two-model Material for tests and the
// deterministic-physics stub: one elastic model, one inelastic model that
// always reduces energy by lossFraction, and the given barrier.
func Flat(name string, barrier float32, lossFraction float32) Material {
	return Material{
		Name:    name,
		Barrier: barrier,
		Models: []ScatterModel{
			{Kind: Elastic, MeanFreePath: 1},
			{Kind: Inelastic, MeanFreePath: 1, EnergyLoss: lossFraction},
		},
	}
}

// ErrTooFewMaterials is returned by CrossCheck when the geometry references
// a higher material id than the loaded material table can satisfy — a
// fatal InputInconsistent per spec §7.
type ErrTooFewMaterials struct {
	MaxReferenced int32
	Loaded        int
}

func (e ErrTooFewMaterials) Error() string {
	return fmt.Sprintf("material: geometry references material id %d but only %d materials were loaded", e.MaxReferenced, e.Loaded)
}

// CrossCheck enforces spec §4.5 step 3: max(material_id) + 1 <= len(materials),
// fatal if violated. Too many materials is a warning, not an error (spec
// §7); callers should log that case themselves using the returned bool.
func CrossCheck(maxMaterialID int32, loaded int) (tooMany bool, err error) {
	if maxMaterialID+1 > int32(loaded) {
		return false, ErrTooFewMaterials{MaxReferenced: maxMaterialID, Loaded: loaded}
	}
	return int32(loaded) > maxMaterialID+1, nil
}
