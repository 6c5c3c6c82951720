package geometry

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func singleDetectorTriangle() Triangle {
	return Triangle{
		V0:          mgl32.Vec3{-10, -10, 5},
		V1:          mgl32.Vec3{10, -10, 5},
		V2:          mgl32.Vec3{0, 10, 5},
		MaterialIn:  0,
		MaterialOut: -1,
		IsDetector:  true,
	}
}

func TestBuildRejectsEmpty(t *testing.T) {
	if _, err := Build(nil); err != ErrEmptyGeometry {
		t.Fatalf("Build(nil) error = %v, want ErrEmptyGeometry", err)
	}
}

func TestBuildBoundsContainsAllVertices(t *testing.T) {
	tris := Synthetic(8, 8, 42)
	h, err := Build(tris)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	bounds := h.Bounds()
	for _, tr := range tris {
		for _, v := range []mgl32.Vec3{tr.V0, tr.V1, tr.V2} {
			if !bounds.Contains(v) {
				t.Fatalf("vertex %v outside bounds %+v", v, bounds)
			}
		}
	}
}

func TestMaxMaterialID(t *testing.T) {
	tris := []Triangle{
		{MaterialIn: 0, MaterialOut: -1},
		{MaterialIn: 2, MaterialOut: 1},
	}
	h, err := Build(tris)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := h.MaxMaterialID(); got != 2 {
		t.Fatalf("MaxMaterialID() = %d, want 2", got)
	}
}

func TestWalkVisitsCandidateContainingRay(t *testing.T) {
	tri := singleDetectorTriangle()
	h, err := Build([]Triangle{tri})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	origin := mgl32.Vec3{0, 0, 0}
	dir := mgl32.Vec3{0, 0, 1}

	visited := 0
	h.Walk(origin, dir, 100, func(idx int) {
		visited++
		if idx != 0 {
			t.Errorf("unexpected triangle index %d", idx)
		}
	})
	if visited == 0 {
		t.Fatal("Walk visited no candidates for a ray that should hit the root leaf")
	}
}

func TestWalkSkipsNodesOutsideMaxDist(t *testing.T) {
	tri := singleDetectorTriangle()
	h, err := Build([]Triangle{tri})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	origin := mgl32.Vec3{0, 0, 0}
	dir := mgl32.Vec3{0, 0, 1}

	visited := 0
	h.Walk(origin, dir, 0.001, func(idx int) {
		visited++
	})
	if visited != 0 {
		t.Fatalf("Walk visited %d candidates for a ray segment far short of the geometry", visited)
	}
}

func TestSyntheticProducesDetectorRow(t *testing.T) {
	tris := Synthetic(4, 4, 7)
	if len(tris) == 0 {
		t.Fatal("Synthetic produced no triangles")
	}
	found := false
	for _, tr := range tris {
		if tr.IsDetector {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("Synthetic produced no detector triangles")
	}
}

func TestSyntheticRejectsTinyGrid(t *testing.T) {
	if got := Synthetic(1, 1, 0); got != nil {
		t.Fatalf("Synthetic(1,1,0) = %v, want nil", got)
	}
}
