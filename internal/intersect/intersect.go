// Package intersect implements the Intersector contract of spec §4.6:
// given a particle (position, direction) and a geometry handle, find the
// next boundary crossing, or report there is none within the step.
package intersect

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/nebula-sim/nebula/internal/geometry"
)

// Hit describes the next triangle crossing found along a ray.
type Hit struct {
	TriangleIndex int
	Distance      float32
}

// Intersector finds the next boundary crossing for a ray against a
// geometry handle.
type Intersector interface {
	// Nearest returns the closest triangle crossing within [0, maxDist]
	// along dir from origin, or ok=false if none exists.
	Nearest(h *geometry.Handle, origin, dir mgl32.Vec3, maxDist float32) (hit Hit, ok bool)
}

// Octree is the default Intersector, traversing a geometry.Handle's octree
// and testing each candidate triangle with Möller–Trumbore.
type Octree struct{}

// Nearest implements Intersector.
func (Octree) Nearest(h *geometry.Handle, origin, dir mgl32.Vec3, maxDist float32) (Hit, bool) {
	best := Hit{Distance: maxDist}
	found := false

	h.Walk(origin, dir, maxDist, func(idx int) {
		tri := h.Triangle(idx)
		if d, ok := intersectTriangle(origin, dir, tri); ok && d >= 0 && d <= best.Distance {
			best = Hit{TriangleIndex: idx, Distance: d}
			found = true
		}
	})

	return best, found
}

const epsilon = 1e-7

// intersectTriangle is the standard Möller–Trumbore ray-triangle test.
func intersectTriangle(origin, dir mgl32.Vec3, tri geometry.Triangle) (float32, bool) {
	edge1 := tri.V1.Sub(tri.V0)
	edge2 := tri.V2.Sub(tri.V0)
	h := dir.Cross(edge2)
	a := edge1.Dot(h)
	if float32(math.Abs(float64(a))) < epsilon {
		return 0, false // ray parallel to triangle plane
	}

	f := 1 / a
	s := origin.Sub(tri.V0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := f * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := f * edge2.Dot(q)
	if t < epsilon {
		return 0, false
	}
	return t, true
}
