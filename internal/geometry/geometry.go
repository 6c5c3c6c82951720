// Package geometry provides the triangulated-surface acceleration structure
// the Intersector traverses: triangles, axis-aligned bounding boxes, and an
// octree built once from a triangle list. Build starts from an in-memory
// triangle slice however it was obtained; LoadTriangles (loader.go) reads
// one such slice from this package's own binary triangle layout.
package geometry

import "github.com/go-gl/mathgl/mgl32"

// Triangle is one boundary face of the geometry. MaterialIn/MaterialOut are
// material ids on either side of the face (VacuumMaterial for vacuum).
type Triangle struct {
	V0, V1, V2  mgl32.Vec3
	MaterialIn  int32
	MaterialOut int32
	IsDetector  bool
}

// Normal returns the (unnormalized) face normal via the right-hand rule on
// (V1-V0) x (V2-V0).
func (t Triangle) Normal() mgl32.Vec3 {
	e1 := t.V1.Sub(t.V0)
	e2 := t.V2.Sub(t.V0)
	return e1.Cross(e2)
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Contains reports whether p lies within the box (inclusive).
func (b AABB) Contains(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

func (b AABB) extend(p mgl32.Vec3) AABB {
	return AABB{
		Min: mgl32.Vec3{min(b.Min.X(), p.X()), min(b.Min.Y(), p.Y()), min(b.Min.Z(), p.Z())},
		Max: mgl32.Vec3{max(b.Max.X(), p.X()), max(b.Max.Y(), p.Y()), max(b.Max.Z(), p.Z())},
	}
}

func (b AABB) centroid() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func triangleBounds(t Triangle) AABB {
	b := AABB{Min: t.V0, Max: t.V0}
	b = b.extend(t.V1)
	b = b.extend(t.V2)
	return b
}

// Handle is the opaque, immutable, read-only acceleration structure built
// from a triangle list. It satisfies the Geometry handle contract of
// spec §3/§4.6: an AABB and a ray-traversal entry point.
type Handle struct {
	triangles []Triangle
	bounds    AABB
	root      *octNode
}

const (
	maxLeafTriangles = 8
	maxDepth         = 24
)

type octNode struct {
	bounds   AABB
	tris     []int // indices into Handle.triangles, leaf only
	children [8]*octNode
}

// Build constructs an immutable octree over tris. An empty triangle list is
// a caller error (spec §6: "Empty file is an error") and is reported as
// such rather than producing a degenerate handle.
func Build(tris []Triangle) (*Handle, error) {
	if len(tris) == 0 {
		return nil, ErrEmptyGeometry
	}

	bounds := triangleBounds(tris[0])
	for _, t := range tris[1:] {
		tb := triangleBounds(t)
		bounds = bounds.extend(tb.Min)
		bounds = bounds.extend(tb.Max)
	}
	// Pad slightly so triangles exactly on the boundary are never missed
	// due to float rounding.
	pad := bounds.Max.Sub(bounds.Min).Mul(1e-4).Add(mgl32.Vec3{1e-6, 1e-6, 1e-6})
	bounds.Min = bounds.Min.Sub(pad)
	bounds.Max = bounds.Max.Add(pad)

	idx := make([]int, len(tris))
	for i := range idx {
		idx[i] = i
	}

	h := &Handle{triangles: tris, bounds: bounds}
	h.root = h.build(bounds, idx, 0)
	return h, nil
}

func (h *Handle) build(bounds AABB, idx []int, depth int) *octNode {
	n := &octNode{bounds: bounds}
	if len(idx) <= maxLeafTriangles || depth >= maxDepth {
		n.tris = idx
		return n
	}

	center := bounds.centroid()
	buckets := make([][]int, 8)
	for _, i := range idx {
		tb := triangleBounds(h.triangles[i])
		c := tb.centroid()
		octant := 0
		if c.X() > center.X() {
			octant |= 1
		}
		if c.Y() > center.Y() {
			octant |= 2
		}
		if c.Z() > center.Z() {
			octant |= 4
		}
		buckets[octant] = append(buckets[octant], i)
	}

	// If the split failed to separate anything (degenerate/coincident
	// centroids), stop subdividing and make a leaf instead of recursing
	// forever.
	largest := 0
	for _, b := range buckets {
		if len(b) > largest {
			largest = len(b)
		}
	}
	if largest == len(idx) {
		n.tris = idx
		return n
	}

	for octant, b := range buckets {
		if len(b) == 0 {
			continue
		}
		childBounds := octantBounds(bounds, center, octant)
		n.children[octant] = h.build(childBounds, b, depth+1)
	}
	return n
}

func octantBounds(parent AABB, center mgl32.Vec3, octant int) AABB {
	b := parent
	if octant&1 == 0 {
		b.Max[0] = center.X()
	} else {
		b.Min[0] = center.X()
	}
	if octant&2 == 0 {
		b.Max[1] = center.Y()
	} else {
		b.Min[1] = center.Y()
	}
	if octant&4 == 0 {
		b.Max[2] = center.Z()
	} else {
		b.Min[2] = center.Z()
	}
	return b
}

// Bounds returns the geometry's axis-aligned bounding box.
func (h *Handle) Bounds() AABB {
	return h.bounds
}

// Triangle returns the triangle at index i.
func (h *Handle) Triangle(i int) Triangle {
	return h.triangles[i]
}

// Count returns the number of triangles in the geometry.
func (h *Handle) Count() int {
	return len(h.triangles)
}

// MaxMaterialID returns the highest material id referenced by any triangle
// face, or -1 if every triangle borders vacuum on both sides.
func (h *Handle) MaxMaterialID() int32 {
	max32 := int32(-1)
	for _, t := range h.triangles {
		if t.MaterialIn > max32 {
			max32 = t.MaterialIn
		}
		if t.MaterialOut > max32 {
			max32 = t.MaterialOut
		}
	}
	return max32
}

// Walk visits every leaf node whose bounds could contain a ray from origin
// in direction dir within [0, maxDist], calling visit with each candidate
// triangle index. Traversal order is unspecified; visit may be called with
// duplicate indices if a triangle's bounds span multiple leaves (it will
// not, since triangles are not split across nodes in this builder, but
// callers should not rely on that).
func (h *Handle) Walk(origin, dir mgl32.Vec3, maxDist float32, visit func(triIdx int)) {
	walkNode(h.root, origin, dir, maxDist, visit)
}

func walkNode(n *octNode, origin, dir mgl32.Vec3, maxDist float32, visit func(int)) {
	if n == nil {
		return
	}
	if !rayAABB(n.bounds, origin, dir, maxDist) {
		return
	}
	if n.tris != nil {
		for _, i := range n.tris {
			visit(i)
		}
		return
	}
	for _, c := range n.children {
		walkNode(c, origin, dir, maxDist, visit)
	}
}

// rayAABB is the standard slab test, reporting whether the ray segment
// [0, maxDist] along dir from origin intersects box at all.
func rayAABB(box AABB, origin, dir mgl32.Vec3, maxDist float32) bool {
	tmin, tmax := float32(0), maxDist
	for axis := 0; axis < 3; axis++ {
		o, d := origin[axis], dir[axis]
		lo, hi := box.Min[axis], box.Max[axis]
		if d == 0 {
			if o < lo || o > hi {
				return false
			}
			continue
		}
		inv := 1 / d
		t0 := (lo - o) * inv
		t1 := (hi - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return false
		}
	}
	return true
}

func min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
