package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"
)

// Synthetic tessellates a width x depth grid of vertices ((width-1) x
// (depth-1) unit cells, two triangles each) into a rough surface displaced
// by simplex noise, flagging the final cell row's triangles as
// a detector plane. It exists purely so tests and benchmarks can exercise
// the Intersector and octree without an externally authored .tri file; the
// real triangle-file format remains out of scope (spec §1, §6).
func Synthetic(width, depth int, seed int64) []Triangle {
	if width < 2 || depth < 2 {
		return nil
	}

	noise := opensimplex.NewNormalized(seed)
	height := func(x, z int) float32 {
		return float32(noise.Eval2(float64(x)*0.3, float64(z)*0.3)) * 2
	}

	tris := make([]Triangle, 0, (width-1)*(depth-1)*2)
	for z := 0; z < depth-1; z++ {
		for x := 0; x < width-1; x++ {
			v00 := mgl32.Vec3{float32(x), height(x, z), float32(z)}
			v10 := mgl32.Vec3{float32(x + 1), height(x+1, z), float32(z)}
			v01 := mgl32.Vec3{float32(x), height(x, z+1), float32(z + 1)}
			v11 := mgl32.Vec3{float32(x + 1), height(x+1, z+1), float32(z + 1)}

			isDetector := z == depth-2
			tris = append(tris,
				Triangle{V0: v00, V1: v10, V2: v01, MaterialIn: 0, MaterialOut: -1, IsDetector: isDetector},
				Triangle{V0: v10, V1: v11, V2: v01, MaterialIn: 0, MaterialOut: -1, IsDetector: isDetector},
			)
		}
	}
	return tris
}
