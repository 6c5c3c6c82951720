package geometry

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"
)

// triangleRecordSize is this package's own choice of on-disk triangle
// layout: 9 little-endian float32 vertex components, two int32 material
// ids, and a uint32 detector flag. The exact byte layout is unspecified by
// spec.md §1 ("the on-disk layout of triangle ... files" is out of scope);
// only the loader's observable contract in §6 is spec'd: empty file is an
// error, and a valid file decodes to the same Triangle values Build
// already accepts.
const triangleRecordSize = 9*4 + 2*4 + 4

// LoadTriangles reads a triangle list file in this package's binary
// layout and returns the decoded triangles, ready for Build.
func LoadTriangles(path string) ([]Triangle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("geometry: %s: %w", path, ErrEmptyGeometry)
		}
		return nil, fmt.Errorf("geometry: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("geometry: %s: %w", path, ErrEmptyGeometry)
	}
	if len(data)%triangleRecordSize != 0 {
		return nil, fmt.Errorf("geometry: %s: truncated triangle record", path)
	}

	n := len(data) / triangleRecordSize
	tris := make([]Triangle, n)
	for i := 0; i < n; i++ {
		rec := data[i*triangleRecordSize : (i+1)*triangleRecordSize]
		getFloat := func(off int) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(rec[off : off+4]))
		}
		tris[i] = Triangle{
			V0:          mgl32.Vec3{getFloat(0), getFloat(4), getFloat(8)},
			V1:          mgl32.Vec3{getFloat(12), getFloat(16), getFloat(20)},
			V2:          mgl32.Vec3{getFloat(24), getFloat(28), getFloat(32)},
			MaterialIn:  int32(binary.LittleEndian.Uint32(rec[36:40])),
			MaterialOut: int32(binary.LittleEndian.Uint32(rec[40:44])),
			IsDetector:  binary.LittleEndian.Uint32(rec[44:48]) != 0,
		}
	}
	return tris, nil
}
