package geometry

import "errors"

// ErrEmptyGeometry is returned by Build when given zero triangles, matching
// spec §6: "Empty file is an error".
var ErrEmptyGeometry = errors.New("geometry: empty triangle list")
