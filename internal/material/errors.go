package material

import "errors"

// ErrInputMissing is returned when a material file is absent or empty,
// matching the InputMissing error kind of spec §7.
var ErrInputMissing = errors.New("material: input missing or empty")
