// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// TextureStagingData holds rgba32float texel data for a 2D texture, either staged for upload or
// decoded from a readback. Texels are stored row-major with 4 floats per texel.
type TextureStagingData struct {
	// Texels is the flattened texel data, 4 floats per texel, row by row.
	Texels []float32
	// Width is the width of the texture in texels.
	Width uint32
	// Height is the height of the texture in texels.
	Height uint32
}

// Texel returns the four channels of the texel at (x, y).
//
// Parameters:
//   - x: the column, 0 <= x < Width
//   - y: the row, 0 <= y < Height
//
// Returns:
//   - [4]float32: the r, g, b, a channels
func (t TextureStagingData) Texel(x, y uint32) [4]float32 {
	i := (y*t.Width + x) * 4
	return [4]float32{t.Texels[i], t.Texels[i+1], t.Texels[i+2], t.Texels[i+3]}
}

// SetTexel writes the four channels of the texel at (x, y).
func (t TextureStagingData) SetTexel(x, y uint32, v [4]float32) {
	i := (y*t.Width + x) * 4
	t.Texels[i], t.Texels[i+1], t.Texels[i+2], t.Texels[i+3] = v[0], v[1], v[2], v[3]
}
