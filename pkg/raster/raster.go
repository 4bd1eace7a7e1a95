// Package raster provides the in-memory raster primitives of the
// analysis engine: dense 8-bit bands, boolean masks, zone
// rasterization, mask vectorization, and the projected-CRS
// reprojection fallback chain.
package raster

// Band is a dense 8-bit raster window in row-major order.
type Band struct {
	Width  int
	Height int
	Data   []uint8
}

// NewBand allocates a zeroed band.
func NewBand(width, height int) *Band {
	return &Band{Width: width, Height: height, Data: make([]uint8, width*height)}
}

// At returns the sample at (row, col).
func (b *Band) At(row, col int) uint8 { return b.Data[row*b.Width+col] }

// Set stores a sample at (row, col).
func (b *Band) Set(row, col int, v uint8) { b.Data[row*b.Width+col] = v }

// Mask is a dense boolean raster aligned to a Band. All masks derived
// from one tile pair share the same shape.
type Mask struct {
	Width  int
	Height int
	Data   []bool
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Data: make([]bool, width*height)}
}

// At returns the bit at (row, col).
func (m *Mask) At(row, col int) bool { return m.Data[row*m.Width+col] }

// Set stores a bit at (row, col).
func (m *Mask) Set(row, col int, v bool) { m.Data[row*m.Width+col] = v }

// SameShape reports whether two masks have identical dimensions.
func (m *Mask) SameShape(other *Mask) bool {
	return m.Width == other.Width && m.Height == other.Height
}

// And returns the elementwise intersection of two same-shape masks.
func (m *Mask) And(other *Mask) *Mask {
	out := NewMask(m.Width, m.Height)
	for i, v := range m.Data {
		out.Data[i] = v && other.Data[i]
	}

	return out
}

// CountTrue returns the number of set bits.
func (m *Mask) CountTrue() int {
	n := 0

	for _, v := range m.Data {
		if v {
			n++
		}
	}

	return n
}
