// Package geo provides the geometric primitives shared by the raster
// analysis engine: affine pixel transforms, CRS resolution and
// transformation, geodesic pixel areas, and GeoJSON geometry loading.
package geo

import "errors"

// ErrSingularTransform indicates the affine transform cannot be inverted.
var ErrSingularTransform = errors.New("singular affine transform")

// Affine maps pixel coordinates to world coordinates:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// For north-up rasters B and D are zero, A is the pixel width and E is
// the (negative) pixel height.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Apply converts a (col, row) pixel coordinate to world coordinates.
// Fractional pixel coordinates are valid; (0, 0) is the top-left corner
// of the top-left pixel.
func (t Affine) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// Invert returns the inverse transform, mapping world coordinates back
// to fractional pixel coordinates.
func (t Affine) Invert() (Affine, error) {
	det := t.A*t.E - t.B*t.D
	if det == 0 {
		return Affine{}, ErrSingularTransform
	}

	inv := 1 / det

	return Affine{
		A: t.E * inv,
		B: -t.B * inv,
		C: (t.B*t.F - t.E*t.C) * inv,
		D: -t.D * inv,
		E: t.A * inv,
		F: (t.D*t.C - t.A*t.F) * inv,
	}, nil
}

// Translate returns the transform shifted by whole pixels, the
// transform of a window whose top-left pixel is (col0, row0).
func (t Affine) Translate(col0, row0 int) Affine {
	x, y := t.Apply(float64(col0), float64(row0))

	shifted := t
	shifted.C = x
	shifted.F = y

	return shifted
}

// Bounds returns the world-coordinate bounding box of a raster with
// the given size under this transform.
func (t Affine) Bounds(width, height int) (minX, minY, maxX, maxY float64) {
	corners := [4][2]float64{
		{0, 0},
		{float64(width), 0},
		{0, float64(height)},
		{float64(width), float64(height)},
	}

	for i, c := range corners {
		x, y := t.Apply(c[0], c[1])
		if i == 0 || x < minX {
			minX = x
		}

		if i == 0 || x > maxX {
			maxX = x
		}

		if i == 0 || y < minY {
			minY = y
		}

		if i == 0 || y > maxY {
			maxY = y
		}
	}

	return minX, minY, maxX, maxY
}
