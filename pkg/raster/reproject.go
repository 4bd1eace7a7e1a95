package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
)

// ErrEmptyEnvelope reports a reprojection whose forward-transformed
// bounds collapsed to nothing, typically from projecting coordinates
// outside the target CRS' domain of validity.
var ErrEmptyEnvelope = errors.New("raster: reprojected envelope is empty")

const densifyPointsPerEdge = 21

// Grid couples pixel bands with their georeferencing. Valid marks the
// pixels that carry real data; resampling never invents data outside it.
type Grid struct {
	Bands     []*Band
	Valid     *Mask
	Transform geo.Affine
	CRS       *geo.CRS
}

// ReprojectOutcome records how a projected-CRS request was satisfied.
type ReprojectOutcome struct {
	Grid *Grid
	// Reprojected is false when the source grid was returned unchanged,
	// either because it was already projected or because every candidate
	// CRS failed.
	Reprojected bool
	// Attempts lists the CRS codes tried, in order, with the error for
	// each failed attempt.
	Attempts []ReprojectAttempt
}

// ReprojectAttempt is one step of the target-then-fallback chain.
type ReprojectAttempt struct {
	CRS string
	Err error
}

// ToProjected resamples a geographic grid into a projected CRS so pixel
// areas become constant. The target CRS is tried first, then the Web
// Mercator fallback; if both fail the original grid is returned with
// Reprojected false. Grids already in a projected CRS pass through
// untouched.
func ToProjected(src *Grid, targetCRS string) (*ReprojectOutcome, error) {
	if !src.CRS.Geographic() {
		return &ReprojectOutcome{Grid: src, Reprojected: true}, nil
	}

	outcome := &ReprojectOutcome{Grid: src}

	candidates := []string{targetCRS}
	if targetCRS != geo.CRSWebMercator {
		candidates = append(candidates, geo.CRSWebMercator)
	}

	for _, code := range candidates {
		dst, err := reprojectGrid(src, code)
		if err != nil {
			outcome.Attempts = append(outcome.Attempts, ReprojectAttempt{CRS: code, Err: err})

			continue
		}

		outcome.Attempts = append(outcome.Attempts, ReprojectAttempt{CRS: code})
		outcome.Grid = dst
		outcome.Reprojected = true

		break
	}

	return outcome, nil
}

// reprojectGrid resamples src into the named CRS with nearest-neighbor
// lookups through the inverse transform. The destination keeps the
// source pixel count; its transform is derived from the densified
// source boundary.
func reprojectGrid(src *Grid, code string) (*Grid, error) {
	dstCRS, err := geo.ResolveCRS(code)
	if err != nil {
		return nil, err
	}

	forward, err := src.CRS.NewTransform(dstCRS)
	if err != nil {
		return nil, err
	}

	inverse, err := dstCRS.NewTransform(src.CRS)
	if err != nil {
		return nil, err
	}

	width := src.Valid.Width
	height := src.Valid.Height

	minX, minY, maxX, maxY, err := projectedEnvelope(src.Transform, width, height, forward)
	if err != nil {
		return nil, err
	}

	dstTransform := geo.Affine{
		A: (maxX - minX) / float64(width),
		C: minX,
		E: -(maxY - minY) / float64(height),
		F: maxY,
	}

	srcInv, err := src.Transform.Invert()
	if err != nil {
		return nil, err
	}

	dst := &Grid{
		Bands:     make([]*Band, len(src.Bands)),
		Valid:     NewMask(width, height),
		Transform: dstTransform,
		CRS:       dstCRS,
	}
	for i, band := range src.Bands {
		if band.Width != width || band.Height != height {
			return nil, fmt.Errorf("raster: band %d is %dx%d, want %dx%d", i, band.Width, band.Height, width, height)
		}

		dst.Bands[i] = NewBand(width, height)
	}

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := dstTransform.Apply(float64(col)+0.5, float64(row)+0.5)

			sx, sy, tErr := inverse(x, y)
			if tErr != nil {
				continue
			}

			fc, fr := srcInv.Apply(sx, sy)

			sc := int(math.Floor(fc))
			sr := int(math.Floor(fr))

			if sc < 0 || sc >= width || sr < 0 || sr >= height {
				continue
			}

			if !src.Valid.At(sr, sc) {
				continue
			}

			dst.Valid.Set(row, col, true)

			for i, band := range src.Bands {
				dst.Bands[i].Set(row, col, band.At(sr, sc))
			}
		}
	}

	return dst, nil
}

// projectedEnvelope forward-projects densified points along the source
// boundary and returns the bounding envelope in the destination CRS.
func projectedEnvelope(t geo.Affine, width, height int, forward func(x, y float64) (float64, float64, error)) (minX, minY, maxX, maxY float64, err error) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)

	w := float64(width)
	h := float64(height)

	sample := func(col, row float64) error {
		x, y := t.Apply(col, row)

		px, py, sErr := forward(x, y)
		if sErr != nil {
			return sErr
		}

		if math.IsNaN(px) || math.IsInf(px, 0) || math.IsNaN(py) || math.IsInf(py, 0) {
			return fmt.Errorf("raster: non-finite projected coordinate at pixel (%g, %g)", col, row)
		}

		minX = math.Min(minX, px)
		minY = math.Min(minY, py)
		maxX = math.Max(maxX, px)
		maxY = math.Max(maxY, py)

		return nil
	}

	steps := densifyPointsPerEdge - 1
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)

		for _, pt := range [4][2]float64{
			{f * w, 0},
			{f * w, h},
			{0, f * h},
			{w, f * h},
		} {
			if sErr := sample(pt[0], pt[1]); sErr != nil {
				return 0, 0, 0, 0, sErr
			}
		}
	}

	if !(maxX > minX) || !(maxY > minY) {
		return 0, 0, 0, 0, ErrEmptyEnvelope
	}

	return minX, minY, maxX, maxY, nil
}
