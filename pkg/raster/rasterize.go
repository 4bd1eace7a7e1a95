package raster

import (
	"math"

	"github.com/ctessum/geom"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
)

// RasterizeZone burns a polygonal zone (already in the raster's CRS)
// into a boolean mask over a width x height grid with transform t.
//
// With allTouched=false a pixel is set when its center lies inside the
// zone. With allTouched=true every pixel any part of whose footprint
// intersects the zone is set; this intentionally over-counts at
// polygon boundaries and is the convention evidence artifacts are
// compared against.
func RasterizeZone(zone geom.Polygonal, t geo.Affine, width, height int, allTouched bool) (*Mask, error) {
	mask := NewMask(width, height)

	if zone == nil {
		return mask, nil
	}

	inverse, err := t.Invert()
	if err != nil {
		return nil, err
	}

	rings := collectRings(zone)
	if len(rings) == 0 {
		return mask, nil
	}

	// Pixel-space rings bound the scan region and drive edge tracing.
	pixelRings := make([][]geom.Point, len(rings))

	minCol, minRow := width, height
	maxCol, maxRow := -1, -1

	for i, ring := range rings {
		pixelRing := make([]geom.Point, len(ring))

		for j, pt := range ring {
			col, row := inverse.Apply(pt.X, pt.Y)
			pixelRing[j] = geom.Point{X: col, Y: row}

			minCol = min(minCol, int(math.Floor(col)))
			maxCol = max(maxCol, int(math.Ceil(col)))
			minRow = min(minRow, int(math.Floor(row)))
			maxRow = max(maxRow, int(math.Ceil(row)))
		}

		pixelRings[i] = pixelRing
	}

	minCol = max(minCol, 0)
	minRow = max(minRow, 0)
	maxCol = min(maxCol, width-1)
	maxRow = min(maxRow, height-1)

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			center := geom.Point{X: float64(col) + 0.5, Y: float64(row) + 0.5}
			if pointInRings(center, pixelRings) {
				mask.Set(row, col, true)
			}
		}
	}

	if allTouched {
		for _, ring := range pixelRings {
			traceRing(mask, ring)
		}
	}

	return mask, nil
}

// collectRings flattens a polygonal geometry into its rings.
func collectRings(p geom.Polygonal) [][]geom.Point {
	var rings [][]geom.Point

	switch g := p.(type) {
	case geom.Polygon:
		for _, ring := range g {
			if len(ring) >= 3 {
				rings = append(rings, ring)
			}
		}
	case geom.MultiPolygon:
		for _, poly := range g {
			rings = append(rings, collectRings(poly)...)
		}
	}

	return rings
}

// pointInRings is an even-odd containment test: holes cancel outer
// rings without needing orientation bookkeeping.
func pointInRings(pt geom.Point, rings [][]geom.Point) bool {
	inside := false

	for _, ring := range rings {
		n := len(ring)
		for i := 0; i < n; i++ {
			a := ring[i]
			b := ring[(i+1)%n]

			if (a.Y > pt.Y) != (b.Y > pt.Y) {
				x := a.X + (pt.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
				if pt.X < x {
					inside = !inside
				}
			}
		}
	}

	return inside
}

// traceRing marks every pixel a ring edge passes through (grid
// supercover), implementing the all-touched boundary semantics.
func traceRing(mask *Mask, ring []geom.Point) {
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		traceSegment(mask, a, b)
	}
}

// traceSegment marks every cell the segment from a to b passes through.
// It walks cell boundary crossings in order (Amanatides & Woo), so even
// a short chord clipping the corner of a cell marks it.
func traceSegment(mask *Mask, a, b geom.Point) {
	col := int(math.Floor(a.X))
	row := int(math.Floor(a.Y))
	endCol := int(math.Floor(b.X))
	endRow := int(math.Floor(b.Y))

	stepCol, tMaxX, tDeltaX := axisCrossings(a.X, b.X-a.X)
	stepRow, tMaxY, tDeltaY := axisCrossings(a.Y, b.Y-a.Y)

	setInBounds(mask, row, col)

	// The walk crosses exactly one boundary per step, so this many
	// steps reach the end cell.
	for remaining := absInt(endCol-col) + absInt(endRow-row); remaining > 0; remaining-- {
		if tMaxX < tMaxY {
			col += stepCol
			tMaxX += tDeltaX
		} else {
			row += stepRow
			tMaxY += tDeltaY
		}

		setInBounds(mask, row, col)
	}
}

// axisCrossings returns the step direction along one axis, the segment
// parameter of the first cell boundary crossing, and the parameter
// distance between consecutive crossings.
func axisCrossings(origin, delta float64) (step int, tMax, tDelta float64) {
	cell := math.Floor(origin)

	switch {
	case delta > 0:
		return 1, (cell + 1 - origin) / delta, 1 / delta
	case delta < 0:
		return -1, (origin - cell) / -delta, 1 / -delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func setInBounds(mask *Mask, row, col int) {
	if col >= 0 && col < mask.Width && row >= 0 && row < mask.Height {
		mask.Set(row, col, true)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
