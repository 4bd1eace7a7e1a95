package raster

import (
	"github.com/ctessum/geom/proj"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
)

// Directions of boundary-edge travel in (col, row) pixel space.
const (
	dirEast = iota
	dirSouth
	dirWest
	dirNorth
)

var dirDelta = [4][2]int{
	dirEast:  {1, 0},
	dirSouth: {0, 1},
	dirWest:  {-1, 0},
	dirNorth: {0, -1},
}

type vertex struct {
	col, row int
}

type boundaryEdge struct {
	start vertex
	dir   int
	used  bool
}

// Vectorize converts the true regions of a boolean mask into WGS84
// polygon features (GeoJSON-shaped Go values). Regions are traced with
// 4-connectivity; interior holes become polygon holes. Output order is
// deterministic for a given mask but callers are expected to sort
// features canonically before serialization.
func Vectorize(mask *Mask, t geo.Affine, crs *geo.CRS) ([]map[string]any, error) {
	edges, index := boundaryEdges(mask)
	if len(edges) == 0 {
		return nil, nil
	}

	rings := traceRings(edges, index)

	var toWGS84 proj.Transformer

	wgs84, err := geo.ResolveCRS(geo.CRSWGS84)
	if err != nil {
		return nil, err
	}

	if !crs.Equal(wgs84) {
		toWGS84, err = crs.NewTransform(wgs84)
		if err != nil {
			return nil, err
		}
	}

	polygons := groupRings(rings)
	features := make([]map[string]any, 0, len(polygons))

	for _, poly := range polygons {
		coords := make([][][]float64, 0, 1+len(poly.holes))

		outer, ringErr := ringCoordinates(poly.outer, t, toWGS84)
		if ringErr != nil {
			return nil, ringErr
		}

		coords = append(coords, outer)

		for _, hole := range poly.holes {
			ring, holeErr := ringCoordinates(hole, t, toWGS84)
			if holeErr != nil {
				return nil, holeErr
			}

			coords = append(coords, ring)
		}

		features = append(features, map[string]any{
			"type":       "Feature",
			"properties": map[string]any{},
			"geometry": map[string]any{
				"type":        "Polygon",
				"coordinates": coords,
			},
		})
	}

	return features, nil
}

// boundaryEdges emits one directed edge per pixel side facing a false
// or out-of-raster neighbor, oriented so the true region lies to the
// right of travel.
func boundaryEdges(mask *Mask) ([]*boundaryEdge, map[vertex][]*boundaryEdge) {
	var edges []*boundaryEdge

	index := make(map[vertex][]*boundaryEdge)

	add := func(col, row, dir int) {
		e := &boundaryEdge{start: vertex{col: col, row: row}, dir: dir}
		edges = append(edges, e)
		index[e.start] = append(index[e.start], e)
	}

	for row := 0; row < mask.Height; row++ {
		for col := 0; col < mask.Width; col++ {
			if !mask.At(row, col) {
				continue
			}

			if row == 0 || !mask.At(row-1, col) {
				add(col, row, dirEast)
			}

			if col == mask.Width-1 || !mask.At(row, col+1) {
				add(col+1, row, dirSouth)
			}

			if row == mask.Height-1 || !mask.At(row+1, col) {
				add(col+1, row+1, dirWest)
			}

			if col == 0 || !mask.At(row, col-1) {
				add(col, row+1, dirNorth)
			}
		}
	}

	return edges, index
}

// traceRings links directed edges into closed rings. At a vertex shared
// by diagonally-touching regions the walk prefers the sharpest right
// turn, which keeps 4-connected regions separate.
func traceRings(edges []*boundaryEdge, index map[vertex][]*boundaryEdge) [][]vertex {
	var rings [][]vertex

	for _, start := range edges {
		if start.used {
			continue
		}

		var ring []vertex

		current := start
		for {
			current.used = true
			ring = append(ring, current.start)

			end := vertex{
				col: current.start.col + dirDelta[current.dir][0],
				row: current.start.row + dirDelta[current.dir][1],
			}
			if end == start.start {
				break
			}

			next := pickNext(index[end], current.dir)
			if next == nil {
				break // malformed; should not happen for well-formed masks
			}

			current = next
		}

		rings = append(rings, compressRing(ring))
	}

	return rings
}

func pickNext(candidates []*boundaryEdge, incomingDir int) *boundaryEdge {
	// Right turn hugs the region interior; straight continues the run;
	// left turn is the concave case.
	for _, turn := range []int{1, 0, 3} {
		want := (incomingDir + turn) % 4
		for _, e := range candidates {
			if !e.used && e.dir == want {
				return e
			}
		}
	}

	return nil
}

// compressRing drops collinear lattice points, keeping only corners.
func compressRing(ring []vertex) []vertex {
	n := len(ring)
	if n < 3 {
		return ring
	}

	out := make([]vertex, 0, n)

	for i := 0; i < n; i++ {
		prev := ring[(i-1+n)%n]
		cur := ring[i]
		next := ring[(i+1)%n]

		straight := (prev.col == cur.col && cur.col == next.col) ||
			(prev.row == cur.row && cur.row == next.row)
		if !straight {
			out = append(out, cur)
		}
	}

	return out
}

type tracedPolygon struct {
	outer []vertex
	holes [][]vertex
}

// groupRings splits rings into outer boundaries and holes by signed
// area, then assigns each hole to the outer ring containing it.
func groupRings(rings [][]vertex) []tracedPolygon {
	var (
		outers []tracedPolygon
		holes  [][]vertex
	)

	for _, ring := range rings {
		if signedArea(ring) > 0 {
			outers = append(outers, tracedPolygon{outer: ring})
		} else {
			holes = append(holes, ring)
		}
	}

	for _, hole := range holes {
		probe := holeProbePoint(hole)

		for i := range outers {
			if pointInLatticeRing(probe, outers[i].outer) {
				outers[i].holes = append(outers[i].holes, hole)

				break
			}
		}
	}

	return outers
}

// signedArea is the shoelace sum in pixel space; positive for the
// clockwise-on-screen orientation boundaryEdges gives outer rings.
func signedArea(ring []vertex) float64 {
	sum := 0.0

	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		sum += float64(a.col)*float64(b.row) - float64(b.col)*float64(a.row)
	}

	return sum / 2
}

// holeProbePoint returns a point just inside the region a hole ring
// borders (the true region lies right of edge travel).
func holeProbePoint(hole []vertex) [2]float64 {
	a := hole[0]
	b := hole[1%len(hole)]

	midX := (float64(a.col) + float64(b.col)) / 2
	midY := (float64(a.row) + float64(b.row)) / 2

	// Right normal of (dx, dy) in screen coordinates is (-dy, dx).
	dx := float64(b.col - a.col)
	dy := float64(b.row - a.row)

	const offset = 0.25

	return [2]float64{midX - dy*offset, midY + dx*offset}
}

func pointInLatticeRing(pt [2]float64, ring []vertex) bool {
	inside := false

	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]

		ay, by := float64(a.row), float64(b.row)
		if (ay > pt[1]) != (by > pt[1]) {
			x := float64(a.col) + (pt[1]-ay)/(by-ay)*(float64(b.col)-float64(a.col))
			if pt[0] < x {
				inside = !inside
			}
		}
	}

	return inside
}

func ringCoordinates(ring []vertex, t geo.Affine, toWGS84 proj.Transformer) ([][]float64, error) {
	coords := make([][]float64, 0, len(ring)+1)

	for _, v := range ring {
		x, y := t.Apply(float64(v.col), float64(v.row))

		if toWGS84 != nil {
			var err error

			x, y, err = toWGS84(x, y)
			if err != nil {
				return nil, err
			}
		}

		coords = append(coords, []float64{x, y})
	}

	coords = append(coords, coords[0])

	return coords, nil
}
