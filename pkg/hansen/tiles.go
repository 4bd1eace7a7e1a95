// Package hansen implements forest-change analysis over the Hansen
// Global Forest Change dataset: tile location and acquisition, layer
// pairing, mask algebra, zonal statistics and evidence assembly.
package hansen

import (
	"fmt"
	"math"
	"sort"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
)

// Hansen layer names.
const (
	LayerTreeCover = "treecover2000"
	LayerLossYear  = "lossyear"
)

// DefaultLayers are the two layers every analysis needs, in pairing order.
var DefaultLayers = []string{LayerTreeCover, LayerLossYear}

const (
	tileBandDegrees = 10
	// bandEpsilon keeps bbox edges that sit exactly on a tile boundary
	// from pulling in the neighboring tile.
	bandEpsilon = 1e-9
)

// FormatTileID renders a tile name from its northern-edge latitude and
// western-edge longitude, both multiples of ten degrees.
func FormatTileID(latNorth, lonWest int) string {
	latPrefix := "N"
	if latNorth < 0 {
		latPrefix = "S"
	}

	lonPrefix := "E"
	if lonWest < 0 {
		lonPrefix = "W"
	}

	return fmt.Sprintf("%s%02d_%s%03d", latPrefix, abs(latNorth), lonPrefix, abs(lonWest))
}

// TileIDsForBBox returns the sorted, deduplicated Hansen tile IDs
// covering a WGS84 bounding box. Tile names carry the NORTHERN edge of
// the latitude band and the western edge of the longitude band.
func TileIDsForBBox(bbox geo.BBox) []string {
	latBands := latBandRange(bbox.MinY, bbox.MaxY)
	lonBands := lonBandRange(bbox.MinX, bbox.MaxX)

	seen := make(map[string]struct{}, len(latBands)*len(lonBands))
	ids := make([]string, 0, len(latBands)*len(lonBands))

	for _, lat := range latBands {
		for _, lon := range lonBands {
			id := FormatTileID(lat, lon)
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids
}

// lonBandStart floors to the tile's western edge.
func lonBandStart(v float64) int {
	return int(math.Floor(v/tileBandDegrees)) * tileBandDegrees
}

// latBandStart ceils to the tile's northern edge, which is what the
// tile name encodes.
func latBandStart(v float64) int {
	return int(math.Ceil(v/tileBandDegrees)) * tileBandDegrees
}

func lonBandRange(minV, maxV float64) []int {
	start := lonBandStart(minV)
	stop := lonBandStart(maxV - bandEpsilon)

	var bands []int
	for b := start; b <= stop; b += tileBandDegrees {
		bands = append(bands, b)
	}

	return bands
}

func latBandRange(minV, maxV float64) []int {
	start := latBandStart(minV + bandEpsilon)
	stop := latBandStart(maxV - bandEpsilon)

	var bands []int
	for b := start; b <= stop; b += tileBandDegrees {
		bands = append(bands, b)
	}

	return bands
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
