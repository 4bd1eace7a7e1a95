package hansen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
	"github.com/Sumatoshi-tech/canopy/pkg/safeconv"
)

// landUseFields is the fixed probe order for a parcel's land-use
// designation. The first non-empty property wins, resolved once when
// the parcel is built.
var landUseFields = []string{
	"land_use_designation",
	"land_use_code",
	"siht1",
	"land_use",
	"sihtotstarve",
}

// Parcel is a cadastral unit whose Hansen land and forest area is
// reported alongside the AOI-level metrics.
type Parcel struct {
	ID       string
	Geometry geom.Polygonal
	// LandUseDesignation is resolved from properties at construction.
	LandUseDesignation string
}

// NewParcel builds a parcel, resolving the land-use designation from
// its GeoJSON properties.
func NewParcel(id string, geometry geom.Polygonal, properties map[string]any) Parcel {
	return Parcel{
		ID:                 id,
		Geometry:           geometry,
		LandUseDesignation: landUseDesignation(properties),
	}
}

func landUseDesignation(properties map[string]any) string {
	for _, field := range landUseFields {
		if raw, ok := properties[field]; ok {
			if s, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					return trimmed
				}
			}
		}
	}

	return ""
}

// parcelIDFields is the probe order for a parcel's identifier when the
// feature carries no top-level id.
var parcelIDFields = []string{"parcel_id", "id", "tunnus", "cadastral_id"}

// ErrNotFeatureCollection reports a parcels document of the wrong type.
var ErrNotFeatureCollection = errors.New("hansen: parcels GeoJSON must be a FeatureCollection")

type parcelFeature struct {
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type parcelCollection struct {
	Type     string          `json:"type"`
	Features []parcelFeature `json:"features"`
}

// LoadParcels reads a WGS84 GeoJSON FeatureCollection of cadastral
// parcels. Parcel IDs come from the feature id or, failing that, from
// the first matching identifier property; features without either are
// numbered by position.
func LoadParcels(path string) ([]Parcel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hansen: read parcels %s: %w", path, err)
	}

	var doc parcelCollection

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("hansen: parse parcels GeoJSON: %w", err)
	}

	if doc.Type != "FeatureCollection" {
		return nil, ErrNotFeatureCollection
	}

	parcels := make([]Parcel, 0, len(doc.Features))

	for i, feature := range doc.Features {
		geometry, decodeErr := geo.DecodeAOI(feature.Geometry)
		if decodeErr != nil {
			return nil, fmt.Errorf("hansen: parcel feature %d: %w", i, decodeErr)
		}

		parcels = append(parcels, NewParcel(parcelID(feature, i), geometry, feature.Properties))
	}

	return parcels, nil
}

func parcelID(feature parcelFeature, index int) string {
	if id := identifierString(feature.ID); id != "" {
		return id
	}

	for _, field := range parcelIDFields {
		if id := identifierString(feature.Properties[field]); id != "" {
			return id
		}
	}

	return fmt.Sprintf("parcel_%d", index+1)
}

func identifierString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		if f, ok := safeconv.ToFloat64(raw); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}

		return ""
	}
}

// LandUseDesignationCounts tallies the designations across parcels.
// Parcels without one are skipped.
func LandUseDesignationCounts(parcels []Parcel) map[string]int {
	counts := make(map[string]int)

	for _, p := range parcels {
		if p.LandUseDesignation == "" {
			continue
		}

		counts[p.LandUseDesignation]++
	}

	return counts
}

// ParcelStats is the Hansen-derived area summary for one parcel.
type ParcelStats struct {
	ParcelID     string
	LandAreaHa   float64
	ForestAreaHa float64
}

// ParcelStatsOptions configures ComputeParcelStats.
type ParcelStatsOptions struct {
	TileDir                string
	CanopyThresholdPercent int
	EndYear                int
	// AllTouched burns boundary-touching pixels into parcel zones.
	// Off by default: center-only rasterization compares better with
	// cadastral vector areas.
	AllTouched bool
	// IncludeOnlyLandUseDesignation keeps only parcels whose resolved
	// designation matches; empty keeps all.
	IncludeOnlyLandUseDesignation string
	// Summer chooses the area accumulation strategy; nil is sequential.
	Summer AreaSummer
}

// parcelItem makes a reprojected parcel geometry searchable in an
// r-tree, which prunes parcels that cannot touch a tile.
type parcelItem struct {
	geom.Polygonal

	index  int
	bounds *geom.Bounds
}

func (p *parcelItem) Bounds() *geom.Bounds { return p.bounds }

// ComputeParcelStats rasterizes each parcel over every tile pair and
// accumulates its Hansen land area (valid pixels in the parcel) and
// forest area (forest-at-end-year pixels in the parcel). Parcel
// geometries are WGS84.
func ComputeParcelStats(parcels []Parcel, opts ParcelStatsOptions) (map[string]ParcelStats, error) {
	kept := make([]Parcel, 0, len(parcels))

	for _, p := range parcels {
		if p.Geometry == nil {
			continue
		}

		if opts.IncludeOnlyLandUseDesignation != "" &&
			p.LandUseDesignation != strings.TrimSpace(opts.IncludeOnlyLandUseDesignation) {
			continue
		}

		kept = append(kept, p)
	}

	if len(kept) == 0 {
		return map[string]ParcelStats{}, nil
	}

	stats := make(map[string]ParcelStats, len(kept))
	for _, p := range kept {
		stats[p.ID] = ParcelStats{ParcelID: p.ID}
	}

	source := NewLocalTileSource(opts.TileDir)

	treeFiles, err := source.ListLayerFiles(LayerTreeCover)
	if err != nil {
		return nil, err
	}

	lossFiles, err := source.ListLayerFiles(LayerLossYear)
	if err != nil {
		return nil, err
	}

	pairs, err := PairTiles(treeFiles, lossFiles)
	if err != nil {
		return nil, err
	}

	wgs84, err := geo.ResolveCRS(geo.CRSWGS84)
	if err != nil {
		return nil, err
	}

	// Geometries reprojected once per raster CRS, indexed for overlap
	// pruning.
	trees := make(map[string]*rtree.Rtree)

	for _, pair := range pairs {
		td, loadErr := loadTilePair(pair.TreeCoverPath, pair.LossYearPath, nil, nil)
		if loadErr != nil {
			return nil, loadErr
		}

		index, ok := trees[td.CRS.String()]
		if !ok {
			index = rtree.NewTree(25, 50)

			for i, p := range kept {
				reprojected, tErr := wgs84.TransformGeom(p.Geometry, td.CRS)
				if tErr != nil {
					return nil, fmt.Errorf("hansen: reproject parcel %s: %w", p.ID, tErr)
				}

				poly, isPoly := reprojected.(geom.Polygonal)
				if !isPoly {
					return nil, fmt.Errorf("hansen: parcel %s reprojected to non-polygonal geometry", p.ID)
				}

				index.Insert(&parcelItem{Polygonal: poly, index: i, bounds: poly.Bounds()})
			}

			trees[td.CRS.String()] = index
		}

		rfm := ReferenceForestMask(td.Tree, td.Valid, opts.CanopyThresholdPercent)
		forestEnd := ForestEndYearMask(rfm, td.Loss, opts.EndYear)

		var areas *geo.AreaRaster
		if td.CRS.Geographic() {
			areas = geo.NewGeodesicAreaRaster(td.Transform, td.Width, td.Height)
		} else {
			areas = geo.NewProjectedAreaRaster(td.Transform, td.Width, td.Height)
		}

		tileBounds := transformBounds(td.Transform, td.Width, td.Height)

		hits := index.SearchIntersect(tileBounds)
		for _, hit := range hits {
			item := hit.(*parcelItem)
			parcel := kept[item.index]

			zone, rErr := raster.RasterizeZone(item.Polygonal,td.Transform, td.Width, td.Height, opts.AllTouched)
			if rErr != nil {
				return nil, rErr
			}

			zoneValid := zone.And(td.Valid)
			if zoneValid.CountTrue() == 0 {
				continue
			}

			landHa := ZonalAreaHa(td.Valid, zone, areas, opts.Summer)
			forestHa := ZonalAreaHa(forestEnd, zone, areas, opts.Summer)

			current := stats[parcel.ID]
			current.LandAreaHa += landHa
			current.ForestAreaHa += forestHa
			stats[parcel.ID] = current
		}
	}

	return stats, nil
}

// SortedParcelIDs returns the stat keys in lexical order for stable
// reporting.
func SortedParcelIDs(stats map[string]ParcelStats) []string {
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func transformBounds(t geo.Affine, width, height int) *geom.Bounds {
	minX, minY, maxX, maxY := t.Bounds(width, height)

	return &geom.Bounds{Min: geom.Point{X: minX, Y: minY}, Max: geom.Point{X: maxX, Y: maxY}}
}
