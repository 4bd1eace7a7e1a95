package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ctessum/geom"
)

// Sentinel errors for AOI geometry loading.
var (
	// ErrUnsupportedGeoJSON indicates the AOI document is not a Feature,
	// FeatureCollection, or polygonal Geometry.
	ErrUnsupportedGeoJSON = errors.New("unsupported AOI GeoJSON")
	// ErrNoFeatures indicates a FeatureCollection with no features.
	ErrNoFeatures = errors.New("AOI GeoJSON FeatureCollection has no features")
	// ErrNoCoordinates indicates the AOI document carries no coordinates.
	ErrNoCoordinates = errors.New("AOI GeoJSON contains no coordinates")
)

type geoJSONDoc struct {
	Type       string            `json:"type"`
	Geometry   json.RawMessage   `json:"geometry,omitempty"`
	Features   []json.RawMessage `json:"features,omitempty"`
	Geometries []json.RawMessage `json:"geometries,omitempty"`
	// Coordinates is present when the document is a bare Geometry.
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// LoadAOI reads a GeoJSON file (Feature, FeatureCollection, or bare
// Geometry) in WGS84 and returns the union of its polygonal geometries.
func LoadAOI(path string) (geom.Polygonal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read AOI %s: %w", path, err)
	}

	return DecodeAOI(data)
}

// DecodeAOI parses GeoJSON bytes into a single polygonal zone geometry,
// unioning the features of a FeatureCollection.
func DecodeAOI(data []byte) (geom.Polygonal, error) {
	var doc geoJSONDoc

	err := json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("parse AOI GeoJSON: %w", err)
	}

	switch doc.Type {
	case "FeatureCollection":
		if len(doc.Features) == 0 {
			return nil, ErrNoFeatures
		}

		var union geom.Polygonal

		for _, raw := range doc.Features {
			var feat geoJSONDoc

			err = json.Unmarshal(raw, &feat)
			if err != nil {
				return nil, fmt.Errorf("parse AOI feature: %w", err)
			}

			poly, decodeErr := decodePolygonal(feat.Geometry)
			if decodeErr != nil {
				return nil, decodeErr
			}

			if union == nil {
				union = poly
			} else {
				union = union.Union(poly)
			}
		}

		return union, nil
	case "Feature":
		return decodePolygonal(doc.Geometry)
	case "":
		return nil, ErrUnsupportedGeoJSON
	default:
		return decodePolygonal(data)
	}
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func decodePolygonal(raw []byte) (geom.Polygonal, error) {
	if len(raw) == 0 {
		return nil, ErrUnsupportedGeoJSON
	}

	var g geoJSONGeometry

	err := json.Unmarshal(raw, &g)
	if err != nil {
		return nil, fmt.Errorf("parse AOI geometry: %w", err)
	}

	switch g.Type {
	case "Polygon":
		var rings [][][]float64

		err = json.Unmarshal(g.Coordinates, &rings)
		if err != nil {
			return nil, fmt.Errorf("parse Polygon coordinates: %w", err)
		}

		return ringsToPolygon(rings), nil
	case "MultiPolygon":
		var polys [][][][]float64

		err = json.Unmarshal(g.Coordinates, &polys)
		if err != nil {
			return nil, fmt.Errorf("parse MultiPolygon coordinates: %w", err)
		}

		mp := make(geom.MultiPolygon, 0, len(polys))
		for _, rings := range polys {
			mp = append(mp, ringsToPolygon(rings))
		}

		return mp, nil
	default:
		return nil, fmt.Errorf("%w: geometry type %q", ErrUnsupportedGeoJSON, g.Type)
	}
}

func ringsToPolygon(rings [][][]float64) geom.Polygon {
	poly := make(geom.Polygon, 0, len(rings))

	for _, ring := range rings {
		path := make([]geom.Point, 0, len(ring))
		for _, pos := range ring {
			if len(pos) >= 2 {
				path = append(path, geom.Point{X: pos[0], Y: pos[1]})
			}
		}

		poly = append(poly, path)
	}

	return poly
}

// BBox is a WGS84 bounding box (min lon, min lat, max lon, max lat).
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// LoadAOIBBox reads a GeoJSON file and returns the bounding box of
// every coordinate it contains, regardless of geometry type.
func LoadAOIBBox(path string) (BBox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BBox{}, fmt.Errorf("read AOI %s: %w", path, err)
	}

	var doc any

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return BBox{}, fmt.Errorf("parse AOI GeoJSON: %w", err)
	}

	var (
		bbox  BBox
		found bool
	)

	collectCoords(doc, func(x, y float64) {
		if !found {
			bbox = BBox{MinX: x, MinY: y, MaxX: x, MaxY: y}
			found = true

			return
		}

		bbox.MinX = min(bbox.MinX, x)
		bbox.MinY = min(bbox.MinY, y)
		bbox.MaxX = max(bbox.MaxX, x)
		bbox.MaxY = max(bbox.MaxY, y)
	})

	if !found {
		return BBox{}, ErrNoCoordinates
	}

	return bbox, nil
}

// collectCoords walks any decoded GeoJSON value and emits every
// (lon, lat) position it finds.
func collectCoords(node any, emit func(x, y float64)) {
	switch v := node.(type) {
	case []any:
		if len(v) >= 2 {
			x, xOK := v[0].(float64)
			y, yOK := v[1].(float64)

			if xOK && yOK {
				emit(x, y)

				return
			}
		}

		for _, item := range v {
			collectCoords(item, emit)
		}
	case map[string]any:
		if coords, ok := v["coordinates"]; ok {
			collectCoords(coords, emit)

			return
		}

		for _, key := range []string{"features", "geometry", "geometries"} {
			if child, ok := v[key]; ok {
				collectCoords(child, emit)
			}
		}
	}
}
