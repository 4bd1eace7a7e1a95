package geo_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
)

func writeGeoJSON(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "aoi.geojson")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestLoadAOIBareGeometry(t *testing.T) {
	t.Parallel()

	path := writeGeoJSON(t, `{"type":"Polygon","coordinates":[[[10,50],[11,50],[11,51],[10,51],[10,50]]]}`)

	poly, err := geo.LoadAOI(path)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, poly.Area(), 1e-9)
}

func TestLoadAOIFeature(t *testing.T) {
	t.Parallel()

	path := writeGeoJSON(t, `{
		"type": "Feature",
		"properties": {"name": "stand 7"},
		"geometry": {"type":"Polygon","coordinates":[[[0,0],[2,0],[2,1],[0,1],[0,0]]]}
	}`)

	poly, err := geo.LoadAOI(path)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, poly.Area(), 1e-9)
}

func TestLoadAOIFeatureCollectionUnion(t *testing.T) {
	t.Parallel()

	// Two disjoint unit squares.
	path := writeGeoJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
			{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[5,0],[6,0],[6,1],[5,1],[5,0]]]}}
		]
	}`)

	poly, err := geo.LoadAOI(path)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, poly.Area(), 1e-9)
}

func TestLoadAOIMultiPolygon(t *testing.T) {
	t.Parallel()

	path := writeGeoJSON(t, `{"type":"MultiPolygon","coordinates":[
		[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
		[[[3,3],[4,3],[4,4],[3,4],[3,3]]]
	]}`)

	poly, err := geo.LoadAOI(path)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, poly.Area(), 1e-9)
}

func TestLoadAOIErrors(t *testing.T) {
	t.Parallel()

	_, err := geo.LoadAOI(writeGeoJSON(t, `{"type":"FeatureCollection","features":[]}`))
	assert.ErrorIs(t, err, geo.ErrNoFeatures)

	_, err = geo.LoadAOI(writeGeoJSON(t, `{"type":"Point","coordinates":[10,50]}`))
	assert.ErrorIs(t, err, geo.ErrUnsupportedGeoJSON)

	_, err = geo.LoadAOI(writeGeoJSON(t, `{"coordinates":[[10,50]]}`))
	assert.ErrorIs(t, err, geo.ErrUnsupportedGeoJSON)

	_, err = geo.LoadAOI(filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}

func TestLoadAOIBBox(t *testing.T) {
	t.Parallel()

	path := writeGeoJSON(t, `{
		"type": "FeatureCollection",
		"features": [
			{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[24.5,58.2],[25.9,58.2],[25.9,59.4],[24.5,59.4],[24.5,58.2]]]}},
			{"type":"Feature","geometry":{"type":"Point","coordinates":[26.1,58.0]}}
		]
	}`)

	bbox, err := geo.LoadAOIBBox(path)
	require.NoError(t, err)

	assert.Equal(t, geo.BBox{MinX: 24.5, MinY: 58.0, MaxX: 26.1, MaxY: 59.4}, bbox)
}

func TestLoadAOIBBoxNoCoordinates(t *testing.T) {
	t.Parallel()

	_, err := geo.LoadAOIBBox(writeGeoJSON(t, `{"type":"FeatureCollection","features":[]}`))

	assert.ErrorIs(t, err, geo.ErrNoCoordinates)
}
