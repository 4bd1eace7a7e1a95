package hansen_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

func unitSquare(minX, minY, size float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY},
		{X: minX + size, Y: minY},
		{X: minX + size, Y: minY + size},
		{X: minX, Y: minY + size},
	}}
}

func TestNewParcelResolvesLandUseInOrder(t *testing.T) {
	t.Parallel()

	p := hansen.NewParcel("p1", unitSquare(0, 0, 1), map[string]any{
		"siht1":                "Maatulundusmaa",
		"land_use_designation": "forest land",
	})

	// land_use_designation outranks siht1.
	assert.Equal(t, "forest land", p.LandUseDesignation)
}

func TestNewParcelFallsThroughEmptyFields(t *testing.T) {
	t.Parallel()

	p := hansen.NewParcel("p1", unitSquare(0, 0, 1), map[string]any{
		"land_use_designation": "   ",
		"land_use_code":        123, // non-string, skipped
		"sihtotstarve":         "Elamumaa",
	})

	assert.Equal(t, "Elamumaa", p.LandUseDesignation)
}

func TestNewParcelWithoutDesignation(t *testing.T) {
	t.Parallel()

	p := hansen.NewParcel("p1", unitSquare(0, 0, 1), map[string]any{"area": "12"})

	assert.Empty(t, p.LandUseDesignation)
}

func TestLandUseDesignationCounts(t *testing.T) {
	t.Parallel()

	parcels := []hansen.Parcel{
		hansen.NewParcel("a", unitSquare(0, 0, 1), map[string]any{"siht1": "Maatulundusmaa"}),
		hansen.NewParcel("b", unitSquare(1, 0, 1), map[string]any{"siht1": "Maatulundusmaa"}),
		hansen.NewParcel("c", unitSquare(2, 0, 1), map[string]any{"siht1": "Elamumaa"}),
		hansen.NewParcel("d", unitSquare(3, 0, 1), nil),
	}

	counts := hansen.LandUseDesignationCounts(parcels)

	assert.Equal(t, map[string]int{"Maatulundusmaa": 2, "Elamumaa": 1}, counts)
}

func TestComputeParcelStatsEmptyInput(t *testing.T) {
	t.Parallel()

	stats, err := hansen.ComputeParcelStats(nil, hansen.ParcelStatsOptions{TileDir: t.TempDir()})

	assert.NoError(t, err)
	assert.Empty(t, stats)
}

func TestLoadParcels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "parcels.geojson")
	body := `{
		"type": "FeatureCollection",
		"features": [
			{"type":"Feature","id":"79501:001:0001",
			 "properties":{"siht1":"Maatulundusmaa"},
			 "geometry":{"type":"Polygon","coordinates":[[[24.5,58.2],[24.6,58.2],[24.6,58.3],[24.5,58.3],[24.5,58.2]]]}},
			{"type":"Feature",
			 "properties":{"parcel_id":12345},
			 "geometry":{"type":"Polygon","coordinates":[[[24.7,58.2],[24.8,58.2],[24.8,58.3],[24.7,58.3],[24.7,58.2]]]}},
			{"type":"Feature",
			 "properties":{},
			 "geometry":{"type":"Polygon","coordinates":[[[24.9,58.2],[25.0,58.2],[25.0,58.3],[24.9,58.3],[24.9,58.2]]]}}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	parcels, err := hansen.LoadParcels(path)
	require.NoError(t, err)
	require.Len(t, parcels, 3)

	assert.Equal(t, "79501:001:0001", parcels[0].ID)
	assert.Equal(t, "Maatulundusmaa", parcels[0].LandUseDesignation)
	assert.Equal(t, "12345", parcels[1].ID)
	assert.Equal(t, "parcel_3", parcels[2].ID)
}

func TestLoadParcelsRejectsNonCollection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "geom.geojson")
	body := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := hansen.LoadParcels(path)

	assert.ErrorIs(t, err, hansen.ErrNotFeatureCollection)
}

func TestSortedParcelIDs(t *testing.T) {
	t.Parallel()

	stats := map[string]hansen.ParcelStats{
		"zz": {ParcelID: "zz"},
		"aa": {ParcelID: "aa"},
		"mm": {ParcelID: "mm"},
	}

	assert.Equal(t, []string{"aa", "mm", "zz"}, hansen.SortedParcelIDs(stats))
}
