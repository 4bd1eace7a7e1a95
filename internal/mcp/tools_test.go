package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/geotiff"
)

func toolData(t *testing.T, output ToolOutput) map[string]any {
	t.Helper()

	raw, err := json.Marshal(output.Data)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	return decoded
}

func TestHandleTiles_BBox(t *testing.T) {
	t.Parallel()

	result, output, err := handleTiles(context.Background(), nil, TilesInput{
		MinLon: 24.5, MinLat: 58.2, MaxLon: 25.9, MaxLat: 59.4,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	data := toolData(t, output)
	assert.Equal(t, []any{"N60_E020"}, data["tile_ids"])
}

func TestHandleTiles_AOIPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aoi.geojson")
	body := `{"type":"Polygon","coordinates":[[[24.5,58.2],[25.9,58.2],[25.9,59.4],[24.5,59.4],[24.5,58.2]]]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	result, output, err := handleTiles(context.Background(), nil, TilesInput{AOIPath: path})
	require.NoError(t, err)
	require.False(t, result.IsError)

	data := toolData(t, output)
	assert.Equal(t, []any{"N60_E020"}, data["tile_ids"])
}

func TestHandleTiles_InvalidInput(t *testing.T) {
	t.Parallel()

	result, _, err := handleTiles(context.Background(), nil, TilesInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = handleTiles(context.Background(), nil, TilesInput{
		MinLon: 10, MinLat: 50, MaxLon: 9, MaxLat: 51,
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleValidate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "debug.json")
	payload := `{
		"canopy_threshold_percent": 10,
		"rfm_true_pixels": 11,
		"current_forest_true_pixels": 4,
		"loss_post_2020_true_pixels": 5,
		"nodata_pixels": {"treecover2000": 3, "lossyear": 0},
		"parcel_count": 0,
		"parcel_ids": []
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	result, output, err := handleValidate(context.Background(), nil, ValidateInput{Kind: "debug", Path: path})
	require.NoError(t, err)
	require.False(t, result.IsError)

	data := toolData(t, output)
	assert.Equal(t, true, data["valid"])
}

func TestHandleValidate_Errors(t *testing.T) {
	t.Parallel()

	result, _, err := handleValidate(context.Background(), nil, ValidateInput{Kind: "debug"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	path := filepath.Join(t.TempDir(), "missing.json")
	result, _, err = handleValidate(context.Background(), nil, ValidateInput{Kind: "debug", Path: path})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleForestLoss_InputValidation(t *testing.T) {
	t.Parallel()

	result, _, err := handleForestLoss(context.Background(), nil, ForestLossInput{TileDir: "/tiles"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = handleForestLoss(context.Background(), nil, ForestLossInput{AOIPath: "/aoi.geojson"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleForestLoss_Run(t *testing.T) {
	t.Parallel()

	tileDir := t.TempDir()
	transform := geo.Affine{A: 0.25, C: 10, E: -0.25, F: 50}

	tree := []uint8{80, 80, 20, 5}
	loss := []uint8{21, 0, 0, 0}

	require.NoError(t, geotiff.Write(filepath.Join(tileDir, "treecover2000.tif"), [][]uint8{tree},
		geotiff.EncodeOptions{Width: 2, Height: 2, Transform: transform, EPSG: geo.CRSWGS84}))
	require.NoError(t, geotiff.Write(filepath.Join(tileDir, "lossyear.tif"), [][]uint8{loss},
		geotiff.EncodeOptions{Width: 2, Height: 2, Transform: transform, EPSG: geo.CRSWGS84}))

	aoiPath := filepath.Join(t.TempDir(), "aoi.geojson")
	body := `{"type":"Polygon","coordinates":[[[9.5,49],[11,49],[11,50.5],[9.5,50.5],[9.5,49]]]}`
	require.NoError(t, os.WriteFile(aoiPath, []byte(body), 0o644))

	outputDir := t.TempDir()

	result, output, err := handleForestLoss(context.Background(), nil, ForestLossInput{
		AOIPath:   aoiPath,
		TileDir:   tileDir,
		OutputDir: outputDir,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	data := toolData(t, output)
	assert.Equal(t, outputDir, data["output_dir"])

	summaryPath, ok := data["summary_path"].(string)
	require.True(t, ok)
	assert.FileExists(t, summaryPath)

	metrics, ok := data["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(10), metrics["canopy_threshold_pct"])
	assert.Positive(t, metrics["rfm_area_ha"])
}
