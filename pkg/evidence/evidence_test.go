package evidence_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/pkg/evidence"
)

func TestCanonicalJSONSortsKeysAndAppendsNewline(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"zulu":  1,
		"alpha": "x",
		"mid":   []any{3, 2, 1},
	}

	b, err := evidence.CanonicalJSON(payload)
	require.NoError(t, err)

	assert.Equal(t, `{"alpha":"x","mid":[3,2,1],"zulu":1}`+"\n", string(b))
}

func TestCanonicalJSONStable(t *testing.T) {
	t.Parallel()

	payload := map[string]any{"b": 2.5, "a": map[string]any{"y": true, "x": nil}}

	first, err := evidence.CanonicalJSON(payload)
	require.NoError(t, err)

	second, err := evidence.CanonicalJSON(payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "artifact.json")

	require.NoError(t, evidence.WriteJSON(path, map[string]any{"k": "v"}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "{\"k\":\"v\"}\n", string(b))

	_, err = os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestRound6(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.234568, evidence.Round6(1.2345678), 1e-12)
	assert.InDelta(t, 1.234567, evidence.Round6(1.2345671), 1e-12)
	assert.InDelta(t, 0.0, evidence.Round6(4e-7), 1e-12)
	assert.InDelta(t, -2.5, evidence.Round6(-2.5), 1e-12)
}

func TestSHA256Bytes(t *testing.T) {
	t.Parallel()

	// Digest of the empty input is a well-known constant.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		evidence.SHA256Bytes(nil))
}

func TestSHA256FileMatchesBytes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blob.bin")
	content := []byte("hansen tiles are 10 degrees square")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	got, err := evidence.SHA256File(path)
	require.NoError(t, err)

	assert.Equal(t, evidence.SHA256Bytes(content), got)
}

func TestSHA256FileMissing(t *testing.T) {
	t.Parallel()

	_, err := evidence.SHA256File(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func validSummary() map[string]any {
	return map[string]any{
		"cutoff_year":                    2020,
		"canopy_threshold_percent":       10,
		"pixel_forest_loss_post_2020_ha": 1.5,
		"pixel_initial_tree_cover_ha":    10.0,
		"pixel_current_tree_cover_ha":    8.5,
		"mask_forest_loss_post_2020":     "forest_loss_post_2020_mask.geojson",
		"mask_forest_current_year":       "forest_current_tree_cover_mask.geojson",
		"mask_forest_2000":               "forest_2000_tree_cover_mask.geojson",
		"mask_forest_end_year":           "forest_end_year_tree_cover_mask.geojson",
		"tiles": []any{
			map[string]any{
				"layer":  "treecover2000",
				"path":   "N60_E020/treecover2000.tif",
				"sha256": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			},
		},
	}
}

func TestValidateSummaryOK(t *testing.T) {
	t.Parallel()

	issues, err := evidence.Validate(evidence.ArtifactSummary, validSummary())
	require.NoError(t, err)

	assert.Empty(t, issues)
}

func TestValidateSummaryFlagsMissingKeyAndBadDigest(t *testing.T) {
	t.Parallel()

	payload := validSummary()
	delete(payload, "cutoff_year")
	payload["tiles"].([]any)[0].(map[string]any)["sha256"] = "not-a-digest"

	issues, err := evidence.Validate(evidence.ArtifactSummary, payload)
	require.NoError(t, err)

	assert.Len(t, issues, 2)
}

func TestValidateManifestOK(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"dataset_version": "2024-v1.12",
		"tile_source":     "local",
		"aoi_id":          "demo",
		"run_id":          "run-1",
		"tile_ids":        []any{"N60_E020"},
		"created_utc":     "2026-08-26T10:00:00Z",
		"derived_relpaths": map[string]any{
			"summary": "forest_loss_post_2020_summary.json",
		},
		"entries": []any{
			map[string]any{
				"tile_id":    "N60_E020",
				"layer":      "lossyear",
				"local_path": "tiles/N60_E020/lossyear.tif",
				"sha256":     "",
				"size_bytes": 0,
				"source_url": "https://example.org/lossyear/N60_E020.tif",
				"status":     "missing",
			},
		},
	}

	issues, err := evidence.Validate(evidence.ArtifactManifest, payload)
	require.NoError(t, err)

	assert.Empty(t, issues)
}

func TestValidateManifestRejectsBadTileID(t *testing.T) {
	t.Parallel()

	payload := map[string]any{
		"dataset_version":  "2024-v1.12",
		"tile_source":      "local",
		"aoi_id":           "demo",
		"run_id":           "run-1",
		"tile_ids":         []any{"60N_020E"},
		"created_utc":      "2026-08-26T10:00:00Z",
		"derived_relpaths": map[string]any{},
		"entries":          []any{},
	}

	issues, err := evidence.Validate(evidence.ArtifactManifest, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, issues)
}

func TestValidateUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := evidence.Validate("mystery", map[string]any{})
	require.Error(t, err)
}

func TestArtifactKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"debug", "manifest", "summary"}, evidence.ArtifactKinds())
}
