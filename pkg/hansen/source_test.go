package hansen_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

func touch(t *testing.T, path string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("tif"), 0o644))

	return path
}

func TestListLayerFilesLayerSubdirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := touch(t, filepath.Join(dir, "treecover2000", "b.tif"))
	a := touch(t, filepath.Join(dir, "treecover2000", "a.tif"))

	source := hansen.NewLocalTileSource(dir)

	files, err := source.ListLayerFiles("treecover2000")
	require.NoError(t, err)

	assert.Equal(t, []string{a, b}, files)
}

func TestListLayerFilesFlatAndNestedLayouts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	direct := touch(t, filepath.Join(dir, "lossyear.tif"))
	prefixed := touch(t, filepath.Join(dir, "lossyear_N60_E020.tif"))
	nested := touch(t, filepath.Join(dir, "N60_E030", "lossyear.tif"))
	touch(t, filepath.Join(dir, "unrelated.tif"))

	source := hansen.NewLocalTileSource(dir)

	files, err := source.ListLayerFiles("lossyear")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{direct, prefixed, nested}, files)
}

func TestListLayerFilesMissingDir(t *testing.T) {
	t.Parallel()

	source := hansen.NewLocalTileSource(filepath.Join(t.TempDir(), "absent"))

	files, err := source.ListLayerFiles("treecover2000")
	require.NoError(t, err)

	assert.Empty(t, files)
}

func TestTileRelPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := hansen.NewLocalTileSource(dir)

	inside := filepath.Join(dir, "N60_E020", "treecover2000.tif")
	assert.Equal(t, "N60_E020/treecover2000.tif", source.TileRelPath(inside))

	outside := string(filepath.Separator) + filepath.Join("elsewhere", "x.tif")
	assert.Equal(t, filepath.ToSlash(outside), source.TileRelPath(outside))
}

func TestPairTilesSinglePair(t *testing.T) {
	t.Parallel()

	pairs, err := hansen.PairTiles([]string{"/t/tree.tif"}, []string{"/t/loss.tif"})
	require.NoError(t, err)

	assert.Equal(t, []hansen.TilePair{{TreeCoverPath: "/t/tree.tif", LossYearPath: "/t/loss.tif"}}, pairs)
}

func TestPairTilesByName(t *testing.T) {
	t.Parallel()

	tree := []string{"/tree/N60_E020.tif", "/tree/N60_E030.tif"}
	loss := []string{"/loss/N60_E030.tif", "/loss/N60_E020.tif"}

	pairs, err := hansen.PairTiles(tree, loss)
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	assert.Equal(t, "/loss/N60_E020.tif", pairs[0].LossYearPath)
	assert.Equal(t, "/loss/N60_E030.tif", pairs[1].LossYearPath)
}

func TestPairTilesByParentDirectory(t *testing.T) {
	t.Parallel()

	tree := []string{"/tiles/N60_E020/treecover2000.tif", "/tiles/N60_E030/treecover2000.tif"}
	loss := []string{"/tiles/N60_E030/lossyear.tif", "/tiles/N60_E020/lossyear.tif"}

	pairs, err := hansen.PairTiles(tree, loss)
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	assert.Equal(t, "/tiles/N60_E020/lossyear.tif", pairs[0].LossYearPath)
	assert.Equal(t, "/tiles/N60_E030/lossyear.tif", pairs[1].LossYearPath)
}

func TestPairTilesMissingSide(t *testing.T) {
	t.Parallel()

	_, err := hansen.PairTiles(nil, []string{"/t/loss.tif"})
	require.ErrorIs(t, err, hansen.ErrMissingTiles)
}

func TestPairTilesUnpairable(t *testing.T) {
	t.Parallel()

	tree := []string{"/tree/N60_E020.tif", "/tree/N60_E030.tif"}
	loss := []string{"/loss/N60_E020.tif", "/loss/N70_E020.tif"}

	_, err := hansen.PairTiles(tree, loss)
	require.ErrorIs(t, err, hansen.ErrUnpairableTile)
}
