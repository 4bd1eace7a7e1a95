package hansen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pairing and listing errors.
var (
	ErrMissingTiles   = errors.New("hansen: missing required tiles (treecover2000/lossyear)")
	ErrUnpairableTile = errors.New("hansen: no matching lossyear tile")
)

// TileSource enumerates local layer rasters and renders the relative
// paths recorded in provenance.
type TileSource interface {
	// ListLayerFiles returns the sorted raster paths for one layer.
	ListLayerFiles(layer string) ([]string, error)
	// TileRelPath renders a path relative to the source root for
	// provenance records; paths outside the root pass through as-is.
	TileRelPath(path string) string
}

// LocalTileSource reads tiles from a directory tree. It accepts the
// layouts tile caches produce: a per-layer subdirectory of .tif files,
// a flat "<layer>.tif", "<layer>_*.tif" or "<layer>-*.tif" next to the
// root, or "<tile_id>/<layer>.tif" nested one level down.
type LocalTileSource struct {
	dir string
}

// NewLocalTileSource wraps a tile directory. The directory may not
// exist yet; listings are then empty.
func NewLocalTileSource(dir string) *LocalTileSource {
	return &LocalTileSource{dir: dir}
}

// ListLayerFiles implements TileSource.
func (s *LocalTileSource) ListLayerFiles(layer string) ([]string, error) {
	if _, err := os.Stat(s.dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("hansen: stat tile dir: %w", err)
	}

	seen := make(map[string]struct{})

	var files []string

	add := func(paths []string) {
		for _, p := range paths {
			if _, ok := seen[p]; ok {
				continue
			}

			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	layerDir := filepath.Join(s.dir, layer)
	if info, err := os.Stat(layerDir); err == nil && info.IsDir() {
		matches, globErr := filepath.Glob(filepath.Join(layerDir, "*.tif"))
		if globErr != nil {
			return nil, fmt.Errorf("hansen: list %s: %w", layer, globErr)
		}

		sort.Strings(matches)
		add(matches)
	} else {
		direct := filepath.Join(s.dir, layer+".tif")
		if info, statErr := os.Stat(direct); statErr == nil && !info.IsDir() {
			add([]string{direct})
		}

		for _, pattern := range []string{layer + "_*.tif", layer + "-*.tif"} {
			matches, globErr := filepath.Glob(filepath.Join(s.dir, pattern))
			if globErr != nil {
				return nil, fmt.Errorf("hansen: list %s: %w", layer, globErr)
			}

			sort.Strings(matches)
			add(matches)
		}

		nested, globErr := filepath.Glob(filepath.Join(s.dir, "*", layer+".tif"))
		if globErr != nil {
			return nil, fmt.Errorf("hansen: list %s: %w", layer, globErr)
		}

		sort.Strings(nested)
		add(nested)
	}

	sort.Strings(files)

	return files, nil
}

// TileRelPath implements TileSource.
func (s *LocalTileSource) TileRelPath(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}

// TilePair is a treecover2000 raster matched with its lossyear raster.
type TilePair struct {
	TreeCoverPath string
	LossYearPath  string
}

// PairTiles matches treecover2000 files to lossyear files. A single
// file on each side pairs directly. When file names are unique on both
// sides they pair by name; otherwise by parent directory, which covers
// the "<tile_id>/<layer>.tif" layout.
func PairTiles(treeCover, lossYear []string) ([]TilePair, error) {
	if len(treeCover) == 0 || len(lossYear) == 0 {
		return nil, ErrMissingTiles
	}

	if len(treeCover) == 1 && len(lossYear) == 1 {
		return []TilePair{{TreeCoverPath: treeCover[0], LossYearPath: lossYear[0]}}, nil
	}

	if uniqueBaseNames(treeCover) && uniqueBaseNames(lossYear) {
		lossByName := make(map[string]string, len(lossYear))
		for _, p := range lossYear {
			lossByName[filepath.Base(p)] = p
		}

		pairs := make([]TilePair, 0, len(treeCover))

		for _, tree := range treeCover {
			match, ok := lossByName[filepath.Base(tree)]
			if !ok {
				return nil, fmt.Errorf("%w: by name for %s", ErrUnpairableTile, filepath.Base(tree))
			}

			pairs = append(pairs, TilePair{TreeCoverPath: tree, LossYearPath: match})
		}

		return pairs, nil
	}

	lossByParent := make(map[string]string, len(lossYear))
	for _, p := range lossYear {
		lossByParent[filepath.Base(filepath.Dir(p))] = p
	}

	pairs := make([]TilePair, 0, len(treeCover))

	for _, tree := range treeCover {
		parent := filepath.Base(filepath.Dir(tree))

		match, ok := lossByParent[parent]
		if !ok {
			return nil, fmt.Errorf("%w: by parent for %s", ErrUnpairableTile, parent)
		}

		pairs = append(pairs, TilePair{TreeCoverPath: tree, LossYearPath: match})
	}

	return pairs, nil
}

func uniqueBaseNames(paths []string) bool {
	names := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		names[filepath.Base(p)] = struct{}{}
	}

	return len(names) == len(paths)
}
