package hansen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/canopy/pkg/evidence"
)

// DatasetVersionDefault is the Hansen GFC release the engine assumes
// when no version is configured.
const DatasetVersionDefault = "2024-v1.12"

// baselineYear is the year lossyear codes count from: code N means
// loss in year 2000+N.
const baselineYear = 2000

// Layer entry statuses.
const (
	StatusPresent    = "present"
	StatusMissing    = "missing"
	StatusDownloaded = "downloaded"
)

// Acquisition errors.
var (
	ErrNoURLTemplate = errors.New("hansen: no tile URL template configured")
	ErrDownload      = errors.New("hansen: tile download failed")
)

// LayerEntry records the acquisition state of one layer of one tile.
type LayerEntry struct {
	TileID    string
	Layer     string
	LocalPath string
	SHA256    string
	SizeBytes int64
	SourceURL string
	Status    string
}

// Acquirer locates tile layers on disk, downloading them on demand
// when a URL template is configured. The template expands {tile_id}
// and {layer} placeholders.
type Acquirer struct {
	// TileDir is the root under which tiles live as
	// "<tile_id>/<layer>.tif".
	TileDir string
	// URLTemplate with {tile_id} and {layer} placeholders; empty
	// disables downloads.
	URLTemplate string
	// Download controls whether missing layers are fetched.
	Download bool
	// Client is used for downloads; nil means a client with a
	// conservative timeout.
	Client *http.Client
}

func (a *Acquirer) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}

	return &http.Client{Timeout: 10 * time.Minute}
}

func (a *Acquirer) layerURL(tileID, layer string) string {
	if a.URLTemplate == "" {
		return ""
	}

	url := strings.ReplaceAll(a.URLTemplate, "{tile_id}", tileID)

	return strings.ReplaceAll(url, "{layer}", layer)
}

// EnsureLayers returns one entry per requested layer of a tile,
// downloading missing layers when enabled. Entries for layers that are
// absent with downloads disabled carry status "missing" rather than an
// error, so callers can surface the gap in the manifest.
func (a *Acquirer) EnsureLayers(ctx context.Context, tileID string, layers []string) ([]LayerEntry, error) {
	entries := make([]LayerEntry, 0, len(layers))

	for _, layer := range layers {
		localPath := filepath.Join(a.TileDir, tileID, layer+".tif")
		sourceURL := a.layerURL(tileID, layer)

		if info, err := os.Stat(localPath); err == nil && !info.IsDir() {
			digest, hashErr := evidence.SHA256File(localPath)
			if hashErr != nil {
				return nil, hashErr
			}

			entries = append(entries, LayerEntry{
				TileID:    tileID,
				Layer:     layer,
				LocalPath: localPath,
				SHA256:    digest,
				SizeBytes: info.Size(),
				SourceURL: sourceURL,
				Status:    StatusPresent,
			})

			continue
		}

		if !a.Download {
			entries = append(entries, LayerEntry{
				TileID:    tileID,
				Layer:     layer,
				LocalPath: localPath,
				SourceURL: sourceURL,
				Status:    StatusMissing,
			})

			continue
		}

		if sourceURL == "" {
			return nil, ErrNoURLTemplate
		}

		if err := a.downloadTo(ctx, sourceURL, localPath); err != nil {
			return nil, err
		}

		info, err := os.Stat(localPath)
		if err != nil {
			return nil, fmt.Errorf("hansen: stat downloaded tile: %w", err)
		}

		digest, err := evidence.SHA256File(localPath)
		if err != nil {
			return nil, err
		}

		entries = append(entries, LayerEntry{
			TileID:    tileID,
			Layer:     layer,
			LocalPath: localPath,
			SHA256:    digest,
			SizeBytes: info.Size(),
			SourceURL: sourceURL,
			Status:    StatusDownloaded,
		})
	}

	return entries, nil
}

// downloadTo fetches a URL into path through a ".part" sibling so a
// failed transfer never leaves a truncated tile behind.
func (a *Acquirer) downloadTo(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("hansen: create tile dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrDownload, url, resp.Status)
	}

	tmp := path + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)

		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)

		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	return nil
}

// TileProvenance identifies one layer raster that fed an analysis.
type TileProvenance struct {
	Layer   string
	RelPath string
	SHA256  string
}

// EntriesFromProvenance rebuilds manifest entries for rasters already
// consumed by an analysis. The tile ID is taken from the parent
// directory name; rasters outside a per-tile directory get "unknown".
func EntriesFromProvenance(provenance []TileProvenance, tileDir string) []LayerEntry {
	entries := make([]LayerEntry, 0, len(provenance))

	for _, p := range provenance {
		if p.Layer == "" || p.RelPath == "" {
			continue
		}

		localPath := filepath.Join(tileDir, filepath.FromSlash(p.RelPath))

		var size int64

		status := StatusMissing
		if info, err := os.Stat(localPath); err == nil {
			size = info.Size()
			status = StatusPresent
		}

		entries = append(entries, LayerEntry{
			TileID:    inferTileIDFromRelPath(p.RelPath),
			Layer:     p.Layer,
			LocalPath: localPath,
			SHA256:    p.SHA256,
			SizeBytes: size,
			Status:    status,
		})
	}

	return entries
}

// unknownTileID marks rasters that live outside a per-tile directory.
const unknownTileID = "unknown"

func inferTileIDFromRelPath(relPath string) string {
	parent := filepath.Base(filepath.Dir(filepath.FromSlash(relPath)))
	if parent == "" || parent == "." || parent == "tiles" {
		return unknownTileID
	}

	return parent
}

// Manifest is the input to WriteTilesManifest.
type Manifest struct {
	DatasetVersion  string
	TileSource      string
	AOIID           string
	RunID           string
	TileIDs         []string
	DerivedRelPaths map[string]string
	Entries         []LayerEntry
	// CreatedUTC overrides the manifest timestamp; zero means now.
	CreatedUTC time.Time
}

// WriteTilesManifest writes the tiles manifest artifact. Entries are
// sorted by (tile_id, layer, local_path) and tile IDs deduplicated, so
// the same acquisition state always yields the same bytes apart from
// the timestamp.
func WriteTilesManifest(path string, m Manifest) error {
	created := m.CreatedUTC
	if created.IsZero() {
		created = time.Now().UTC()
	}

	ordered := make([]LayerEntry, len(m.Entries))
	copy(ordered, m.Entries)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.TileID != b.TileID {
			return a.TileID < b.TileID
		}

		if a.Layer != b.Layer {
			return a.Layer < b.Layer
		}

		return a.LocalPath < b.LocalPath
	})

	tileIDs := make(map[string]struct{}, len(m.TileIDs))
	for _, id := range m.TileIDs {
		tileIDs[id] = struct{}{}
	}

	sortedIDs := make([]string, 0, len(tileIDs))
	for id := range tileIDs {
		sortedIDs = append(sortedIDs, id)
	}

	sort.Strings(sortedIDs)

	entriesPayload := make([]any, 0, len(ordered))
	for _, e := range ordered {
		entriesPayload = append(entriesPayload, map[string]any{
			"tile_id":    e.TileID,
			"layer":      e.Layer,
			"local_path": e.LocalPath,
			"sha256":     e.SHA256,
			"size_bytes": e.SizeBytes,
			"source_url": e.SourceURL,
			"status":     e.Status,
		})
	}

	relPaths := make(map[string]any, len(m.DerivedRelPaths))
	for k, v := range m.DerivedRelPaths {
		relPaths[k] = v
	}

	payload := map[string]any{
		"dataset_version":  m.DatasetVersion,
		"tile_source":      m.TileSource,
		"aoi_id":           m.AOIID,
		"run_id":           m.RunID,
		"tile_ids":         sortedIDs,
		"created_utc":      created.Format("2006-01-02T15:04:05.999999Z07:00"),
		"derived_relpaths": relPaths,
		"entries":          entriesPayload,
	}

	return evidence.WriteJSON(path, payload)
}

var datasetDirYear = regexp.MustCompile(`hansen_gfc_(\d{4})`)

// InferLatestYear determines the last year lossyear codes can encode.
// A dataset version like "2024-v1.12" names it directly; otherwise the
// tile directory path is scanned for a "hansen_gfc_YYYY" component and
// the default release year is the last resort.
func InferLatestYear(datasetVersion, tileDir string) int {
	if len(datasetVersion) >= 4 {
		if y, err := strconv.Atoi(datasetVersion[:4]); err == nil && y > baselineYear {
			return y
		}
	}

	if m := datasetDirYear.FindStringSubmatch(tileDir); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil && y > baselineYear {
			return y
		}
	}

	y, _ := strconv.Atoi(DatasetVersionDefault[:4])

	return y
}
