package hansen

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctessum/geom"

	"github.com/Sumatoshi-tech/canopy/pkg/evidence"
	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
)

// Evidence artifact file names.
const (
	SummaryFileName        = "forest_loss_post_2020_summary.json"
	DebugFileName          = "forest_mask_debug.json"
	TilesManifestFileName  = "forest_loss_post_2020_tiles.json"
	LossMaskFileName       = "forest_loss_post_2020_mask.geojson"
	CurrentMaskFileName    = "forest_current_tree_cover_mask.geojson"
	Forest2000MaskFileName = "forest_2000_tree_cover_mask.geojson"
	ForestEndMaskFileName  = "forest_end_year_tree_cover_mask.geojson"
)

// recentLossStartYear is the first year of the "recent loss" metric
// window.
const recentLossStartYear = 2021

// Config carries the analysis parameters. Zero values mean defaults.
type Config struct {
	TileDir                string
	CanopyThresholdPercent int
	CutoffYear             int
	WriteMasks             bool
	// MaskCacheDir, when set, stores the packed reference forest mask
	// of every tile for later inspection.
	MaskCacheDir         string
	DatasetVersion       string
	TileSource           string
	TileIDs              []string
	URLTemplate          string
	ReprojectToProjected bool
	ProjectedCRS         string
}

// WithDefaults fills unset fields with the conventional values.
func (c Config) WithDefaults() Config {
	if c.CanopyThresholdPercent == 0 {
		c.CanopyThresholdPercent = 10
	}

	if c.CutoffYear == 0 {
		c.CutoffYear = 2020
	}

	if c.DatasetVersion == "" {
		c.DatasetVersion = DatasetVersionDefault
	}

	if c.TileSource == "" {
		c.TileSource = "local"
	}

	if c.ProjectedCRS == "" {
		c.ProjectedCRS = geo.CRSEqualArea
	}

	return c
}

// Metrics is the headline forest-change figures for the AOI zone.
type Metrics struct {
	CanopyThresholdPct   int     `json:"canopy_threshold_pct"`
	ReferenceForestYear  int     `json:"reference_forest_mask_year"`
	LossYearCodeBasis    int     `json:"loss_year_code_basis"`
	EndYear              int     `json:"end_year"`
	RFMAreaHa            float64 `json:"rfm_area_ha"`
	ForestEndYearAreaHa  float64 `json:"forest_end_year_area_ha"`
	LossTotalSinceBaseHa float64 `json:"loss_total_2001_2024_ha"`
	LossRecentHa         float64 `json:"loss_2021_2024_ha"`
	LossRecentPctOfRFM   float64 `json:"loss_2021_2024_pct_of_rfm"`
	LossTotalHa          float64 `json:"loss_total_ha"`
	Forest2024Ha         float64 `json:"forest_2024_ha"`
	ForestEndYearHa      float64 `json:"forest_end_year_ha"`
}

// MetricsParams documents how the metrics were computed.
type MetricsParams struct {
	CanopyThresholdPct int    `json:"canopy_threshold_pct"`
	StartYear          int    `json:"start_year"`
	EndYear            int    `json:"end_year"`
	CRS                string `json:"crs"`
	MethodArea         string `json:"method_area"`
	MethodZonal        string `json:"method_zonal"`
	MethodNotes        string `json:"method_notes"`
	LossYearCodeBasis  int    `json:"loss_year_code_basis"`
}

// MetricsDebug carries raw counters for cross-checking the metrics.
type MetricsDebug struct {
	RasterShapes            [][2]int `json:"raster_shapes"`
	PixelAreaM2Min          float64  `json:"pixel_area_m2_min"`
	PixelAreaM2Max          float64  `json:"pixel_area_m2_max"`
	PixelAreaM2Mean         float64  `json:"pixel_area_m2_mean"`
	RFMTruePixels           int      `json:"rfm_true_pixels"`
	LossRecentTruePixels    int      `json:"loss_21_24_true_pixels"`
	ForestEndYearTruePixels int      `json:"forest_end_year_true_pixels"`
	RFMAreaHa               float64  `json:"rfm_area_ha"`
	LossTotalSinceBaseHa    float64  `json:"loss_total_2001_2024_ha"`
	LossRecentHa            float64  `json:"loss_2021_2024_ha"`
	ForestEndYearAreaHa     float64  `json:"forest_end_year_area_ha"`
	LossTotalHa             float64  `json:"loss_total_ha"`
	Forest2024Ha            float64  `json:"forest_2024_ha"`
	ForestEndYearHa         float64  `json:"forest_end_year_ha"`
}

// Result is everything a forest-loss run produced.
type Result struct {
	SummaryPath           string
	DebugPath             string
	TilesManifestPath     string
	LossMaskPath          string
	CurrentMaskPath       string
	Forest2000MaskPath    string
	ForestEndYearMaskPath string
	TileProvenance        []TileProvenance
	ForestLossPost2020Ha  float64
	InitialTreeCoverHa    float64
	CurrentTreeCoverHa    float64
	Metrics               Metrics
	Params                MetricsParams
	Debug                 MetricsDebug
}

// RunRequest names the inputs of one analysis run.
type RunRequest struct {
	// AOIPath is a WGS84 GeoJSON file (FeatureCollection, Feature or
	// bare geometry).
	AOIPath   string
	OutputDir string
	// Zone optionally narrows the analysis; it is intersected with the
	// AOI. Nil analyzes the whole AOI.
	Zone geom.Polygonal
	// ParcelIDs are recorded in the debug artifact.
	ParcelIDs []string
	// AOIID and RunID identify the run in the tiles manifest. An empty
	// AOIID falls back to the AOI file's base name without extension.
	AOIID string
	RunID string
}

// Engine runs forest-loss analyses with a fixed configuration.
type Engine struct {
	cfg    Config
	summer AreaSummer
	logger *slog.Logger
}

// NewEngine builds an engine. A nil summer means sequential
// accumulation; a nil logger discards engine logging.
func NewEngine(cfg Config, summer AreaSummer, logger *slog.Logger) *Engine {
	if summer == nil {
		summer = SequentialSummer{}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{cfg: cfg.WithDefaults(), summer: summer, logger: logger}
}

// tileAccumulator gathers the running totals across tile pairs.
type tileAccumulator struct {
	forestLossHa float64
	initialHa    float64
	currentHa    float64
	rfmAreaHa    float64
	lossTotalHa  float64
	lossRecentHa float64
	forestEndHa  float64
	forest2024Ha float64

	rfmPixels        int
	lossRecentPixels int
	forestEndPixels  int
	currentPixels    int
	lossPostPixels   int
	treeNoData       int
	lossNoData       int

	pixelAreaSum   float64
	pixelAreaCount int
	pixelAreaMin   float64
	pixelAreaMax   float64

	rasterShapes  [][2]int
	crsUsed       map[string]struct{}
	usedProjected bool

	provenance      []TileProvenance
	lossFeatures    []map[string]any
	currentFeatures []map[string]any
	baseFeatures    []map[string]any
	endFeatures     []map[string]any
}

// Run executes the analysis and writes the evidence artifacts.
func (e *Engine) Run(req RunRequest) (*Result, error) {
	if err := e.ensureRemoteTiles(); err != nil {
		return nil, err
	}

	source := NewLocalTileSource(e.cfg.TileDir)

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

	aoi, err := geo.LoadAOI(req.AOIPath)
	if err != nil {
		return nil, err
	}

	zone := aoi
	if req.Zone != nil {
		zone = req.Zone.Intersection(aoi)
	}

	endYear := InferLatestYear(e.cfg.DatasetVersion, e.cfg.TileDir)

	acc := &tileAccumulator{
		pixelAreaMin: math.Inf(1),
		pixelAreaMax: math.Inf(-1),
		crsUsed:      map[string]struct{}{},
	}

	for _, pair := range pairs {
		if err := e.processTilePair(pair, aoi, zone, endYear, acc); err != nil {
			return nil, err
		}

		if err := e.appendProvenance(source, pair, acc); err != nil {
			return nil, err
		}
	}

	return e.assemble(req, endYear, acc)
}

func (e *Engine) processTilePair(pair TilePair, aoi, zone geom.Polygonal, endYear int, acc *tileAccumulator) error {
	td, err := loadTilePair(pair.TreeCoverPath, pair.LossYearPath, aoi, e.logger)
	if err != nil {
		return err
	}

	warnLossConsistency(td, e.logger)

	if e.cfg.ReprojectToProjected && td.CRS.Geographic() {
		projected, reprojErr := e.reprojectTile(td)
		if reprojErr != nil {
			return reprojErr
		}

		if projected != nil {
			td = projected
			acc.usedProjected = true
		}
	}

	acc.rasterShapes = append(acc.rasterShapes, [2]int{td.Height, td.Width})
	acc.crsUsed[td.CRS.String()] = struct{}{}

	rfm := ReferenceForestMask(td.Tree, td.Valid, e.cfg.CanopyThresholdPercent)

	if e.cfg.MaskCacheDir != "" {
		if err := e.cacheReferenceMask(pair, rfm); err != nil {
			return err
		}
	}

	lossPost := LossAfterCutoffMask(rfm, td.Loss, e.cfg.CutoffYear)
	current := CurrentForestMask(rfm, td.Loss)
	lossTotal := LossTotalMask(rfm, td.Loss)
	lossRecent := LossRangeMask(rfm, td.Loss, recentLossStartYear, endYear)
	forest2024 := ForestEndYearMask(rfm, td.Loss, 2024)
	forestEnd := ForestEndYearMask(rfm, td.Loss, endYear)

	zoneMask := raster.NewMask(td.Width, td.Height)

	if zone != nil {
		wgs84, resolveErr := geo.ResolveCRS(geo.CRSWGS84)
		if resolveErr != nil {
			return resolveErr
		}

		zoneGeom, tErr := wgs84.TransformGeom(zone, td.CRS)
		if tErr != nil {
			return tErr
		}

		zonePoly, ok := zoneGeom.(geom.Polygonal)
		if !ok {
			return fmt.Errorf("hansen: zone reprojected to non-polygonal geometry")
		}

		zoneMask, err = raster.RasterizeZone(zonePoly, td.Transform, td.Width, td.Height, true)
		if err != nil {
			return err
		}
	}

	var areas *geo.AreaRaster
	if td.CRS.Geographic() {
		areas = geo.NewGeodesicAreaRaster(td.Transform, td.Width, td.Height)
	} else {
		areas = geo.NewProjectedAreaRaster(td.Transform, td.Width, td.Height)
	}

	acc.accumulatePixelAreaStats(td.Valid.And(zoneMask), areas)

	lossPostZone := lossPost.And(zoneMask)
	currentZone := current.And(zoneMask)
	baselineZone := rfm.And(zoneMask)

	acc.rfmPixels += baselineZone.CountTrue()
	acc.lossRecentPixels += lossRecent.And(zoneMask).CountTrue()
	acc.forestEndPixels += forestEnd.And(zoneMask).CountTrue()
	acc.currentPixels += currentZone.CountTrue()
	acc.lossPostPixels += lossPostZone.CountTrue()
	acc.treeNoData += invertedCountInZone(td.TreeValid, zoneMask)
	acc.lossNoData += invertedCountInZone(td.LossValid, zoneMask)

	acc.rfmAreaHa += ZonalAreaHa(rfm, zoneMask, areas, e.summer)
	acc.lossTotalHa += ZonalAreaHa(lossTotal, zoneMask, areas, e.summer)
	acc.lossRecentHa += ZonalAreaHa(lossRecent, zoneMask, areas, e.summer)
	acc.forestEndHa += ZonalAreaHa(forestEnd, zoneMask, areas, e.summer)
	acc.forest2024Ha += ZonalAreaHa(forest2024, zoneMask, areas, e.summer)

	acc.forestLossHa += ZonalAreaHa(lossPostZone, nil, areas, e.summer)
	acc.initialHa += ZonalAreaHa(baselineZone, nil, areas, e.summer)
	acc.currentHa += ZonalAreaHa(currentZone, nil, areas, e.summer)

	if e.cfg.WriteMasks {
		for _, mf := range []struct {
			mask *raster.Mask
			dst  *[]map[string]any
		}{
			{lossPostZone, &acc.lossFeatures},
			{currentZone, &acc.currentFeatures},
			{baselineZone, &acc.baseFeatures},
			{forestEnd.And(zoneMask), &acc.endFeatures},
		} {
			features, vErr := raster.Vectorize(mf.mask, td.Transform, td.CRS)
			if vErr != nil {
				return vErr
			}

			*mf.dst = append(*mf.dst, features...)
		}
	}

	return nil
}

// cacheReferenceMask packs the tile's reference forest mask and stores
// it under the mask cache directory, named after the treecover raster.
// ensureRemoteTiles downloads the configured tiles' layers before the
// analysis touches the tile directory. Cancellation and retry policy
// belong to the caller's acquisition step; the in-run path uses the
// background context.
func (e *Engine) ensureRemoteTiles() error {
	if e.cfg.TileSource != "remote" || len(e.cfg.TileIDs) == 0 {
		return nil
	}

	acquirer := &Acquirer{
		TileDir:     e.cfg.TileDir,
		URLTemplate: e.cfg.URLTemplate,
		Download:    true,
	}

	for _, tileID := range e.cfg.TileIDs {
		entries, err := acquirer.EnsureLayers(context.Background(), tileID, DefaultLayers)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			if entry.Status == StatusDownloaded {
				e.logger.Info("downloaded tile layer",
					slog.String("tile_id", entry.TileID),
					slog.String("layer", entry.Layer),
					slog.Int64("size_bytes", entry.SizeBytes))
			}
		}
	}

	return nil
}

func (e *Engine) cacheReferenceMask(pair TilePair, rfm *raster.Mask) error {
	packed, err := raster.PackMask(rfm)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(e.cfg.MaskCacheDir, 0o755); err != nil {
		return fmt.Errorf("hansen: create mask cache dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(pair.TreeCoverPath), filepath.Ext(pair.TreeCoverPath))
	path := filepath.Join(e.cfg.MaskCacheDir, base+".rfm.maskz")

	if err := os.WriteFile(path, packed, 0o644); err != nil {
		return fmt.Errorf("hansen: write packed mask: %w", err)
	}

	return nil
}

// reprojectTile resamples a geographic tile into the configured
// projected CRS via the fallback chain. A nil result means every
// candidate failed and the original grid should be kept.
func (e *Engine) reprojectTile(td *tileData) (*tileData, error) {
	grid := &raster.Grid{
		Bands: []*raster.Band{
			td.Tree,
			td.Loss,
			maskToBand(td.TreeValid),
			maskToBand(td.LossValid),
		},
		Valid:     allTrueMask(td.Width, td.Height),
		Transform: td.Transform,
		CRS:       td.CRS,
	}

	outcome, err := raster.ToProjected(grid, e.cfg.ProjectedCRS)
	if err != nil {
		return nil, err
	}

	for _, attempt := range outcome.Attempts {
		if attempt.Err != nil {
			e.logger.Warn("reprojection attempt failed",
				slog.String("crs", attempt.CRS),
				slog.String("error", attempt.Err.Error()))
		}
	}

	if !outcome.Reprojected {
		e.logger.Warn("keeping geographic CRS, all reprojection targets failed",
			slog.String("crs", td.CRS.String()))

		return nil, nil
	}

	dst := outcome.Grid

	out := &tileData{
		Tree:      dst.Bands[0],
		Loss:      dst.Bands[1],
		TreeValid: bandToMask(dst.Bands[2], dst.Valid),
		LossValid: bandToMask(dst.Bands[3], dst.Valid),
		Transform: dst.Transform,
		CRS:       dst.CRS,
		Width:     dst.Valid.Width,
		Height:    dst.Valid.Height,
	}
	out.Valid = out.TreeValid.And(out.LossValid)

	return out, nil
}

func (e *Engine) appendProvenance(source TileSource, pair TilePair, acc *tileAccumulator) error {
	for _, item := range []struct {
		layer string
		path  string
	}{
		{LayerTreeCover, pair.TreeCoverPath},
		{LayerLossYear, pair.LossYearPath},
	} {
		digest, err := evidence.SHA256File(item.path)
		if err != nil {
			return err
		}

		acc.provenance = append(acc.provenance, TileProvenance{
			Layer:   item.layer,
			RelPath: source.TileRelPath(item.path),
			SHA256:  digest,
		})
	}

	return nil
}

func (e *Engine) assemble(req RunRequest, endYear int, acc *tileAccumulator) (*Result, error) {
	lossMaskPath := filepath.Join(req.OutputDir, LossMaskFileName)
	currentMaskPath := filepath.Join(req.OutputDir, CurrentMaskFileName)
	forest2000MaskPath := filepath.Join(req.OutputDir, Forest2000MaskFileName)
	forestEndMaskPath := filepath.Join(req.OutputDir, ForestEndMaskFileName)

	if e.cfg.WriteMasks {
		for _, mf := range []struct {
			path     string
			features []map[string]any
		}{
			{lossMaskPath, acc.lossFeatures},
			{currentMaskPath, acc.currentFeatures},
			{forest2000MaskPath, acc.baseFeatures},
			{forestEndMaskPath, acc.endFeatures},
		} {
			if err := writeMaskGeoJSON(mf.path, mf.features); err != nil {
				return nil, err
			}
		}
	}

	parcelIDs := append([]string(nil), req.ParcelIDs...)
	sort.Strings(parcelIDs)

	if parcelIDs == nil {
		parcelIDs = []string{}
	}

	debugPath := filepath.Join(req.OutputDir, DebugFileName)
	debugPayload := map[string]any{
		"canopy_threshold_percent":   e.cfg.CanopyThresholdPercent,
		"rfm_true_pixels":            acc.rfmPixels,
		"current_forest_true_pixels": acc.currentPixels,
		"loss_post_2020_true_pixels": acc.lossPostPixels,
		"nodata_pixels": map[string]any{
			LayerTreeCover: acc.treeNoData,
			LayerLossYear:  acc.lossNoData,
		},
		"parcel_count": len(parcelIDs),
		"parcel_ids":   parcelIDs,
	}

	if err := evidence.WriteJSON(debugPath, debugPayload); err != nil {
		return nil, err
	}

	ordered := make([]TileProvenance, len(acc.provenance))
	copy(ordered, acc.provenance)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Layer != ordered[j].Layer {
			return ordered[i].Layer < ordered[j].Layer
		}

		return ordered[i].RelPath < ordered[j].RelPath
	})

	tilesPayload := make([]any, 0, len(ordered))
	for _, p := range ordered {
		tilesPayload = append(tilesPayload, map[string]any{
			"layer":  p.Layer,
			"path":   p.RelPath,
			"sha256": p.SHA256,
		})
	}

	forestLossHa := evidence.Round6(acc.forestLossHa)
	initialHa := evidence.Round6(acc.initialHa)
	currentHa := evidence.Round6(acc.currentHa)

	summaryPath := filepath.Join(req.OutputDir, SummaryFileName)
	summaryPayload := map[string]any{
		"cutoff_year":                    e.cfg.CutoffYear,
		"canopy_threshold_percent":       e.cfg.CanopyThresholdPercent,
		"pixel_forest_loss_post_2020_ha": forestLossHa,
		"pixel_initial_tree_cover_ha":    initialHa,
		"pixel_current_tree_cover_ha":    currentHa,
		"mask_forest_loss_post_2020":     LossMaskFileName,
		"mask_forest_current_year":       CurrentMaskFileName,
		"mask_forest_2000":               Forest2000MaskFileName,
		"mask_forest_end_year":           ForestEndMaskFileName,
		"tiles":                          tilesPayload,
	}

	if err := evidence.WriteJSON(summaryPath, summaryPayload); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(req.OutputDir, TilesManifestFileName)

	entries := EntriesFromProvenance(acc.provenance, e.cfg.TileDir)

	// Rasters outside a per-tile directory yield no usable tile ID, so
	// flat layouts leave the list empty unless configured.
	tileIDs := e.cfg.TileIDs
	if len(tileIDs) == 0 {
		for _, entry := range entries {
			if entry.TileID != "" && entry.TileID != unknownTileID {
				tileIDs = append(tileIDs, entry.TileID)
			}
		}
	}

	aoiID := req.AOIID
	if aoiID == "" {
		base := filepath.Base(req.AOIPath)
		aoiID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	err := WriteTilesManifest(manifestPath, Manifest{
		DatasetVersion: e.cfg.DatasetVersion,
		TileSource:     e.cfg.TileSource,
		AOIID:          aoiID,
		RunID:          req.RunID,
		TileIDs:        tileIDs,
		DerivedRelPaths: map[string]string{
			"summary":      SummaryFileName,
			"loss_mask":    LossMaskFileName,
			"current_mask": CurrentMaskFileName,
		},
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}

	lossRecentPct := 0.0
	if acc.rfmAreaHa > 0 {
		lossRecentPct = acc.lossRecentHa / acc.rfmAreaHa * 100
	}

	crsUsed := make([]string, 0, len(acc.crsUsed))
	for c := range acc.crsUsed {
		crsUsed = append(crsUsed, c)
	}

	sort.Strings(crsUsed)

	paramsCRS := ""
	if len(crsUsed) > 0 {
		paramsCRS = crsUsed[0]
	}

	methodArea := "geodesic_pixel_area_wgs84"
	methodNotes := "area_ha = sum(pixel_area_m2 * mask * zone_mask)/10000"

	if acc.usedProjected {
		methodArea = "projected_constant_pixel_area"
		methodNotes = "area_ha = sum(mask) * pixel_area_ha (projected; approx for AOI < 50k ha)"
	}

	pixelAreaMean := 0.0
	if acc.pixelAreaCount > 0 {
		pixelAreaMean = acc.pixelAreaSum / float64(acc.pixelAreaCount)
	}

	pixelAreaMin := acc.pixelAreaMin
	if math.IsInf(pixelAreaMin, 1) {
		pixelAreaMin = 0
	}

	pixelAreaMax := acc.pixelAreaMax
	if math.IsInf(pixelAreaMax, -1) {
		pixelAreaMax = 0
	}

	result := &Result{
		SummaryPath:           summaryPath,
		DebugPath:             debugPath,
		TilesManifestPath:     manifestPath,
		LossMaskPath:          lossMaskPath,
		CurrentMaskPath:       currentMaskPath,
		Forest2000MaskPath:    forest2000MaskPath,
		ForestEndYearMaskPath: forestEndMaskPath,
		TileProvenance:        acc.provenance,
		ForestLossPost2020Ha:  forestLossHa,
		InitialTreeCoverHa:    initialHa,
		CurrentTreeCoverHa:    currentHa,
		Metrics: Metrics{
			CanopyThresholdPct:   e.cfg.CanopyThresholdPercent,
			ReferenceForestYear:  baselineYear,
			LossYearCodeBasis:    baselineYear,
			EndYear:              endYear,
			RFMAreaHa:            acc.rfmAreaHa,
			ForestEndYearAreaHa:  acc.forestEndHa,
			LossTotalSinceBaseHa: acc.lossTotalHa,
			LossRecentHa:         acc.lossRecentHa,
			LossRecentPctOfRFM:   lossRecentPct,
			LossTotalHa:          acc.lossTotalHa,
			Forest2024Ha:         acc.forest2024Ha,
			ForestEndYearHa:      acc.forestEndHa,
		},
		Params: MetricsParams{
			CanopyThresholdPct: e.cfg.CanopyThresholdPercent,
			StartYear:          baselineYear + 1,
			EndYear:            endYear,
			CRS:                paramsCRS,
			MethodArea:         methodArea,
			MethodZonal:        "rasterize_polygon_all_touched",
			MethodNotes:        methodNotes,
			LossYearCodeBasis:  baselineYear,
		},
		Debug: MetricsDebug{
			RasterShapes:            acc.rasterShapes,
			PixelAreaM2Min:          pixelAreaMin,
			PixelAreaM2Max:          pixelAreaMax,
			PixelAreaM2Mean:         pixelAreaMean,
			RFMTruePixels:           acc.rfmPixels,
			LossRecentTruePixels:    acc.lossRecentPixels,
			ForestEndYearTruePixels: acc.forestEndPixels,
			RFMAreaHa:               acc.rfmAreaHa,
			LossTotalSinceBaseHa:    acc.lossTotalHa,
			LossRecentHa:            acc.lossRecentHa,
			ForestEndYearAreaHa:     acc.forestEndHa,
			LossTotalHa:             acc.lossTotalHa,
			Forest2024Ha:            acc.forest2024Ha,
			ForestEndYearHa:         acc.forestEndHa,
		},
	}

	return result, nil
}

// accumulatePixelAreaStats folds min, max, sum and count of pixel
// areas over the valid zone pixels.
func (a *tileAccumulator) accumulatePixelAreaStats(zoneValid *raster.Mask, areas *geo.AreaRaster) {
	for row := 0; row < zoneValid.Height; row++ {
		for col := 0; col < zoneValid.Width; col++ {
			if !zoneValid.At(row, col) {
				continue
			}

			v := areas.At(row, col)

			a.pixelAreaSum += v
			a.pixelAreaCount++
			a.pixelAreaMin = math.Min(a.pixelAreaMin, v)
			a.pixelAreaMax = math.Max(a.pixelAreaMax, v)
		}
	}
}

// writeMaskGeoJSON writes a FeatureCollection with features ordered by
// the canonical serialization of their geometry, making the artifact
// independent of tile iteration order.
func writeMaskGeoJSON(path string, features []map[string]any) error {
	type keyed struct {
		key     string
		feature map[string]any
	}

	ordered := make([]keyed, 0, len(features))

	for _, f := range features {
		key, err := evidence.CanonicalJSON(f["geometry"])
		if err != nil {
			return err
		}

		ordered = append(ordered, keyed{key: string(key), feature: f})
	}

	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].key < ordered[j].key })

	payload := make([]any, 0, len(ordered))
	for _, k := range ordered {
		payload = append(payload, k.feature)
	}

	return evidence.WriteJSON(path, map[string]any{
		"type":     "FeatureCollection",
		"features": payload,
	})
}

func invertedCountInZone(valid, zone *raster.Mask) int {
	n := 0

	for i, v := range valid.Data {
		if !v && zone.Data[i] {
			n++
		}
	}

	return n
}

func maskToBand(m *raster.Mask) *raster.Band {
	b := raster.NewBand(m.Width, m.Height)
	for i, v := range m.Data {
		if v {
			b.Data[i] = 1
		}
	}

	return b
}

func bandToMask(b *raster.Band, dstValid *raster.Mask) *raster.Mask {
	m := raster.NewMask(b.Width, b.Height)
	for i, v := range b.Data {
		m.Data[i] = v > 0 && dstValid.Data[i]
	}

	return m
}

func allTrueMask(width, height int) *raster.Mask {
	m := raster.NewMask(width, height)
	for i := range m.Data {
		m.Data[i] = true
	}

	return m
}
