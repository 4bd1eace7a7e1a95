package hansen

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ctessum/geom"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/geotiff"
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
)

// ErrShapeMismatch reports paired rasters with different dimensions.
var ErrShapeMismatch = errors.New("hansen: mismatched raster shapes for treecover2000 and lossyear")

// tileData is one loaded treecover2000/lossyear pair, cropped to the
// analysis window.
type tileData struct {
	Tree      *raster.Band
	Loss      *raster.Band
	LossCheck *raster.Band // optional second loss band, for consistency checks
	TreeValid *raster.Mask
	LossValid *raster.Mask
	Valid     *raster.Mask
	Transform geo.Affine
	CRS       *geo.CRS
	Width     int
	Height    int
}

// loadTilePair reads both layers of a tile. When aoi is non-nil the
// window is cropped to the AOI's bounds in the raster CRS and pixels
// outside the geometry are invalidated, mirroring a crop-and-mask read.
// An AOI that misses the tile entirely yields a 1x1 all-invalid window.
func loadTilePair(treePath, lossPath string, aoi geom.Polygonal, logger *slog.Logger) (*tileData, error) {
	treeDS, err := geotiff.Open(treePath)
	if err != nil {
		return nil, fmt.Errorf("hansen: open treecover2000: %w", err)
	}
	defer treeDS.Close()

	lossDS, err := geotiff.Open(lossPath)
	if err != nil {
		return nil, fmt.Errorf("hansen: open lossyear: %w", err)
	}
	defer lossDS.Close()

	if treeDS.Width != lossDS.Width || treeDS.Height != lossDS.Height {
		return nil, ErrShapeMismatch
	}

	crs, err := geo.ResolveCRS(treeDS.EPSG)
	if err != nil {
		return nil, err
	}

	col0, row0, width, height := 0, 0, treeDS.Width, treeDS.Height

	var aoiInCRS geom.Polygonal

	if aoi != nil {
		wgs84, resolveErr := geo.ResolveCRS(geo.CRSWGS84)
		if resolveErr != nil {
			return nil, resolveErr
		}

		reprojected, tErr := wgs84.TransformGeom(aoi, crs)
		if tErr != nil {
			return nil, tErr
		}

		var ok bool

		aoiInCRS, ok = reprojected.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("hansen: AOI reprojected to non-polygonal geometry")
		}

		col0, row0, width, height = cropWindow(treeDS.Transform, treeDS.Width, treeDS.Height, aoiInCRS.Bounds())
		if width == 0 || height == 0 {
			return emptyTileData(treeDS.Transform, crs), nil
		}
	}

	treePixels, err := treeDS.ReadWindow(0, col0, row0, width, height)
	if err != nil {
		return nil, fmt.Errorf("hansen: read treecover2000: %w", err)
	}

	lossPixels, err := lossDS.ReadWindow(0, col0, row0, width, height)
	if err != nil {
		return nil, fmt.Errorf("hansen: read lossyear: %w", err)
	}

	td := &tileData{
		Tree:      &raster.Band{Width: width, Height: height, Data: treePixels},
		Loss:      &raster.Band{Width: width, Height: height, Data: lossPixels},
		TreeValid: raster.NewMask(width, height),
		LossValid: raster.NewMask(width, height),
		Transform: treeDS.Transform.Translate(col0, row0),
		CRS:       crs,
		Width:     width,
		Height:    height,
	}

	for i := range td.TreeValid.Data {
		td.TreeValid.Data[i] = validPixel(treePixels[i], treeDS.NoData)
		td.LossValid.Data[i] = validPixel(lossPixels[i], lossDS.NoData)
	}

	if band := extraLossBand(lossDS, logger); band >= 0 {
		pixels, readErr := lossDS.ReadWindow(band, col0, row0, width, height)
		if readErr != nil {
			return nil, fmt.Errorf("hansen: read loss consistency band: %w", readErr)
		}

		td.LossCheck = &raster.Band{Width: width, Height: height, Data: pixels}
	}

	if aoiInCRS != nil {
		aoiMask, rErr := raster.RasterizeZone(aoiInCRS, td.Transform, width, height, true)
		if rErr != nil {
			return nil, rErr
		}

		td.TreeValid = td.TreeValid.And(aoiMask)
		td.LossValid = td.LossValid.And(aoiMask)
	}

	td.Valid = td.TreeValid.And(td.LossValid)

	return td, nil
}

func emptyTileData(t geo.Affine, crs *geo.CRS) *tileData {
	return &tileData{
		Tree:      raster.NewBand(1, 1),
		Loss:      raster.NewBand(1, 1),
		TreeValid: raster.NewMask(1, 1),
		LossValid: raster.NewMask(1, 1),
		Valid:     raster.NewMask(1, 1),
		Transform: t,
		CRS:       crs,
		Width:     1,
		Height:    1,
	}
}

// cropWindow clips a CRS-space bounding box to pixel indices. Zero
// width or height means no overlap.
func cropWindow(t geo.Affine, width, height int, b *geom.Bounds) (col0, row0, w, h int) {
	inv, err := t.Invert()
	if err != nil {
		return 0, 0, width, height
	}

	c1, r1 := inv.Apply(b.Min.X, b.Min.Y)
	c2, r2 := inv.Apply(b.Max.X, b.Max.Y)

	minCol := clampInt(int(math.Floor(min(c1, c2))), 0, width)
	maxCol := clampInt(int(math.Ceil(max(c1, c2))), 0, width)
	minRow := clampInt(int(math.Floor(min(r1, r2))), 0, height)
	maxRow := clampInt(int(math.Ceil(max(r1, r2))), 0, height)

	return minCol, minRow, maxCol - minCol, maxRow - minRow
}

func validPixel(v uint8, nodata *float64) bool {
	return nodata == nil || float64(v) != *nodata
}

// extraLossBand returns the index of a secondary band whose
// description mentions loss, or -1.
func extraLossBand(ds *geotiff.Dataset, logger *slog.Logger) int {
	if ds.Samples <= 1 {
		return -1
	}

	for idx, desc := range ds.BandDescriptions {
		if idx == 0 {
			continue
		}

		if strings.Contains(strings.ToLower(desc), "loss") {
			return idx
		}
	}

	if logger != nil {
		logger.Debug("multi-band lossyear raster without a described loss band",
			slog.Int("bands", ds.Samples))
	}

	return -1
}

// warnLossConsistency compares the primary lossyear codes against a
// secondary loss band over the valid region and logs disagreement.
func warnLossConsistency(td *tileData, logger *slog.Logger) {
	if td.LossCheck == nil || logger == nil {
		return
	}

	mismatches := 0

	for i, valid := range td.Valid.Data {
		if !valid {
			continue
		}

		primaryLoss := td.Loss.Data[i] > 0
		checkLoss := td.LossCheck.Data[i] > 0

		if primaryLoss != checkLoss {
			mismatches++
		}
	}

	if mismatches > 0 {
		logger.Warn("lossyear bands disagree over valid region",
			slog.Int("mismatched_pixels", mismatches))
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
