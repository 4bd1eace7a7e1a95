package hansen

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
)

// AreaSummer accumulates the area of mask pixels inside a zone.
// Implementations must produce bit-identical totals for the same
// inputs: every strategy reduces per-row subtotals in row order, so
// float summation order never depends on scheduling.
type AreaSummer interface {
	// SumMaskedArea returns the total area in square meters of pixels
	// set in both mask and zone. A nil zone means the whole raster.
	SumMaskedArea(mask, zone *raster.Mask, areas *geo.AreaRaster) float64
}

// SequentialSummer walks rows on the calling goroutine.
type SequentialSummer struct{}

// SumMaskedArea implements AreaSummer.
func (SequentialSummer) SumMaskedArea(mask, zone *raster.Mask, areas *geo.AreaRaster) float64 {
	rowTotals := make([]float64, mask.Height)
	for row := range rowTotals {
		rowTotals[row] = rowArea(mask, zone, areas, row)
	}

	return floats.Sum(rowTotals)
}

// ParallelSummer fans rows out over worker goroutines. Row subtotals
// land in a fixed slot per row and are reduced in row order afterward,
// so results match SequentialSummer bit for bit.
type ParallelSummer struct {
	// Workers caps the goroutine count; zero or negative means
	// GOMAXPROCS.
	Workers int
}

// SumMaskedArea implements AreaSummer.
func (p ParallelSummer) SumMaskedArea(mask, zone *raster.Mask, areas *geo.AreaRaster) float64 {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if workers > mask.Height {
		workers = mask.Height
	}

	if workers <= 1 {
		return SequentialSummer{}.SumMaskedArea(mask, zone, areas)
	}

	rowTotals := make([]float64, mask.Height)
	rows := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for row := range rows {
				rowTotals[row] = rowArea(mask, zone, areas, row)
			}
		}()
	}

	for row := 0; row < mask.Height; row++ {
		rows <- row
	}

	close(rows)
	wg.Wait()

	return floats.Sum(rowTotals)
}

// rowArea sums pixel areas left to right within one row.
func rowArea(mask, zone *raster.Mask, areas *geo.AreaRaster, row int) float64 {
	total := 0.0
	base := row * mask.Width

	for col := 0; col < mask.Width; col++ {
		if !mask.Data[base+col] {
			continue
		}

		if zone != nil && !zone.Data[base+col] {
			continue
		}

		total += areas.At(row, col)
	}

	return total
}

// ZonalAreaHa returns the hectare area of mask pixels inside a zone.
func ZonalAreaHa(mask, zone *raster.Mask, areas *geo.AreaRaster, summer AreaSummer) float64 {
	if summer == nil {
		summer = SequentialSummer{}
	}

	return geo.M2ToHa(summer.SumMaskedArea(mask, zone, areas))
}
