package hansen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
)

// hansenLikeGrid is a 0.00025 degree grid (the Hansen pixel size)
// around 59 degrees north.
func hansenLikeGrid(width, height int) (geo.Affine, *geo.AreaRaster) {
	t := geo.Affine{A: 0.00025, C: 25, E: -0.00025, F: 59}

	return t, geo.NewGeodesicAreaRaster(t, width, height)
}

func patternMask(width, height int) *raster.Mask {
	mask := raster.NewMask(width, height)
	for i := range mask.Data {
		mask.Data[i] = i%3 != 1
	}

	return mask
}

func TestSequentialAndParallelSummersAgreeExactly(t *testing.T) {
	t.Parallel()

	const width, height = 64, 48

	_, areas := hansenLikeGrid(width, height)
	mask := patternMask(width, height)

	zone := raster.NewMask(width, height)
	for i := range zone.Data {
		zone.Data[i] = i%5 != 0
	}

	sequential := hansen.SequentialSummer{}.SumMaskedArea(mask, zone, areas)

	for _, workers := range []int{0, 1, 2, 3, 7, 64} {
		parallel := hansen.ParallelSummer{Workers: workers}.SumMaskedArea(mask, zone, areas)

		// Bit-identical, not merely close.
		assert.Equal(t, sequential, parallel, "workers=%d", workers)
	}
}

func TestSumMaskedAreaNilZoneMeansWholeRaster(t *testing.T) {
	t.Parallel()

	const width, height = 8, 8

	_, areas := hansenLikeGrid(width, height)

	mask := raster.NewMask(width, height)
	for i := range mask.Data {
		mask.Data[i] = true
	}

	got := hansen.SequentialSummer{}.SumMaskedArea(mask, nil, areas)

	want := 0.0
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			want += areas.At(row, col)
		}
	}

	assert.InDelta(t, want, got, want*1e-12)
}

func TestZonalAreaHaConvertsToHectares(t *testing.T) {
	t.Parallel()

	// 4 pixels of exactly 2500 m2 in a projected grid is one hectare.
	transform := geo.Affine{A: 50, E: -50}
	areas := geo.NewProjectedAreaRaster(transform, 2, 2)

	mask := raster.NewMask(2, 2)
	for i := range mask.Data {
		mask.Data[i] = true
	}

	got := hansen.ZonalAreaHa(mask, nil, areas, nil)

	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestZonalAreaHaRespectsZone(t *testing.T) {
	t.Parallel()

	transform := geo.Affine{A: 100, E: -100}
	areas := geo.NewProjectedAreaRaster(transform, 2, 2)

	mask := raster.NewMask(2, 2)
	for i := range mask.Data {
		mask.Data[i] = true
	}

	zone := raster.NewMask(2, 2)
	zone.Set(0, 0, true)

	got := hansen.ZonalAreaHa(mask, zone, areas, hansen.ParallelSummer{Workers: 2})

	assert.InDelta(t, 1.0, got, 1e-12)
}
