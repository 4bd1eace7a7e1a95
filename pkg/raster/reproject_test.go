package raster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
)

// geographicGrid covers lon [10, 11], lat [49, 50] with a 4x4 grid.
func geographicGrid(t *testing.T) *raster.Grid {
	t.Helper()

	crs, err := geo.ResolveCRS(geo.CRSWGS84)
	require.NoError(t, err)

	band := raster.NewBand(4, 4)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			band.Set(row, col, uint8(row*4+col+1))
		}
	}

	valid := raster.NewMask(4, 4)
	for i := range valid.Data {
		valid.Data[i] = true
	}

	return &raster.Grid{
		Bands:     []*raster.Band{band},
		Valid:     valid,
		Transform: geo.Affine{A: 0.25, C: 10, E: -0.25, F: 50},
		CRS:       crs,
	}
}

func TestToProjectedPassThroughWhenAlreadyProjected(t *testing.T) {
	t.Parallel()

	crs, err := geo.ResolveCRS(geo.CRSWebMercator)
	require.NoError(t, err)

	src := geographicGrid(t)
	src.CRS = crs

	outcome, err := raster.ToProjected(src, geo.CRSEqualArea)
	require.NoError(t, err)

	assert.True(t, outcome.Reprojected)
	assert.Same(t, src, outcome.Grid)
	assert.Empty(t, outcome.Attempts)
}

func TestToProjectedWebMercator(t *testing.T) {
	t.Parallel()

	src := geographicGrid(t)

	outcome, err := raster.ToProjected(src, geo.CRSWebMercator)
	require.NoError(t, err)

	require.True(t, outcome.Reprojected)
	require.Len(t, outcome.Attempts, 1)
	require.NoError(t, outcome.Attempts[0].Err)

	dst := outcome.Grid
	assert.Equal(t, geo.CRSWebMercator, dst.CRS.String())
	assert.False(t, dst.CRS.Geographic())
	assert.Equal(t, src.Valid.Width, dst.Valid.Width)
	assert.Equal(t, src.Valid.Height, dst.Valid.Height)

	// Mercator distortion over one degree is tiny; the resampled grid
	// keeps every pixel populated.
	assert.Equal(t, 16, dst.Valid.CountTrue())

	// Projected pixels have constant area.
	area := dst.Transform.A * dst.Transform.E
	assert.NotZero(t, area)
}

func TestToProjectedFallsBackOnBadTarget(t *testing.T) {
	t.Parallel()

	src := geographicGrid(t)

	outcome, err := raster.ToProjected(src, "+proj=nosuchprojection")
	require.NoError(t, err)

	require.True(t, outcome.Reprojected)
	require.Len(t, outcome.Attempts, 2)
	assert.Error(t, outcome.Attempts[0].Err)
	require.NoError(t, outcome.Attempts[1].Err)

	assert.Equal(t, geo.CRSWebMercator, outcome.Grid.CRS.String())
}

func TestToProjectedKeepsOriginalWhenAllFail(t *testing.T) {
	t.Parallel()

	src := geographicGrid(t)

	// Web Mercator as the request leaves no further fallback, so a
	// forced failure returns the geographic grid unchanged.
	outcome, err := raster.ToProjected(&raster.Grid{
		Bands:     src.Bands,
		Valid:     src.Valid,
		Transform: geo.Affine{}, // singular, not invertible
		CRS:       src.CRS,
	}, geo.CRSWebMercator)
	require.NoError(t, err)

	assert.False(t, outcome.Reprojected)
	require.Len(t, outcome.Attempts, 1)
	assert.Error(t, outcome.Attempts[0].Err)
	assert.Equal(t, geo.CRSWGS84, outcome.Grid.CRS.String())
}
