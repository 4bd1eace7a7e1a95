package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
)

// authalicRadiusM is the radius of the sphere with the WGS84 surface
// area, the reference for sanity-checking geodesic pixel areas.
const authalicRadiusM = 6371007.1810

func sphericalQuadAreaM2(widthDeg, lat1Deg, lat2Deg float64) float64 {
	dLambda := widthDeg * math.Pi / 180
	s1 := math.Sin(lat1Deg * math.Pi / 180)
	s2 := math.Sin(lat2Deg * math.Pi / 180)

	return math.Abs(authalicRadiusM * authalicRadiusM * dLambda * (s2 - s1))
}

func TestGeodesicAreaMatchesSphericalReference(t *testing.T) {
	t.Parallel()

	// One Hansen pixel (0.00025 degree) near 59N.
	tr := geo.Affine{A: 0.00025, C: 24, E: -0.00025, F: 59}
	areas := geo.NewGeodesicAreaRaster(tr, 1, 1)

	got := areas.At(0, 0)
	want := sphericalQuadAreaM2(0.00025, 59, 58.99975)

	assert.InEpsilon(t, want, got, 0.005)
	// Roughly 27.8m tall by 14.3m wide at this latitude.
	assert.Greater(t, got, 350.0)
	assert.Less(t, got, 500.0)
}

func TestGeodesicAreaShrinksPoleward(t *testing.T) {
	t.Parallel()

	tr := geo.Affine{A: 0.25, C: 10, E: -0.25, F: 70}
	areas := geo.NewGeodesicAreaRaster(tr, 1, 8)

	for row := 1; row < 8; row++ {
		assert.Greater(t, areas.At(row, 0), areas.At(row-1, 0))
	}

	assert.False(t, areas.Constant())
}

func TestGeodesicAreaSumsToEllipsoidSurface(t *testing.T) {
	t.Parallel()

	// 180 one-degree rows spanning the full globe.
	tr := geo.Affine{A: 360, C: -180, E: -1, F: 90}
	areas := geo.NewGeodesicAreaRaster(tr, 1, 180)

	total := 0.0
	for row := 0; row < 180; row++ {
		total += areas.At(row, 0)
	}

	// WGS84 surface area, 510,065,622 km2.
	assert.InEpsilon(t, 5.10065622e14, total, 1e-6)
}

func TestProjectedAreaRasterConstant(t *testing.T) {
	t.Parallel()

	tr := geo.Affine{A: 30, C: 0, E: -30, F: 0}
	areas := geo.NewProjectedAreaRaster(tr, 16, 16)

	assert.True(t, areas.Constant())
	assert.Equal(t, 900.0, areas.At(0, 0))
	assert.Equal(t, 900.0, areas.At(15, 15))
}

func TestPixelQuadAreaMatchesRowArea(t *testing.T) {
	t.Parallel()

	tr := geo.Affine{A: 0.001, C: 5, E: -0.001, F: 45}
	areas := geo.NewGeodesicAreaRaster(tr, 4, 4)

	assert.InDelta(t, areas.At(2, 0), geo.PixelQuadAreaM2(tr, 2, 3), 1e-9)
}

func TestM2ToHa(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, geo.M2ToHa(10000))
	assert.Equal(t, 0.25, geo.M2ToHa(2500))
}
