package geo_test

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
)

func TestResolveCRSKnownCodes(t *testing.T) {
	t.Parallel()

	wgs84, err := geo.ResolveCRS(geo.CRSWGS84)
	require.NoError(t, err)
	assert.True(t, wgs84.Geographic())
	assert.Equal(t, "EPSG:4326", wgs84.String())

	mercator, err := geo.ResolveCRS(geo.CRSWebMercator)
	require.NoError(t, err)
	assert.False(t, mercator.Geographic())
}

func TestResolveCRSProj4String(t *testing.T) {
	t.Parallel()

	crs, err := geo.ResolveCRS("+proj=longlat +datum=WGS84 +no_defs")
	require.NoError(t, err)

	assert.True(t, crs.Geographic())
}

func TestResolveCRSInvalid(t *testing.T) {
	t.Parallel()

	_, err := geo.ResolveCRS("+proj=nosuchprojection")

	assert.Error(t, err)
}

func TestCRSEqual(t *testing.T) {
	t.Parallel()

	a, err := geo.ResolveCRS(geo.CRSWGS84)
	require.NoError(t, err)
	b, err := geo.ResolveCRS(geo.CRSWGS84)
	require.NoError(t, err)
	c, err := geo.ResolveCRS(geo.CRSWebMercator)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestTransformWGS84ToWebMercator(t *testing.T) {
	t.Parallel()

	wgs84, err := geo.ResolveCRS(geo.CRSWGS84)
	require.NoError(t, err)
	mercator, err := geo.ResolveCRS(geo.CRSWebMercator)
	require.NoError(t, err)

	transform, err := wgs84.NewTransform(mercator)
	require.NoError(t, err)

	x, y, err := transform(10, 50)
	require.NoError(t, err)

	assert.InDelta(t, 1113194.9079327357, x, 1e-3)
	assert.InDelta(t, 6446275.841017158, y, 1e-3)
}

func TestTransformGeomSameCRSIsIdentity(t *testing.T) {
	t.Parallel()

	wgs84, err := geo.ResolveCRS(geo.CRSWGS84)
	require.NoError(t, err)

	poly := geom.Polygon{{{X: 10, Y: 50}, {X: 11, Y: 50}, {X: 11, Y: 51}, {X: 10, Y: 51}}}

	out, err := wgs84.TransformGeom(poly, wgs84)
	require.NoError(t, err)

	assert.Equal(t, geom.Geom(poly), out)
}
