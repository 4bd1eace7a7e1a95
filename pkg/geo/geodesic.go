package geo

import "math"

// WGS84 ellipsoid constants.
const (
	wgs84SemiMajorM = 6378137.0
	wgs84Flattening = 1.0 / 298.257223563
	wgs84Eccentric2 = wgs84Flattening * (2 - wgs84Flattening)
)

// squareMetersPerHectare converts between area units.
const squareMetersPerHectare = 10000.0

// AreaRaster provides the per-pixel ground area of a raster window in
// square meters. Projected rasters have a constant pixel area; for
// geographic rasters the pixel footprint is a lon/lat quad whose
// ellipsoidal area varies by row only (north-up transforms).
type AreaRaster struct {
	width    int
	height   int
	constant float64
	byRow    []float64
}

// NewProjectedAreaRaster builds an AreaRaster with the constant pixel
// area |a*e| of a projected transform.
func NewProjectedAreaRaster(t Affine, width, height int) *AreaRaster {
	return &AreaRaster{
		width:    width,
		height:   height,
		constant: math.Abs(t.A * t.E),
	}
}

// NewGeodesicAreaRaster builds an AreaRaster of per-row ellipsoidal
// pixel areas for a north-up geographic transform (degrees).
func NewGeodesicAreaRaster(t Affine, width, height int) *AreaRaster {
	byRow := make([]float64, height)
	for row := range byRow {
		_, yTop := t.Apply(0, float64(row))
		_, yBottom := t.Apply(0, float64(row+1))
		byRow[row] = ellipsoidQuadAreaM2(math.Abs(t.A), yTop, yBottom)
	}

	return &AreaRaster{width: width, height: height, byRow: byRow}
}

// At returns the pixel area in square meters at (row, col).
func (a *AreaRaster) At(row, _ int) float64 {
	if a.byRow == nil {
		return a.constant
	}

	return a.byRow[row]
}

// Constant reports whether every pixel has the same area.
func (a *AreaRaster) Constant() bool { return a.byRow == nil }

// ellipsoidQuadAreaM2 is the exact WGS84 ellipsoid surface area of a
// quad spanning widthDeg of longitude between two latitudes (degrees).
// It evaluates the authalic-latitude integral (Snyder, Map Projections,
// eq. 3-12): the cylindrical equal-area image of the quad has area
// a^2 * dLambda * (q(lat2) - q(lat1)) / 2.
func ellipsoidQuadAreaM2(widthDeg, lat1Deg, lat2Deg float64) float64 {
	dLambda := widthDeg * math.Pi / 180

	q2 := authalicQ(lat2Deg * math.Pi / 180)
	q1 := authalicQ(lat1Deg * math.Pi / 180)

	return math.Abs(wgs84SemiMajorM * wgs84SemiMajorM * dLambda * (q2 - q1) / 2)
}

func authalicQ(latRad float64) float64 {
	e := math.Sqrt(wgs84Eccentric2)
	s := math.Sin(latRad)

	return (1 - wgs84Eccentric2) * (s/(1-wgs84Eccentric2*s*s) -
		(1/(2*e))*math.Log((1-e*s)/(1+e*s)))
}

// PixelQuadAreaM2 returns the geodesic area of a single pixel of a
// geographic raster, the footprint bounded by the pixel's corners.
func PixelQuadAreaM2(t Affine, row, col int) float64 {
	x0, y0 := t.Apply(float64(col), float64(row))
	x1, y1 := t.Apply(float64(col+1), float64(row+1))

	return ellipsoidQuadAreaM2(math.Abs(x1-x0), y0, y1)
}

// M2ToHa converts square meters to hectares.
func M2ToHa(m2 float64) float64 { return m2 / squareMetersPerHectare }
