package geo

import (
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Well-known CRS identifiers used by the engine.
const (
	// CRSWGS84 is the geographic CRS of Hansen tiles and all GeoJSON I/O.
	CRSWGS84 = "EPSG:4326"
	// CRSEqualArea is the default projected CRS for small-AOI analysis.
	CRSEqualArea = "EPSG:6933"
	// CRSWebMercator is the reprojection fallback CRS.
	CRSWebMercator = "EPSG:3857"
)

// proj4ByEPSG maps the EPSG codes the engine understands to proj4
// definitions parseable by ctessum/geom/proj.
var proj4ByEPSG = map[string]string{
	CRSWGS84:       "+proj=longlat +datum=WGS84 +no_defs",
	CRSEqualArea:   "+proj=cea +lat_ts=30 +lon_0=0 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
	CRSWebMercator: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs",
}

// CRS is a resolved coordinate reference system. The zero value is not
// usable; construct with ResolveCRS.
type CRS struct {
	code string
	sr   *proj.SR
}

// ResolveCRS parses a CRS from an "EPSG:nnnn" code (for the codes the
// engine knows) or a raw proj4 string.
func ResolveCRS(code string) (*CRS, error) {
	definition := code
	if p4, ok := proj4ByEPSG[strings.ToUpper(strings.TrimSpace(code))]; ok {
		definition = p4
	}

	sr, err := proj.Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("parse CRS %q: %w", code, err)
	}

	return &CRS{code: strings.ToUpper(strings.TrimSpace(code)), sr: sr}, nil
}

// String returns the identifier the CRS was resolved from.
func (c *CRS) String() string { return c.code }

// Geographic reports whether coordinates are degrees of longitude and
// latitude rather than projected meters.
func (c *CRS) Geographic() bool { return c.sr.Name == "longlat" }

// Equal reports whether two CRS refer to the same system.
func (c *CRS) Equal(other *CRS) bool {
	if c == nil || other == nil {
		return c == other
	}

	return c.code == other.code
}

// NewTransform builds a coordinate transformer from this CRS to dst.
func (c *CRS) NewTransform(dst *CRS) (proj.Transformer, error) {
	t, err := c.sr.NewTransform(dst.sr)
	if err != nil {
		return nil, fmt.Errorf("transform %s -> %s: %w", c.code, dst.code, err)
	}

	return t, nil
}

// TransformGeom reprojects a geometry from this CRS into dst.
func (c *CRS) TransformGeom(g geom.Geom, dst *CRS) (geom.Geom, error) {
	if c.Equal(dst) {
		return g, nil
	}

	t, err := c.NewTransform(dst)
	if err != nil {
		return nil, err
	}

	out, err := g.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("reproject geometry %s -> %s: %w", c.code, dst.code, err)
	}

	return out, nil
}
