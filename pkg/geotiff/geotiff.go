// Package geotiff reads and writes the minimal GeoTIFF subset the
// Hansen GFC layers use: 8-bit grayscale bands in strips, uncompressed
// or Deflate, with ModelPixelScale/ModelTiepoint georeferencing and a
// GeoKey directory naming the CRS. Reads are windowed: only the strips
// covering a requested row range are decoded.
package geotiff

// TIFF data types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeDouble   = 12
)

// TIFF and GeoTIFF tag IDs.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPlanarConfig     = 284
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735
	tagGDALMetadata     = 42112
	tagGDALNoData       = 42113
)

// Compression schemes.
const (
	compressionNone    = 1
	compressionDeflate = 8
)

// GeoKey IDs.
const (
	geoKeyModelType    = 1024
	geoKeyGeographicCS = 2048
	geoKeyProjectedCS  = 3072
)

// GeoKey model types.
const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
)
