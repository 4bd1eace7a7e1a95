package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/safeconv"
)

var writeOrder = binary.LittleEndian

// tiffHeaderSize is the byte length of the little-endian TIFF header.
const tiffHeaderSize = 8

// ifdEntrySize is the byte length of one IFD entry.
const ifdEntrySize = 12

// EncodeOptions describes the raster being written.
type EncodeOptions struct {
	Width     int
	Height    int
	Transform geo.Affine
	// EPSG is the CRS code, e.g. "EPSG:4326".
	EPSG string
	// NoData, when non-nil, is written as the GDAL_NODATA tag.
	NoData *float64
	// BandDescriptions, when non-empty, are written as GDAL band
	// metadata (one entry per band).
	BandDescriptions []string
}

type ifdEntry struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

// Write encodes interleaved 8-bit bands to path. Every band must hold
// Width*Height samples.
func Write(path string, bands [][]uint8, opts EncodeOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	err = Encode(f, bands, opts)
	if err != nil {
		f.Close()

		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// Encode writes the bands as an uncompressed striped grayscale GeoTIFF.
func Encode(w io.Writer, bands [][]uint8, opts EncodeOptions) error {
	samples := len(bands)
	if samples == 0 {
		return fmt.Errorf("encode geotiff: no bands")
	}

	for i, band := range bands {
		if len(band) != opts.Width*opts.Height {
			return fmt.Errorf("encode geotiff: band %d has %d samples, want %d",
				i, len(band), opts.Width*opts.Height)
		}
	}

	pixels := interleave(bands, opts.Width, opts.Height)

	var entries []ifdEntry

	add := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag: tag, datatype: datatype, count: count, data: data})
	}

	bits := make([]uint16, samples)
	for i := range bits {
		bits[i] = 8
	}

	add(tagImageWidth, typeLong, 1, encUint32(safeconv.MustIntToUint32(opts.Width)))
	add(tagImageLength, typeLong, 1, encUint32(safeconv.MustIntToUint32(opts.Height)))
	add(tagBitsPerSample, typeShort, safeconv.MustIntToUint32(samples), encUint16s(bits))
	add(tagCompression, typeShort, 1, encUint16s([]uint16{compressionNone}))
	add(tagPhotometric, typeShort, 1, encUint16s([]uint16{1})) // BlackIsZero
	add(tagSamplesPerPixel, typeShort, 1, encUint16s([]uint16{uint16(samples)}))
	add(tagRowsPerStrip, typeLong, 1, encUint32(safeconv.MustIntToUint32(opts.Height)))
	add(tagPlanarConfig, typeShort, 1, encUint16s([]uint16{1})) // interleaved
	add(tagStripOffsets, typeLong, 1, make([]byte, 4))          // fixed up below
	add(tagStripByteCounts, typeLong, 1, encUint32(safeconv.MustIntToUint32(len(pixels))))

	// Georeferencing: pixel scale, tiepoint at pixel (0,0), geokeys.
	add(tagModelPixelScale, typeDouble, 3,
		encFloat64s([]float64{opts.Transform.A, -opts.Transform.E, 0}))
	add(tagModelTiepoint, typeDouble, 6,
		encFloat64s([]float64{0, 0, 0, opts.Transform.C, opts.Transform.F, 0}))
	add(tagGeoKeyDirectory, typeShort, uint32(len(geoKeys(opts.EPSG))), encUint16s(geoKeys(opts.EPSG)))

	if len(opts.BandDescriptions) > 0 {
		meta := encASCII(gdalMetadataXML(opts.BandDescriptions))
		add(tagGDALMetadata, typeASCII, uint32(len(meta)), meta)
	}

	if opts.NoData != nil {
		nodata := encASCII(strconv.FormatFloat(*opts.NoData, 'g', -1, 64))
		add(tagGDALNoData, typeASCII, uint32(len(nodata)), nodata)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	return writeTIFF(w, entries, pixels)
}

// writeTIFF lays the file out as header, IFD, out-of-line values, pixels.
func writeTIFF(w io.Writer, entries []ifdEntry, pixels []byte) error {
	ifdSize := 2 + ifdEntrySize*len(entries) + 4
	valueOffset := tiffHeaderSize + ifdSize

	var large bytes.Buffer

	for i := range entries {
		e := &entries[i]
		if len(e.data) > 4 {
			offset := safeconv.MustIntToUint32(valueOffset + large.Len())
			large.Write(e.data)
			e.data = encUint32(offset)
		}
	}

	pixelsOffset := safeconv.MustIntToUint32(valueOffset + large.Len())

	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			entries[i].data = encUint32(pixelsOffset)
		}
	}

	buf := new(bytes.Buffer)
	buf.Write([]byte{'I', 'I', 42, 0})
	buf.Write(encUint32(tiffHeaderSize))

	err := binary.Write(buf, writeOrder, uint16(len(entries)))
	if err != nil {
		return fmt.Errorf("write IFD count: %w", err)
	}

	for _, e := range entries {
		binary.Write(buf, writeOrder, e.tag)
		binary.Write(buf, writeOrder, e.datatype)
		binary.Write(buf, writeOrder, e.count)

		var value [4]byte

		copy(value[:], e.data)
		buf.Write(value[:])
	}

	buf.Write(encUint32(0)) // next IFD
	large.WriteTo(buf)
	buf.Write(pixels)

	_, err = w.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("write geotiff: %w", err)
	}

	return nil
}

func interleave(bands [][]uint8, width, height int) []byte {
	samples := len(bands)
	if samples == 1 {
		out := make([]byte, len(bands[0]))
		copy(out, bands[0])

		return out
	}

	out := make([]byte, width*height*samples)
	for i := 0; i < width*height; i++ {
		for s, band := range bands {
			out[i*samples+s] = band[i]
		}
	}

	return out
}

func geoKeys(epsg string) []uint16 {
	code := epsgNumber(epsg)

	if code == 4326 {
		return []uint16{
			1, 1, 0, 2, // version, revision, minor, key count
			geoKeyModelType, 0, 1, modelTypeGeographic,
			geoKeyGeographicCS, 0, 1, 4326,
		}
	}

	return []uint16{
		1, 1, 0, 2,
		geoKeyModelType, 0, 1, modelTypeProjected,
		geoKeyProjectedCS, 0, 1, code,
	}
}

func epsgNumber(epsg string) uint16 {
	const prefix = "EPSG:"
	if len(epsg) > len(prefix) {
		n, err := strconv.Atoi(epsg[len(prefix):])
		if err == nil && n > 0 && n <= math.MaxUint16 {
			return uint16(n)
		}
	}

	return 0
}

func gdalMetadataXML(descriptions []string) string {
	var buf bytes.Buffer

	buf.WriteString("<GDALMetadata>\n")

	for i, desc := range descriptions {
		fmt.Fprintf(&buf, "  <Item name=\"DESCRIPTION\" sample=\"%d\" role=\"description\">%s</Item>\n", i, desc)
	}

	buf.WriteString("</GDALMetadata>\n")

	return buf.String()
}

func encUint16s(values []uint16) []byte {
	out := make([]byte, 2*len(values))
	for i, v := range values {
		writeOrder.PutUint16(out[i*2:], v)
	}

	return out
}

func encUint32(v uint32) []byte {
	out := make([]byte, 4)
	writeOrder.PutUint32(out, v)

	return out
}

func encFloat64s(values []float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		writeOrder.PutUint64(out[i*8:], math.Float64bits(v))
	}

	return out
}

func encASCII(s string) []byte {
	return append([]byte(s), 0)
}
