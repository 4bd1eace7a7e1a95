package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/safeconv"
)

// Sentinel errors for GeoTIFF decoding.
var (
	// ErrNotTIFF indicates the file does not start with a TIFF header.
	ErrNotTIFF = errors.New("not a TIFF file")
	// ErrUnsupported indicates a TIFF feature outside the Hansen subset.
	ErrUnsupported = errors.New("unsupported TIFF feature")
	// ErrNoCRS indicates the raster carries no GeoKey CRS.
	ErrNoCRS = errors.New("raster dataset has no CRS")
	// ErrWindowOutOfRange indicates a read window outside the raster.
	ErrWindowOutOfRange = errors.New("read window out of range")
)

// Dataset is an open GeoTIFF file. It keeps the file handle for
// windowed strip reads; callers must Close it.
type Dataset struct {
	Width  int
	Height int
	// Samples is the number of interleaved bands.
	Samples int
	// Transform maps pixel to CRS coordinates.
	Transform geo.Affine
	// EPSG is the CRS code, e.g. "EPSG:4326".
	EPSG string
	// Geographic reports a longitude/latitude CRS.
	Geographic bool
	// NoData is the per-band no-data value, when declared.
	NoData *float64
	// BandDescriptions holds per-band GDAL descriptions, when present.
	BandDescriptions []string

	file         *os.File
	compression  uint16
	rowsPerStrip int
	stripOffsets []uint32
	stripCounts  []uint32
}

// Open reads the IFD of a GeoTIFF file and prepares for windowed reads.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	ds, err := parseIFD(f)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	ds.file = f

	return ds, nil
}

// Close releases the underlying file.
func (d *Dataset) Close() error {
	return d.file.Close()
}

// ReadWindow decodes one band of the given pixel window. The window
// must lie inside the raster.
func (d *Dataset) ReadWindow(band, col0, row0, width, height int) ([]uint8, error) {
	if band < 0 || band >= d.Samples {
		return nil, fmt.Errorf("%w: band %d of %d", ErrWindowOutOfRange, band, d.Samples)
	}

	if col0 < 0 || row0 < 0 || width <= 0 || height <= 0 ||
		col0+width > d.Width || row0+height > d.Height {
		return nil, fmt.Errorf("%w: %dx%d at (%d,%d) in %dx%d raster",
			ErrWindowOutOfRange, width, height, col0, row0, d.Width, d.Height)
	}

	out := make([]uint8, width*height)

	firstStrip := row0 / d.rowsPerStrip
	lastStrip := (row0 + height - 1) / d.rowsPerStrip

	for strip := firstStrip; strip <= lastStrip; strip++ {
		data, err := d.readStrip(strip)
		if err != nil {
			return nil, err
		}

		stripRow0 := strip * d.rowsPerStrip
		stripRows := min(d.rowsPerStrip, d.Height-stripRow0)

		for r := 0; r < stripRows; r++ {
			row := stripRow0 + r
			if row < row0 || row >= row0+height {
				continue
			}

			src := (r*d.Width + col0) * d.Samples
			dst := (row - row0) * width

			for c := 0; c < width; c++ {
				out[dst+c] = data[src+c*d.Samples+band]
			}
		}
	}

	return out, nil
}

func (d *Dataset) readStrip(strip int) ([]uint8, error) {
	raw := make([]byte, d.stripCounts[strip])

	_, err := d.file.ReadAt(raw, int64(d.stripOffsets[strip]))
	if err != nil {
		return nil, fmt.Errorf("read strip %d: %w", strip, err)
	}

	if d.compression == compressionNone {
		return raw, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("inflate strip %d: %w", strip, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate strip %d: %w", strip, err)
	}

	return data, nil
}

type rawEntry struct {
	datatype uint16
	count    uint32
	value    []byte
}

func parseIFD(f *os.File) (*Dataset, error) {
	header := make([]byte, tiffHeaderSize)

	_, err := io.ReadFull(f, header)
	if err != nil {
		return nil, ErrNotTIFF
	}

	var order binary.ByteOrder

	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	if order.Uint16(header[2:]) != 42 {
		return nil, ErrNotTIFF
	}

	entries, err := readEntries(f, order, order.Uint32(header[4:]))
	if err != nil {
		return nil, err
	}

	return datasetFromEntries(entries, order)
}

func readEntries(f *os.File, order binary.ByteOrder, ifdOffset uint32) (map[uint16]rawEntry, error) {
	countBuf := make([]byte, 2)

	_, err := f.ReadAt(countBuf, int64(ifdOffset))
	if err != nil {
		return nil, fmt.Errorf("read IFD: %w", err)
	}

	n := int(order.Uint16(countBuf))
	table := make([]byte, n*ifdEntrySize)

	_, err = f.ReadAt(table, int64(ifdOffset)+2)
	if err != nil {
		return nil, fmt.Errorf("read IFD entries: %w", err)
	}

	entries := make(map[uint16]rawEntry, n)

	for i := 0; i < n; i++ {
		rec := table[i*ifdEntrySize : (i+1)*ifdEntrySize]
		tag := order.Uint16(rec[0:])
		datatype := order.Uint16(rec[2:])
		count := order.Uint32(rec[4:])

		size := typeSize(datatype) * int(count)
		if size <= 0 {
			continue
		}

		var value []byte
		if size <= 4 {
			value = append([]byte(nil), rec[8:8+size]...)
		} else {
			value = make([]byte, size)

			_, err = f.ReadAt(value, int64(order.Uint32(rec[8:])))
			if err != nil {
				return nil, fmt.Errorf("read tag %d value: %w", tag, err)
			}
		}

		entries[tag] = rawEntry{datatype: datatype, count: count, value: value}
	}

	return entries, nil
}

func typeSize(datatype uint16) int {
	switch datatype {
	case typeByte, typeASCII:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational, typeDouble:
		return 8
	default:
		return 0
	}
}

func datasetFromEntries(entries map[uint16]rawEntry, order binary.ByteOrder) (*Dataset, error) {
	ds := &Dataset{Samples: 1, compression: compressionNone}

	ds.Width = safeconv.SafeInt(uint64(scalar(entries, order, tagImageWidth)))
	ds.Height = safeconv.SafeInt(uint64(scalar(entries, order, tagImageLength)))

	if ds.Width <= 0 || ds.Height <= 0 {
		return nil, fmt.Errorf("%w: missing image size", ErrUnsupported)
	}

	if v := scalar(entries, order, tagSamplesPerPixel); v > 0 {
		ds.Samples = safeconv.SafeInt(uint64(v))
	}

	if v := scalar(entries, order, tagCompression); v > 0 {
		ds.compression = uint16(v)
	}

	if ds.compression != compressionNone && ds.compression != compressionDeflate {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, ds.compression)
	}

	for _, bits := range integers(entries, order, tagBitsPerSample) {
		if bits != 8 {
			return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
		}
	}

	ds.rowsPerStrip = ds.Height
	if v := safeconv.SafeInt(uint64(scalar(entries, order, tagRowsPerStrip))); v > 0 && v < ds.Height {
		ds.rowsPerStrip = v
	}

	ds.stripOffsets = integers(entries, order, tagStripOffsets)
	ds.stripCounts = integers(entries, order, tagStripByteCounts)

	if len(ds.stripOffsets) == 0 || len(ds.stripOffsets) != len(ds.stripCounts) {
		return nil, fmt.Errorf("%w: missing strip layout", ErrUnsupported)
	}

	err := applyGeoreferencing(ds, entries, order)
	if err != nil {
		return nil, err
	}

	if raw, ok := entries[tagGDALNoData]; ok {
		text := strings.TrimRight(string(raw.value), "\x00")

		nodata, parseErr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if parseErr == nil {
			ds.NoData = &nodata
		}
	}

	if raw, ok := entries[tagGDALMetadata]; ok {
		ds.BandDescriptions = parseBandDescriptions(string(raw.value), ds.Samples)
	}

	return ds, nil
}

func applyGeoreferencing(ds *Dataset, entries map[uint16]rawEntry, order binary.ByteOrder) error {
	scale := doubles(entries, order, tagModelPixelScale)
	tiepoint := doubles(entries, order, tagModelTiepoint)

	if len(scale) < 2 || len(tiepoint) < 5 {
		return fmt.Errorf("%w: missing georeferencing tags", ErrUnsupported)
	}

	// Tiepoint maps raster point (i, j) to model point (x, y).
	i, j := tiepoint[0], tiepoint[1]
	x, y := tiepoint[3], tiepoint[4]

	ds.Transform = geo.Affine{
		A: scale[0], B: 0, C: x - i*scale[0],
		D: 0, E: -scale[1], F: y + j*scale[1],
	}

	keys := integers(entries, order, tagGeoKeyDirectory)
	if len(keys) < 4 {
		return ErrNoCRS
	}

	var modelType, epsg uint32

	for k := 4; k+3 < len(keys); k += 4 {
		switch keys[k] {
		case geoKeyModelType:
			modelType = keys[k+3]
		case geoKeyGeographicCS, geoKeyProjectedCS:
			if epsg == 0 || keys[k] == uint32(crsKeyFor(modelType)) {
				epsg = keys[k+3]
			}
		}
	}

	if epsg == 0 {
		return ErrNoCRS
	}

	ds.EPSG = fmt.Sprintf("EPSG:%d", epsg)
	ds.Geographic = modelType == modelTypeGeographic

	return nil
}

func crsKeyFor(modelType uint32) uint16 {
	if modelType == modelTypeGeographic {
		return geoKeyGeographicCS
	}

	return geoKeyProjectedCS
}

var bandDescriptionRe = regexp.MustCompile(
	`<Item name="DESCRIPTION" sample="(\d+)"[^>]*>([^<]*)</Item>`)

func parseBandDescriptions(xml string, samples int) []string {
	out := make([]string, samples)

	for _, m := range bandDescriptionRe.FindAllStringSubmatch(xml, -1) {
		idx, err := strconv.Atoi(m[1])
		if err == nil && idx >= 0 && idx < samples {
			out[idx] = m[2]
		}
	}

	return out
}

func scalar(entries map[uint16]rawEntry, order binary.ByteOrder, tag uint16) uint32 {
	values := integers(entries, order, tag)
	if len(values) == 0 {
		return 0
	}

	return values[0]
}

func integers(entries map[uint16]rawEntry, order binary.ByteOrder, tag uint16) []uint32 {
	raw, ok := entries[tag]
	if !ok {
		return nil
	}

	out := make([]uint32, 0, raw.count)

	for i := uint32(0); i < raw.count; i++ {
		switch raw.datatype {
		case typeShort:
			out = append(out, uint32(order.Uint16(raw.value[i*2:])))
		case typeLong:
			out = append(out, order.Uint32(raw.value[i*4:]))
		}
	}

	return out
}

func doubles(entries map[uint16]rawEntry, order binary.ByteOrder, tag uint16) []float64 {
	raw, ok := entries[tag]
	if !ok || raw.datatype != typeDouble {
		return nil
	}

	out := make([]float64, 0, raw.count)
	for i := uint32(0); i < raw.count; i++ {
		out = append(out, math.Float64frombits(order.Uint64(raw.value[i*8:])))
	}

	return out
}
