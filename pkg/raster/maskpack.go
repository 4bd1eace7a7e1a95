package raster

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/canopy/pkg/safeconv"
)

// ErrMaskPackCorrupt reports a packed mask blob that cannot be decoded.
var ErrMaskPackCorrupt = errors.New("raster: packed mask is corrupt")

const maskPackHeaderSize = 8 // width uint32 + height uint32

// PackMask serializes a mask as an LZ4-compressed bitset with a small
// dimension header. Masks are mostly runs of equal bits, which LZ4
// block compression handles well.
func PackMask(mask *Mask) ([]byte, error) {
	raw := make([]byte, maskPackHeaderSize+(len(mask.Data)+7)/8)
	binary.LittleEndian.PutUint32(raw[0:4], safeconv.MustIntToUint32(mask.Width))
	binary.LittleEndian.PutUint32(raw[4:8], safeconv.MustIntToUint32(mask.Height))

	for i, set := range mask.Data {
		if set {
			raw[maskPackHeaderSize+i/8] |= 1 << (i % 8)
		}
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("raster: compress mask: %w", err)
	}

	if written == 0 {
		// Incompressible input; store the block verbatim with a zero
		// marker so UnpackMask can tell the two apart.
		out := make([]byte, 1+len(raw))
		copy(out[1:], raw)

		return out, nil
	}

	out := make([]byte, 1+written)
	out[0] = 1
	copy(out[1:], compressed[:written])

	return out, nil
}

// UnpackMask restores a mask produced by PackMask.
func UnpackMask(data []byte, width, height int) (*Mask, error) {
	if len(data) < 1 {
		return nil, ErrMaskPackCorrupt
	}

	rawLen := maskPackHeaderSize + (width*height+7)/8
	raw := data[1:]

	if data[0] == 1 {
		raw = make([]byte, rawLen)

		n, err := lz4.UncompressBlock(data[1:], raw)
		if err != nil {
			return nil, fmt.Errorf("raster: decompress mask: %w", err)
		}

		raw = raw[:n]
	}

	if len(raw) != rawLen {
		return nil, ErrMaskPackCorrupt
	}

	if int(binary.LittleEndian.Uint32(raw[0:4])) != width ||
		int(binary.LittleEndian.Uint32(raw[4:8])) != height {
		return nil, ErrMaskPackCorrupt
	}

	mask := NewMask(width, height)
	for i := range mask.Data {
		mask.Data[i] = raw[maskPackHeaderSize+i/8]&(1<<(i%8)) != 0
	}

	return mask, nil
}
