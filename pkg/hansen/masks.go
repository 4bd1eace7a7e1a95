package hansen

import (
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
)

// lossCode converts a calendar year to its lossyear band code. Years
// at or before the baseline clamp to zero, the "no loss" code.
func lossCode(year int) uint8 {
	code := year - baselineYear
	if code < 0 {
		code = 0
	}

	if code > 255 {
		code = 255
	}

	return uint8(code)
}

// ReferenceForestMask marks pixels whose year-2000 canopy cover meets
// the threshold. Invalid pixels never enter the mask.
func ReferenceForestMask(treeCover *raster.Band, valid *raster.Mask, thresholdPercent int) *raster.Mask {
	out := raster.NewMask(treeCover.Width, treeCover.Height)

	threshold := uint8(thresholdPercent)
	for i, v := range treeCover.Data {
		out.Data[i] = valid.Data[i] && v >= threshold
	}

	return out
}

// LossTotalMask marks reference-forest pixels with any recorded loss.
func LossTotalMask(rfm *raster.Mask, lossYear *raster.Band) *raster.Mask {
	out := raster.NewMask(rfm.Width, rfm.Height)
	for i, forest := range rfm.Data {
		out.Data[i] = forest && lossYear.Data[i] > 0
	}

	return out
}

// LossRangeMask marks reference-forest pixels lost between startYear
// and endYear inclusive.
func LossRangeMask(rfm *raster.Mask, lossYear *raster.Band, startYear, endYear int) *raster.Mask {
	lo := lossCode(startYear)
	hi := lossCode(endYear)

	out := raster.NewMask(rfm.Width, rfm.Height)
	for i, forest := range rfm.Data {
		code := lossYear.Data[i]
		out.Data[i] = forest && code >= lo && code > 0 && code <= hi
	}

	return out
}

// CurrentForestMask marks reference-forest pixels with no recorded
// loss at all.
func CurrentForestMask(rfm *raster.Mask, lossYear *raster.Band) *raster.Mask {
	out := raster.NewMask(rfm.Width, rfm.Height)
	for i, forest := range rfm.Data {
		out.Data[i] = forest && lossYear.Data[i] == 0
	}

	return out
}

// ForestEndYearMask marks reference-forest pixels still standing at
// the end of endYear: never lost, or lost only after it.
func ForestEndYearMask(rfm *raster.Mask, lossYear *raster.Band, endYear int) *raster.Mask {
	cut := lossCode(endYear)

	out := raster.NewMask(rfm.Width, rfm.Height)
	for i, forest := range rfm.Data {
		code := lossYear.Data[i]
		out.Data[i] = forest && (code == 0 || code > cut)
	}

	return out
}

// LossAfterCutoffMask marks reference-forest pixels lost strictly
// after the cutoff year.
func LossAfterCutoffMask(rfm *raster.Mask, lossYear *raster.Band, cutoffYear int) *raster.Mask {
	cut := lossCode(cutoffYear)

	out := raster.NewMask(rfm.Width, rfm.Height)
	for i, forest := range rfm.Data {
		out.Data[i] = forest && lossYear.Data[i] > cut
	}

	return out
}
