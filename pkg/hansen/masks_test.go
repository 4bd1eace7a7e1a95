package hansen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
	"github.com/Sumatoshi-tech/canopy/pkg/raster"
)

// worked2x2 is a small scenario covering every mask: pixel (0,0) is
// forest lost in 2021, (0,1) is below the canopy threshold, (1,0) is
// untouched forest, (1,1) is forest lost in 2005.
func worked2x2() (tree, loss *raster.Band, valid *raster.Mask) {
	tree = &raster.Band{Width: 2, Height: 2, Data: []uint8{80, 5, 30, 50}}
	loss = &raster.Band{Width: 2, Height: 2, Data: []uint8{21, 0, 0, 5}}

	valid = raster.NewMask(2, 2)
	for i := range valid.Data {
		valid.Data[i] = true
	}

	return tree, loss, valid
}

func TestReferenceForestMask(t *testing.T) {
	t.Parallel()

	tree, _, valid := worked2x2()

	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	assert.Equal(t, []bool{true, false, true, true}, rfm.Data)
}

func TestReferenceForestMaskExcludesInvalid(t *testing.T) {
	t.Parallel()

	tree, _, valid := worked2x2()
	valid.Set(0, 0, false)

	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	assert.Equal(t, []bool{false, false, true, true}, rfm.Data)
}

func TestLossTotalMask(t *testing.T) {
	t.Parallel()

	tree, loss, valid := worked2x2()
	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	total := hansen.LossTotalMask(rfm, loss)

	assert.Equal(t, []bool{true, false, false, true}, total.Data)
}

func TestLossAfterCutoffMask(t *testing.T) {
	t.Parallel()

	tree, loss, valid := worked2x2()
	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	post := hansen.LossAfterCutoffMask(rfm, loss, 2020)

	// Only the 2021 loss is after the cutoff; the 2005 loss is not.
	assert.Equal(t, []bool{true, false, false, false}, post.Data)
}

func TestCurrentForestMask(t *testing.T) {
	t.Parallel()

	tree, loss, valid := worked2x2()
	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	current := hansen.CurrentForestMask(rfm, loss)

	assert.Equal(t, []bool{false, false, true, false}, current.Data)
}

func TestForestEndYearMask(t *testing.T) {
	t.Parallel()

	tree, loss, valid := worked2x2()
	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	// At end of 2024 both recorded losses have happened.
	end2024 := hansen.ForestEndYearMask(rfm, loss, 2024)
	assert.Equal(t, []bool{false, false, true, false}, end2024.Data)

	// At end of 2004 the 2005 loss has not happened yet and the 2021
	// loss pixel still stands.
	end2004 := hansen.ForestEndYearMask(rfm, loss, 2004)
	assert.Equal(t, []bool{true, false, true, true}, end2004.Data)
}

func TestLossRangeMask(t *testing.T) {
	t.Parallel()

	tree, loss, valid := worked2x2()
	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	recent := hansen.LossRangeMask(rfm, loss, 2021, 2024)
	assert.Equal(t, []bool{true, false, false, false}, recent.Data)

	early := hansen.LossRangeMask(rfm, loss, 2001, 2010)
	assert.Equal(t, []bool{false, false, false, true}, early.Data)

	all := hansen.LossRangeMask(rfm, loss, 2001, 2024)
	assert.Equal(t, []bool{true, false, false, true}, all.Data)
}

func TestLossRangeMaskClampsPreBaselineStart(t *testing.T) {
	t.Parallel()

	tree, loss, valid := worked2x2()
	rfm := hansen.ReferenceForestMask(tree, valid, 10)

	// A start before the baseline never counts unlost pixels.
	clamped := hansen.LossRangeMask(rfm, loss, 1990, 2024)
	assert.Equal(t, []bool{true, false, false, true}, clamped.Data)
}

func TestInferLatestYear(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2024, hansen.InferLatestYear("2024-v1.12", ""))
	assert.Equal(t, 2026, hansen.InferLatestYear("2026-v1.14", "/data/hansen_gfc_2021_v1_9/tiles"))
	assert.Equal(t, 2021, hansen.InferLatestYear("", "/data/hansen_gfc_2021_v1_9/tiles"))
	assert.Equal(t, 2024, hansen.InferLatestYear("unknown", "/tiles"))
}
