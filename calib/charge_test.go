// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// 10 samples, expected peak between samples 2 and 5, window of 3 starting
// one sample early
func testIntegration(t *testing.T, nPixels int) *Integration {
	t.Helper()
	it, err := NewIntegration(nPixels, 10, 1, 3, 2, 4)
	require.NoError(t, err)
	return it
}

// ---------------------------------------------------------------------------
// Integration windows
// ---------------------------------------------------------------------------

func TestIntegrate(t *testing.T) {
	t.Parallel()

	row := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, []float64{6, 9, 12}, Integrate(row, 3))
	assert.Equal(t, []float64{15}, Integrate(row, 5))
	assert.Nil(t, Integrate(row, 6))

	copied := Integrate(row, 1)
	assert.Equal(t, row, copied)
	copied[0] = 100
	assert.Equal(t, 1.0, row[0])
}

func TestFakeTimingHist(t *testing.T) {
	t.Parallel()

	hist := FakeTimingHist(2, 10, 2, 4)
	require.Len(t, hist, 2)
	assert.Equal(t, []float64{0, 0, 1, 1, 1, 1, 0, 0, 0, 0, 0}, hist[1])
}

func TestTimingMask(t *testing.T) {
	t.Parallel()
	it := testIntegration(t, 1)

	assert.Equal(t, []int{2}, it.Peak)
	assert.Equal(t, []bool{true, true, true, true, true, true, false, false}, it.Mask[0])
	assert.Equal(t, []bool{true, false, false, false, false, true, false, false}, it.Edges[0])
	assert.True(t, math.IsInf(it.ThresholdSaturation, 1))

	_, err := TimingMask(1, 12, FakeTimingHist(1, 10, 2, 4))
	assert.Error(t, err)
}

func TestLeadingEdgeTime(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 3, LeadingEdgeTime([]float64{0, 0, 0, 10, 20, 10, 0}), 1e-12)
	assert.InDelta(t, 2.5, LeadingEdgeTime([]float64{0, 0, 4, 16, 20}), 1e-12)
	assert.InDelta(t, 0, LeadingEdgeTime([]float64{20, 10}), 1e-12)
	assert.True(t, math.IsNaN(LeadingEdgeTime([]float64{0, -1, 0})))
	assert.True(t, math.IsNaN(LeadingEdgeTime(nil)))
}

// ---------------------------------------------------------------------------
// Charge extraction
// ---------------------------------------------------------------------------

func TestExtractPixel(t *testing.T) {
	t.Parallel()

	t.Run("peak inside the window", func(t *testing.T) {
		it := testIntegration(t, 1)
		p := it.ExtractPixel(0, []float64{0, 0, 0, 0, 10, 20, 10, 0, 0, 0})
		assert.Equal(t, 4, p.Peak)
		assert.Equal(t, 40.0, p.Charge)
		assert.Equal(t, 20.0, p.Amplitude)
		assert.False(t, p.Saturated)
	})

	t.Run("maximum on the edge falls back to expected peak", func(t *testing.T) {
		it := testIntegration(t, 1)
		p := it.ExtractPixel(0, []float64{0, 0, 0, 0, 0, 0, 0, 10, 20, 10})
		assert.Equal(t, 1, p.Peak)
		assert.Equal(t, 0.0, p.Charge)
		assert.Equal(t, 0.0, p.Amplitude)
	})

	t.Run("small pulse falls back to expected peak", func(t *testing.T) {
		it := testIntegration(t, 1)
		p := it.ExtractPixel(0, []float64{0, 0, 0, 1, 2, 1, 0, 0, 0, 0})
		assert.Equal(t, 1, p.Peak)
		assert.Equal(t, 1.0, p.Charge)
		assert.Equal(t, 1.0, p.Amplitude)
	})

	t.Run("saturation", func(t *testing.T) {
		it := testIntegration(t, 1)
		it.ThresholdSaturation = 35
		p := it.ExtractPixel(0, []float64{0, 0, 0, 0, 10, 20, 10, 0, 0, 0})
		assert.Equal(t, 35.0, p.Charge)
		assert.True(t, p.Saturated)
	})

	t.Run("empty mask", func(t *testing.T) {
		it := testIntegration(t, 1)
		it.Mask[0] = make([]bool, len(it.Mask[0]))
		p := it.ExtractPixel(0, []float64{0, 0, 0, 0, 10, 20, 10, 0, 0, 0})
		assert.True(t, math.IsNaN(p.Charge))
		assert.True(t, math.IsNaN(p.Amplitude))
		assert.Equal(t, -1, p.Peak)
	})

	t.Run("expected peak out of range", func(t *testing.T) {
		it := testIntegration(t, 1)
		it.Peak[0] = 100
		p := it.ExtractPixel(0, []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
		assert.True(t, math.IsNaN(p.Charge))
	})

	t.Run("unknown pixel", func(t *testing.T) {
		it := testIntegration(t, 1)
		p := it.ExtractPixel(3, make([]float64, 10))
		assert.True(t, math.IsNaN(p.Charge))
	})
}

func TestExtract(t *testing.T) {
	t.Parallel()
	it := testIntegration(t, 2)

	samples := mat.NewDense(2, 10, []float64{
		0, 0, 0, 0, 10, 20, 10, 0, 0, 0,
		0, 0, 0, 5, 10, 5, 0, 0, 0, 0,
	})
	pulses := it.Extract(samples)
	require.Len(t, pulses, 2)
	assert.Equal(t, 40.0, pulses[0].Charge)
	assert.Equal(t, 20.0, pulses[1].Charge)
	assert.Equal(t, 3, pulses[1].Peak)
}
