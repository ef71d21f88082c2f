// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T, nPixels int) *Parameters {
	t.Helper()
	p := &Parameters{
		NominalGain:     []float64{23},
		AmplitudeGain:   []float64{5},
		Crosstalk:       []float64{0.08},
		ElectronicNoise: []float64{0.8},
		TemplateArea:    4,
		TemplateArea2:   2.4,
	}
	require.NoError(t, p.Finalize(nPixels))
	return p
}

// ---------------------------------------------------------------------------
// Parameters
// ---------------------------------------------------------------------------

func TestParameters_LoadAndFinalize(t *testing.T) {
	t.Parallel()

	p, err := LoadParameters(strings.NewReader(`
nominal_gain: [20, 21, 22]
crosstalk: [0.1]
bias_resistance: 1.0e4
cell_capacitance: 5.0e-14
`))
	require.NoError(t, err)
	require.NoError(t, p.Finalize(3))

	assert.Equal(t, []float64{20, 21, 22}, p.NominalGain)
	assert.Equal(t, []float64{0.1, 0.1, 0.1}, p.Crosstalk)
	assert.Equal(t, []float64{DefaultAmplitudeGain, DefaultAmplitudeGain, DefaultAmplitudeGain}, p.AmplitudeGain)
	assert.InDelta(t, 0.5, p.Tau(), 1e-12)
	assert.Contains(t, p.AsYaml(), "nominal_gain")
}

func TestParameters_FinalizeErrors(t *testing.T) {
	t.Parallel()

	p := &Parameters{NominalGain: []float64{1, 2}}
	assert.Error(t, p.Finalize(3))

	p = &Parameters{Crosstalk: []float64{1}}
	assert.Error(t, p.Finalize(3))

	p = &Parameters{NominalGain: []float64{0}}
	assert.Error(t, p.Finalize(3))
}

// ---------------------------------------------------------------------------
// NoiseModel
// ---------------------------------------------------------------------------

func TestNoiseModel_FromStdInvertsVariance(t *testing.T) {
	t.Parallel()
	m := testParams(t, 3).NoiseModel()

	rates := []float64{0.01, 0.1, 1.0}
	std := make([]float64, len(rates))
	for i, f := range rates {
		k := m.Gain[i] * m.Gain[i] * m.TemplateArea2 / (1 - m.Crosstalk[i])
		d := 1 / (1 + f*m.Tau)
		std[i] = math.Sqrt(f*k*d*d + m.ElectronicNoise[i]*m.ElectronicNoise[i])
	}

	nsb, drop := m.FromStd(std)
	for i, f := range rates {
		assert.InDelta(t, f, nsb[i], 1e-9)
		assert.InDelta(t, 1/(1+f*m.Tau), drop[i], 1e-9)
	}
}

func TestNoiseModel_FromDarkInvertsShift(t *testing.T) {
	t.Parallel()
	m := testParams(t, 3).NoiseModel()

	rates := []float64{0.02, 0.2, 2.0}
	dark := []float64{300, 300, 300}
	shift := m.BaselineShift(rates)
	mean := make([]float64, 3)
	for i := range mean {
		mean[i] = dark[i] + shift[i]
	}

	nsb, drop := m.FromDark(mean, dark)
	for i, f := range rates {
		assert.InDelta(t, f, nsb[i], 1e-9)
		assert.InDelta(t, 1/(1+f*m.Tau), drop[i], 1e-9)
	}
}

func TestNoiseModel_Clipping(t *testing.T) {
	t.Parallel()
	m := testParams(t, 2).NoiseModel()

	nsb, drop := m.FromDark([]float64{299, 300}, []float64{300, 300})
	assert.Equal(t, []float64{0, 0}, nsb)
	assert.Equal(t, []float64{1, 1}, drop)

	// below the electronic noise
	nsb, _ = m.FromStd([]float64{0.5, 0.8})
	assert.Equal(t, []float64{0, 0}, nsb)

	// more variance than any rate can produce
	nsb, _ = m.FromStd([]float64{1e3, 1})
	assert.True(t, math.IsNaN(nsb[0]))
	assert.False(t, math.IsNaN(nsb[1]))
}
