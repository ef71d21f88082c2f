// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"

	"github.com/sst1m/digicampipe/data"
)

// PulseShape turns baseline subtracted waveforms into (time, amplitude)
// pairs for the pulse template histogram. Times are in ns relative to the
// half maximum on the leading edge; amplitudes are normalised to the
// charge integrated over samples [IntegrationMin, IntegrationMax).
// Pixels with a charge outside [ChargeMin, ChargeMax] get -Inf times so
// that histograms drop them.
type PulseShape struct {
	IntegrationMin, IntegrationMax int
	ChargeMin, ChargeMax           float64
}

// Pairs returns nil when the event has no usable baseline.
func (ps *PulseShape) Pairs(e *data.Event) (x, y [][]float64) {
	baseline := eventBaseline(e)
	if baseline == nil || !e.R0.BaselineReady && len(e.R0.DigicamBaseline) == 0 {
		return nil, nil
	}

	nSamples := e.NSamples()
	lo, hi := ps.IntegrationMin, ps.IntegrationMax
	if lo < 0 {
		lo = 0
	}
	if hi > nSamples {
		hi = nSamples
	}

	x = make([][]float64, e.NPixels())
	y = make([][]float64, e.NPixels())
	adc := make([]float64, nSamples)
	for i, row := range e.R0.Samples {
		for j, v := range row {
			adc[j] = float64(v) - baseline[i]
		}

		var integral float64
		for _, v := range adc[lo:hi] {
			integral += v
		}
		arrival := LeadingEdgeTime(adc) * data.SamplePeriod
		if integral < ps.ChargeMin || integral > ps.ChargeMax || math.IsNaN(arrival) {
			arrival = math.Inf(1)
		}

		xs := make([]float64, nSamples)
		ys := make([]float64, nSamples)
		for j := range adc {
			xs[j] = float64(j*data.SamplePeriod) - arrival
			ys[j] = adc[j] / integral
		}
		x[i] = xs
		y[i] = ys
	}
	return x, y
}
