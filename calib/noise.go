// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"
)

// NoiseModel relates the pedestal of a pixel to the night sky background
// rate it sees. A background rate f (GHz) shifts the baseline by
//
//	f G A d / (1 - xt)
//
// and adds a variance of f G^2 A2 d^2 / (1 - xt), where d = 1/(1 + f tau)
// is the gain drop caused by the voltage drop over the bias resistor.
type NoiseModel struct {
	Gain            []float64 // amplitude gain, LSB/p.e.
	Crosstalk       []float64
	ElectronicNoise []float64 // LSB
	TemplateArea    float64   // ns
	TemplateArea2   float64   // ns
	Tau             float64   // ns
}

// FromDark derives the rate from the baseline shift with respect to a
// dark run. Shifts at or below zero give a zero rate.
func (m *NoiseModel) FromDark(mean, dark []float64) (nsb, gainDrop []float64) {
	nsb = make([]float64, len(mean))
	for i := range mean {
		delta := mean[i] - dark[i]
		if !(delta > 0) {
			if math.IsNaN(delta) {
				nsb[i] = math.NaN()
			}
			continue
		}

		b := m.Gain[i] * m.TemplateArea / (1 - m.Crosstalk[i])
		denom := b - delta*m.Tau
		if denom <= 0 {
			// shift larger than the model can produce at any rate
			nsb[i] = math.NaN()
			continue
		}
		nsb[i] = delta / denom
	}
	return nsb, m.GainDrop(nsb)
}

// FromStd derives the rate from the baseline fluctuation. The electronic
// noise is subtracted in quadrature first.
func (m *NoiseModel) FromStd(std []float64) (nsb, gainDrop []float64) {
	nsb = make([]float64, len(std))
	for i := range std {
		v := std[i]*std[i] - m.ElectronicNoise[i]*m.ElectronicNoise[i]
		if !(v > 0) {
			if math.IsNaN(v) {
				nsb[i] = math.NaN()
			}
			continue
		}

		k := m.Gain[i] * m.Gain[i] * m.TemplateArea2 / (1 - m.Crosstalk[i])
		disc := k * (k - 4*v*m.Tau)
		if disc < 0 {
			nsb[i] = math.NaN()
			continue
		}
		// physical root of v (1 + f tau)^2 = f k
		nsb[i] = 2 * v / ((k - 2*v*m.Tau) + math.Sqrt(disc))
	}
	return nsb, m.GainDrop(nsb)
}

func (m *NoiseModel) GainDrop(nsb []float64) []float64 {
	drop := make([]float64, len(nsb))
	for i, f := range nsb {
		drop[i] = 1 / (1 + f*m.Tau)
	}
	return drop
}

// BaselineShift is the inverse of FromDark: the expected baseline shift
// for the given rates.
func (m *NoiseModel) BaselineShift(nsb []float64) []float64 {
	shift := make([]float64, len(nsb))
	drop := m.GainDrop(nsb)
	for i, f := range nsb {
		shift[i] = f * m.Gain[i] * m.TemplateArea * drop[i] / (1 - m.Crosstalk[i])
	}
	return shift
}
