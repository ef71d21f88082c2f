// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Pulse is the charge extracted from one pixel. Peak is -1 and Charge and
// Amplitude are NaN when no valid peak was found.
type Pulse struct {
	Charge    float64
	Amplitude float64
	Peak      int
	Saturated bool
}

func noPulse() Pulse {
	return Pulse{Charge: math.NaN(), Amplitude: math.NaN(), Peak: -1}
}

// ExtractPixel locates the peak of one baseline subtracted trace.
//
// The peak is the maximum of the integrated trace inside the pixel's mask.
// If that maximum sits on the mask edge, or is below PeakMinimum, the
// expected peak position is used instead.
func (it *Integration) ExtractPixel(pixel int, row []float64) Pulse {
	if pixel >= len(it.Mask) {
		return noPulse()
	}
	integrated := Integrate(row, it.WindowWidth)
	mask := it.Mask[pixel]
	edges := it.Edges[pixel]

	iMask, iEdge := -1, -1
	for j, v := range integrated {
		if j < len(mask) && mask[j] && (iMask < 0 || v > integrated[iMask]) {
			iMask = j
		}
		if j < len(edges) && edges[j] && (iEdge < 0 || v > integrated[iEdge]) {
			iEdge = j
		}
	}
	if iMask < 0 {
		return noPulse()
	}

	peak := iMask
	if iMask == iEdge || integrated[iMask] < it.PeakMinimum {
		peak = it.Peak[pixel] - it.WindowStart
		if peak < 0 {
			peak = 0
		}
	}
	if peak >= len(integrated) {
		return noPulse()
	}

	p := Pulse{
		Charge: integrated[peak],
		Peak:   peak,
	}
	if p.Charge > it.ThresholdSaturation {
		p.Charge = it.ThresholdSaturation
		p.Saturated = true
	}

	p.Amplitude = math.Inf(-1)
	end := peak + it.WindowWidth
	if end > len(row) {
		end = len(row)
	}
	for _, v := range row[peak:end] {
		p.Amplitude = math.Max(p.Amplitude, v)
	}
	return p
}

// Extract runs ExtractPixel over every row of samples.
func (it *Integration) Extract(samples *mat.Dense) []Pulse {
	nPixels, _ := samples.Dims()
	pulses := make([]Pulse, nPixels)
	for i := range pulses {
		pulses[i] = it.ExtractPixel(i, samples.RawRowView(i))
	}
	return pulses
}
