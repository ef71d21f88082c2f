// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Integration defaults
const (
	DefaultWindowStart   = 3
	DefaultWindowWidth   = 7
	DefaultTimingWidth   = 6
	DefaultCentralSample = 11
	DefaultPeakMinimum   = 10
)

// Integrate is the boxcar sum of row over width samples. The result has
// len(row)-width+1 entries.
func Integrate(row []float64, width int) []float64 {
	if width <= 1 {
		out := make([]float64, len(row))
		copy(out, row)
		return out
	}
	n := len(row) - width + 1
	if n <= 0 {
		return nil
	}

	out := make([]float64, n)
	sum := floats.Sum(row[:width])
	out[0] = sum
	for j := 1; j < n; j++ {
		sum += row[j+width-1] - row[j-1]
		out[j] = sum
	}
	return out
}

// FakeTimingHist is a flat peak position histogram for every pixel: ones
// for sample positions in [central-width, central+width). Each row has
// nSamples+1 bins.
func FakeTimingHist(nPixels, nSamples, width, central int) [][]float64 {
	hist := make([][]float64, nPixels)
	for i := range hist {
		row := make([]float64, nSamples+1)
		for j := central - width; j < central+width; j++ {
			if j >= 0 && j < len(row) {
				row[j] = 1
			}
		}
		hist[i] = row
	}
	return hist
}

// Integration holds the per pixel search windows applied to integrated
// traces.
type Integration struct {
	WindowStart         int
	WindowWidth         int
	ThresholdSaturation float64
	PeakMinimum         float64

	// Peak is the expected peak sample per pixel
	Peak []int
	// Mask and Edges are indexed [pixel][integrated sample]
	Mask  [][]bool
	Edges [][]bool
}

// TimingMask builds the search windows from a per pixel peak position
// histogram with nSamples+1 bins. A bin is part of the mask when it holds
// more than 1e-3 of the pixel's entries; the edges are the bins bordering
// the mask.
func TimingMask(windowStart, windowWidth int, peakPositions [][]float64) (*Integration, error) {
	if windowWidth < 1 {
		return nil, fmt.Errorf("integration window width %d", windowWidth)
	}
	if windowStart < 0 {
		return nil, fmt.Errorf("integration window start %d", windowStart)
	}

	it := &Integration{
		WindowStart:         windowStart,
		WindowWidth:         windowWidth,
		ThresholdSaturation: math.Inf(1),
		PeakMinimum:         DefaultPeakMinimum,
		Peak:                make([]int, len(peakPositions)),
		Mask:                make([][]bool, len(peakPositions)),
		Edges:               make([][]bool, len(peakPositions)),
	}

	for i, hist := range peakPositions {
		if len(hist) < 2 {
			return nil, fmt.Errorf("pixel %d: peak position histogram has %d bins", i, len(hist))
		}
		nSamples := len(hist) - 1
		nIntegrated := nSamples - windowWidth + 1
		if nIntegrated < 1 {
			return nil, fmt.Errorf("pixel %d: %d samples cannot hold a window of %d", i, nSamples, windowWidth)
		}

		it.Peak[i] = floats.MaxIdx(hist)

		total := floats.Sum(hist)
		inMask := make([]bool, len(hist))
		for j, v := range hist {
			inMask[j] = total > 0 && v/total > 1e-3
		}
		window := make([]bool, len(hist))
		for j := range hist {
			window[j] = inMask[j] ||
				(j > 0 && inMask[j-1]) ||
				(j+1 < len(hist) && inMask[j+1])
		}

		mask := make([]bool, nIntegrated)
		edges := make([]bool, nIntegrated)
		for j := range mask {
			k := j + windowStart
			if k >= nSamples {
				break
			}
			mask[j] = window[k]
			edges[j] = window[k] && !inMask[k]
		}
		it.Mask[i] = mask
		it.Edges[i] = edges
	}

	return it, nil
}

// NewIntegration is TimingMask over a FakeTimingHist.
func NewIntegration(nPixels, nSamples, windowStart, windowWidth, timingWidth, centralSample int) (*Integration, error) {
	return TimingMask(windowStart, windowWidth, FakeTimingHist(nPixels, nSamples, timingWidth, centralSample))
}

// LeadingEdgeTime is the fractional sample index where the trace first
// crosses half of its maximum before the maximum, linearly interpolated.
// It is NaN for traces without a positive maximum.
func LeadingEdgeTime(row []float64) float64 {
	if len(row) == 0 {
		return math.NaN()
	}
	iMax := floats.MaxIdx(row)
	half := row[iMax] / 2
	if !(half > 0) {
		return math.NaN()
	}

	for j := iMax; j > 0; j-- {
		if row[j-1] < half {
			return float64(j-1) + (half-row[j-1])/(row[j]-row[j-1])
		}
	}
	return 0
}
