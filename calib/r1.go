// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"log"
	"math"

	"github.com/sst1m/digicampipe/data"

	"gonum.org/v1/gonum/mat"
)

// R1Calibrator subtracts the baseline, derives the gain drop and night sky
// background rate and extracts the charge of every pixel.
type R1Calibrator struct {
	Params      *Parameters
	Noise       *NoiseModel
	Integration *Integration
	// DarkBaseline selects the baseline shift method for the noise model
	// when set. The baseline std is used otherwise.
	DarkBaseline      []float64
	CleaningThreshold float64
}

// NewR1Calibrator checks that the finalized parameters, integration
// windows and dark baseline describe the same number of pixels.
func NewR1Calibrator(params *Parameters, integration *Integration, dark []float64) (*R1Calibrator, error) {
	nPixels := len(params.NominalGain)
	if len(integration.Mask) != nPixels {
		return nil, fmt.Errorf("integration windows for %d pixels, parameters for %d", len(integration.Mask), nPixels)
	}
	if dark != nil && len(dark) != nPixels {
		return nil, fmt.Errorf("dark baseline for %d pixels, parameters for %d", len(dark), nPixels)
	}

	return &R1Calibrator{
		Params:            params,
		Noise:             params.NoiseModel(),
		Integration:       integration,
		DarkBaseline:      dark,
		CleaningThreshold: DefaultCleaningThreshold,
	}, nil
}

// CheckPixels reports an event whose pixel count differs from the
// calibration parameters.
func (c *R1Calibrator) CheckPixels(event *data.Event) error {
	if n := event.NPixels(); n != len(c.Params.NominalGain) {
		return fmt.Errorf("event %v has %d pixels, calibration has %d", event.ID, n, len(c.Params.NominalGain))
	}
	return nil
}

// Calibrate is a data.EventProcessor. Non physics triggers and events seen
// before the baseline is ready pass through untouched.
func (c *R1Calibrator) Calibrate(event *data.Event) {
	if event.TriggerFlag != 0 || !event.R0.BaselineReady {
		return
	}
	nPixels := event.NPixels()
	nSamples := event.NSamples()
	if nPixels == 0 || len(event.R0.BaselineMean) != nPixels {
		return
	}
	if err := c.CheckPixels(event); err != nil {
		log.Fatalf("r1 calibration: %v", err)
	}

	mean := event.R0.BaselineMean
	std := event.R0.BaselineStd
	if len(std) != nPixels {
		std = nil
	}

	samples := mat.NewDense(nPixels, nSamples, nil)
	for i, row := range event.R0.Samples {
		out := samples.RawRowView(i)
		for j, adc := range row {
			out[j] = float64(adc) - mean[i]
		}
	}

	r1 := &event.R1
	r1.PedestalMean = mean
	r1.PedestalStd = std
	r1.Samples = samples

	switch {
	case c.DarkBaseline != nil:
		r1.NSBRate, r1.GainDrop = c.Noise.FromDark(mean, c.DarkBaseline)
	case std != nil:
		r1.NSBRate, r1.GainDrop = c.Noise.FromStd(std)
	default:
		r1.NSBRate = make([]float64, nPixels)
		r1.GainDrop = make([]float64, nPixels)
		for i := range r1.NSBRate {
			r1.NSBRate[i] = math.NaN()
			r1.GainDrop[i] = 1
		}
	}

	if std != nil {
		r1.CleaningMask = CleaningMask(samples, std, c.CleaningThreshold)
	} else {
		r1.CleaningMask = make([]bool, nPixels)
	}

	pulses := c.Integration.Extract(samples)
	r1.Charge = make([]float64, nPixels)
	r1.Amplitude = make([]float64, nPixels)
	r1.PE = make([]float64, nPixels)
	r1.Saturated = make([]bool, nPixels)
	r1.TimeBin = make([]int, nPixels)
	r1.Time = make([]float64, nPixels)
	for i, p := range pulses {
		r1.Charge[i] = p.Charge
		r1.Amplitude[i] = p.Amplitude
		r1.Saturated[i] = p.Saturated
		r1.TimeBin[i] = p.Peak
		r1.PE[i] = p.Charge / (c.Params.NominalGain[i] * r1.GainDrop[i])
		if p.Peak < 0 {
			r1.Time[i] = math.NaN()
		} else {
			r1.Time[i] = float64(p.Peak*data.SamplePeriod) + float64(event.LocalClock)
		}
	}

	event.Level = data.LevelR1
}
