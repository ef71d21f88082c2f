// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"

	"github.com/sst1m/digicampipe/data"

	"gonum.org/v1/gonum/floats"
)

// DefaultBaselineEvents is the number of random trigger events averaged
// into the baseline.
const DefaultBaselineEvents = 1000

// Baseline is a sliding window over the samples of the last NEvents random
// trigger events.
type Baseline struct {
	NEvents int
	// IsRandom selects the events feeding the window. Clocked triggers by
	// default.
	IsRandom func(*data.Event) bool

	nSamples  int
	sums      [][]float64 // per event in the window, per pixel
	sumSqs    [][]float64
	next      int
	filled    int
	total     []float64
	totalSq   []float64
	mean, std []float64
}

func IsClockedTrigger(e *data.Event) bool {
	return e.EventType == data.ClockedTrigger
}

func (b *Baseline) init(nPixels, nSamples int) {
	if b.NEvents <= 0 {
		b.NEvents = DefaultBaselineEvents
	}
	if b.IsRandom == nil {
		b.IsRandom = IsClockedTrigger
	}

	b.nSamples = nSamples
	b.sums = make([][]float64, b.NEvents)
	b.sumSqs = make([][]float64, b.NEvents)
	b.next = 0
	b.filled = 0
	b.total = make([]float64, nPixels)
	b.totalSq = make([]float64, nPixels)
	b.mean = nil
	b.std = nil
}

func (b *Baseline) Ready() bool {
	return b.NEvents > 0 && b.filled >= b.NEvents
}

// Add pushes the samples of one random trigger event into the window. A
// change of waveform shape restarts the accumulation.
func (b *Baseline) Add(samples [][]uint16) {
	nSamples := 0
	if len(samples) > 0 {
		nSamples = len(samples[0])
	}
	if nSamples == 0 {
		return
	}
	if b.total == nil || len(samples) != len(b.total) || nSamples != b.nSamples {
		b.init(len(samples), nSamples)
	}

	sum := b.sums[b.next]
	sumSq := b.sumSqs[b.next]
	if sum == nil {
		sum = make([]float64, len(samples))
		sumSq = make([]float64, len(samples))
		b.sums[b.next] = sum
		b.sumSqs[b.next] = sumSq
	} else {
		// the oldest event leaves the window
		floats.Sub(b.total, sum)
		floats.Sub(b.totalSq, sumSq)
	}

	for i, row := range samples {
		var s, s2 float64
		for _, adc := range row {
			v := float64(adc)
			s += v
			s2 += v * v
		}
		sum[i] = s
		sumSq[i] = s2
	}
	floats.Add(b.total, sum)
	floats.Add(b.totalSq, sumSq)

	b.next = (b.next + 1) % b.NEvents
	if b.filled < b.NEvents {
		b.filled++
	}

	b.update()
}

// update publishes new mean and std slices. Published slices are never
// written to again, so events may keep references to them.
func (b *Baseline) update() {
	n := float64(b.filled * b.nSamples)
	mean := make([]float64, len(b.total))
	std := make([]float64, len(b.total))
	for i := range b.total {
		mean[i] = b.total[i] / n
		variance := b.totalSq[i]/n - mean[i]*mean[i]
		if variance < 0 {
			variance = 0
		}
		std[i] = math.Sqrt(variance)
	}
	b.mean = mean
	b.std = std
}

func (b *Baseline) Mean() []float64 {
	return b.mean
}

func (b *Baseline) Std() []float64 {
	return b.std
}

// Fill is a data.StreamProcessor. Every event leaving the stage carries
// the baseline as it stood after the event was seen.
func (b *Baseline) Fill(input <-chan *data.Event, output chan<- *data.Event) {
	if b.IsRandom == nil {
		b.IsRandom = IsClockedTrigger
	}

	for event := range input {
		if b.IsRandom(event) {
			b.Add(event.R0.Samples)
		}

		event.R0.BaselineMean = b.mean
		event.R0.BaselineStd = b.std
		event.R0.BaselineReady = b.Ready()

		output <- event
	}
}

// UseDigicamBaseline takes the baseline computed on board as the event
// pedestal mean. The std of the random trigger window, if any, is kept.
func UseDigicamBaseline(event *data.Event) {
	if len(event.R0.DigicamBaseline) == 0 {
		return
	}
	event.R0.BaselineMean = event.R0.DigicamBaseline
	event.R0.BaselineReady = true
}

// Stats is the mean and std over a set of events of a per pixel quantity.
type Stats struct {
	n          int
	sum, sumSq []float64
}

func (s *Stats) Add(values []float64) {
	if s.sum == nil {
		s.sum = make([]float64, len(values))
		s.sumSq = make([]float64, len(values))
	}
	floats.Add(s.sum, values)
	for i, v := range values {
		s.sumSq[i] += v * v
	}
	s.n++
}

func (s *Stats) N() int {
	return s.n
}

func (s *Stats) Mean() []float64 {
	mean := make([]float64, len(s.sum))
	for i := range s.sum {
		mean[i] = s.sum[i] / float64(s.n)
	}
	return mean
}

// Std uses n as denominator.
func (s *Stats) Std() []float64 {
	mean := s.Mean()
	std := make([]float64, len(s.sum))
	for i := range s.sum {
		v := s.sumSq[i]/float64(s.n) - mean[i]*mean[i]
		if v < 0 {
			v = 0
		}
		std[i] = math.Sqrt(v)
	}
	return std
}
