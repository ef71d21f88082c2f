// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"
	"testing"

	"github.com/sst1m/digicampipe/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func constantEvent(id uint64, eventType uint32, nPixels, nSamples int, values ...uint16) *data.Event {
	e := data.NewEvent(id, nPixels, nSamples)
	e.EventType = eventType
	for i := range e.R0.Samples {
		for j := range e.R0.Samples[i] {
			e.R0.Samples[i][j] = values[(i+j)%len(values)]
		}
	}
	return e
}

func TestBaseline_WarmUp(t *testing.T) {
	t.Parallel()

	b := &Baseline{NEvents: 3}
	op := data.StreamOp{StreamProcessor: b.Fill}

	events := []*data.Event{
		constantEvent(0, data.ClockedTrigger, 2, 4, 100),
		constantEvent(1, data.PhysicsTrigger, 2, 4, 500),
		constantEvent(2, data.ClockedTrigger, 2, 4, 100),
		constantEvent(3, data.ClockedTrigger, 2, 4, 100),
		constantEvent(4, data.PhysicsTrigger, 2, 4, 500),
	}
	out := data.Collect(op.Run(data.Slice(events...)))
	require.Len(t, out, 5)

	for _, e := range out[:3] {
		assert.False(t, e.R0.BaselineReady, "event %d", e.ID)
	}
	for _, e := range out[3:] {
		assert.True(t, e.R0.BaselineReady, "event %d", e.ID)
		assert.Equal(t, []float64{100, 100}, e.R0.BaselineMean)
		assert.Equal(t, []float64{0, 0}, e.R0.BaselineStd)
	}
	// physics triggers do not enter the window
	assert.Equal(t, []float64{100, 100}, b.Mean())
}

func TestBaseline_SlidingWindow(t *testing.T) {
	t.Parallel()

	b := &Baseline{NEvents: 2}
	b.Add(constantEvent(0, 0, 1, 4, 10).R0.Samples)
	b.Add(constantEvent(0, 0, 1, 4, 20).R0.Samples)
	require.True(t, b.Ready())
	assert.Equal(t, []float64{15}, b.Mean())
	assert.Equal(t, []float64{5}, b.Std())

	published := b.Mean()
	b.Add(constantEvent(0, 0, 1, 4, 30).R0.Samples)
	assert.Equal(t, []float64{25}, b.Mean())
	// earlier snapshots are left alone
	assert.Equal(t, []float64{15}, published)
}

func TestBaseline_MatchesBatchStats(t *testing.T) {
	t.Parallel()

	events := [][]uint16{
		{300, 302, 299, 305},
		{310, 290, 301, 300},
		{298, 297, 303, 296},
		{301, 304, 300, 299},
		{295, 306, 302, 300},
	}
	b := &Baseline{NEvents: 3}
	for _, v := range events {
		b.Add(constantEvent(0, 0, 2, 4, v...).R0.Samples)
	}

	for pixel := 0; pixel < 2; pixel++ {
		var window []float64
		for _, v := range events[2:] {
			for _, adc := range constantEvent(0, 0, 2, 4, v...).R0.Samples[pixel] {
				window = append(window, float64(adc))
			}
		}
		mean, std := stat.MeanStdDev(window, nil)
		n := float64(len(window))
		assert.InDelta(t, mean, b.Mean()[pixel], 1e-9)
		// the window std is the population one
		assert.InDelta(t, std*math.Sqrt((n-1)/n), b.Std()[pixel], 1e-9)
	}
}

func TestBaseline_StdOfAlternatingSamples(t *testing.T) {
	t.Parallel()

	b := &Baseline{NEvents: 1}
	b.Add(constantEvent(0, 0, 1, 4, 98, 102).R0.Samples)
	assert.Equal(t, []float64{100}, b.Mean())
	assert.Equal(t, []float64{2}, b.Std())
}

func TestUseDigicamBaseline(t *testing.T) {
	t.Parallel()

	e := constantEvent(0, data.PhysicsTrigger, 2, 4, 300)
	UseDigicamBaseline(e)
	assert.False(t, e.R0.BaselineReady)

	e.R0.DigicamBaseline = []float64{299, 301}
	UseDigicamBaseline(e)
	assert.True(t, e.R0.BaselineReady)
	assert.Equal(t, []float64{299, 301}, e.R0.BaselineMean)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := &Stats{}
	s.Add([]float64{1, 10})
	s.Add([]float64{3, 10})
	assert.Equal(t, 2, s.N())
	assert.Equal(t, []float64{2, 10}, s.Mean())
	assert.Equal(t, []float64{1, 0}, s.Std())
}
