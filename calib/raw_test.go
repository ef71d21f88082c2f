// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"bytes"
	"math"
	"testing"

	"github.com/sst1m/digicampipe/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEvent(id uint64, eventType uint32, adc uint16, baseline float64) *data.Event {
	e := data.NewEvent(id, 2, 4)
	e.EventType = eventType
	for i := range e.R0.Samples {
		for j := range e.R0.Samples[i] {
			e.R0.Samples[i][j] = adc
		}
	}
	e.R0.DigicamBaseline = []float64{baseline, baseline + 1}
	return e
}

// ---------------------------------------------------------------------------
// RawHistogram
// ---------------------------------------------------------------------------

func TestRawHistogram_Fill(t *testing.T) {
	t.Parallel()

	h := NewRawHistogram(2, false, nil)
	require.NoError(t, h.Fill(rawEvent(1, data.PhysicsTrigger, 300, 290)))
	require.NoError(t, h.Fill(rawEvent(2, data.ClockedTrigger, 310, 290)))

	p := h.Pixels[0]
	assert.Equal(t, RawADCMax, p.Len())
	assert.Equal(t, int64(8), p.Entries())
	assert.Equal(t, 4.0, p.Bin(300).SumW())
	assert.Equal(t, 4.0, p.Bin(310).SumW())
	assert.InDeltaSlice(t, []float64{305, 305}, h.Pixels.Means(), 1e-9)
}

func TestRawHistogram_BaselineSubtracted(t *testing.T) {
	t.Parallel()

	h := NewRawHistogram(2, true, []uint32{data.ClockedTrigger})
	assert.Equal(t, RawADCMax-RawSubtractedADCMin, h.Pixels[0].Len())

	// physics events are not selected
	require.NoError(t, h.Fill(rawEvent(1, data.PhysicsTrigger, 300, 290)))
	assert.Equal(t, int64(0), h.Pixels[0].Entries())

	require.NoError(t, h.Fill(rawEvent(2, data.ClockedTrigger, 280, 290)))
	assert.Equal(t, 4.0, h.Pixels[0].Bin(-10).SumW())
	assert.Equal(t, 4.0, h.Pixels[1].Bin(-11).SumW())

	e := rawEvent(3, data.ClockedTrigger, 280, 290)
	e.R0.DigicamBaseline = nil
	assert.Error(t, h.Fill(e))
}

func TestRawHistogram_PixelMismatch(t *testing.T) {
	t.Parallel()

	h := NewRawHistogram(3, false, nil)
	assert.Error(t, h.Fill(rawEvent(1, data.PhysicsTrigger, 300, 290)))
}

// ---------------------------------------------------------------------------
// DigicamBaselineHistogram
// ---------------------------------------------------------------------------

func TestDigicamBaselineHistogram(t *testing.T) {
	t.Parallel()

	h := NewDigicamBaselineHistogram(2, nil)
	assert.Equal(t, 4096, h.Pixels[0].Len())

	require.NoError(t, h.Fill(rawEvent(1, data.PhysicsTrigger, 0, 290.25)))
	require.NoError(t, h.Fill(rawEvent(2, data.PhysicsTrigger, 0, 290.75)))
	e := rawEvent(3, data.PhysicsTrigger, 0, 0)
	e.R0.DigicamBaseline = nil
	require.NoError(t, h.Fill(e))

	assert.Equal(t, int64(2), h.Pixels[0].Entries())
	assert.Equal(t, 1.0, h.Pixels[0].Bin(290.25).SumW())
	assert.InDeltaSlice(t, []float64{290.5, 291.5}, h.Pixels.Means(), 1e-9)

	e = rawEvent(4, data.PhysicsTrigger, 0, 0)
	e.R0.DigicamBaseline = []float64{1}
	assert.Error(t, h.Fill(e))
}

// ---------------------------------------------------------------------------
// PixelHistograms
// ---------------------------------------------------------------------------

func TestPixelHistograms_SaveLoad(t *testing.T) {
	t.Parallel()

	h := NewRawHistogram(2, false, nil)
	require.NoError(t, h.Fill(rawEvent(1, data.PhysicsTrigger, 300, 290)))

	buf := &bytes.Buffer{}
	require.NoError(t, h.Pixels.Save(buf))

	loaded, err := LoadPixelHistograms(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "pixel 1", loaded[1].Name())
	assert.Equal(t, 4.0, loaded[1].Bin(300).SumW())
	assert.Equal(t, h.Pixels.Means(), loaded.Means())

	_, err = LoadPixelHistograms(bytes.NewReader(nil))
	assert.Error(t, err)
	_, err = LoadPixelHistograms(bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	assert.Error(t, err)
}

func TestPixelHistograms_EmptyMean(t *testing.T) {
	t.Parallel()

	h := NewDigicamBaselineHistogram(1, nil)
	assert.True(t, math.IsNaN(h.Pixels.Means()[0]))
}
