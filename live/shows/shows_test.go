// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package shows

import (
	"bytes"
	"testing"
	"time"

	"github.com/sst1m/digicampipe/live/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &Trend{}, New(TrendType, time.Second))
	assert.IsType(t, &Hist2D{}, New(Hist2DType, time.Second))
	assert.Nil(t, New("Projection", time.Second))
}

// ====================================================================
// Trend
// ====================================================================

func TestTrend_RollsAndDownsamples(t *testing.T) {
	t.Parallel()

	s := New(TrendType, time.Hour).(*Trend)
	require.NoError(t, s.Execute(&message.Cmd{
		Command:  "set params",
		Metadata: map[string]string{"nsample": "3", "downsample": "2"},
	}))

	for i := 0; i < 10; i++ {
		s.AddSample(&TrendSample{T: float64(i), Y: float64(10 * i), LineName: "Baseline"})
	}
	// every second point of the last six
	pts := s.Points("Baseline")
	require.Len(t, pts, 3)
	assert.Equal(t, []float64{4, 6, 8}, []float64{pts[0].X, pts[1].X, pts[2].X})
	assert.Equal(t, 80.0, pts[2].Y)
	assert.Nil(t, s.Points("NSB Rate"))

	// wrong sample types are ignored
	s.AddSample(&Hist2DSample{X: 1, Y: 1, Weight: 1})
	assert.Len(t, s.Points("Baseline"), 3)
}

func TestTrend_Smoothing(t *testing.T) {
	t.Parallel()

	s := New(TrendType, time.Hour).(*Trend)
	require.NoError(t, s.Execute(&message.Cmd{
		Command:  "set params",
		Metadata: map[string]string{"alpha": "0.5"},
	}))
	for i, y := range []float64{10, 20, 20} {
		s.AddSample(&TrendSample{T: float64(i), Y: y, LineName: "rate"})
	}
	pts := s.Points("rate")
	require.Len(t, pts, 3)
	assert.Equal(t, []float64{10, 15, 17.5}, []float64{pts[0].Y, pts[1].Y, pts[2].Y})

	// time running backwards starts over
	s.AddSample(&TrendSample{T: 0, Y: 4, LineName: "rate"})
	pts = s.Points("rate")
	require.Len(t, pts, 1)
	assert.Equal(t, 4.0, pts[0].Y)
}

func TestTrend_Frame(t *testing.T) {
	t.Parallel()

	s := New(TrendType, time.Hour).(*Trend)
	require.NoError(t, s.Execute(&message.Cmd{
		Command:  "set params",
		Metadata: map[string]string{"logscale": "true", "autorange": "false", "min": "1", "max": "100"},
	}))
	for i := 0; i < 20; i++ {
		s.AddSample(&TrendSample{T: float64(i), Y: float64(i + 1), LineName: "rate"})
	}

	s.UpdateFrame()
	frame, count := s.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, message.ShowFrame, frame.Type)
	assert.Equal(t, TrendType, frame.Metadata["show type"])
	assert.Equal(t, "true", frame.Metadata["logscale"])
	assert.Equal(t, "false", frame.Metadata["autorange"])
	assert.Equal(t, "100", frame.Metadata["max"])
	assert.True(t, bytes.Contains(frame.Payload, []byte("<svg")))

	s.UpdateFrameCount()
	_, count = s.Frame()
	assert.Equal(t, uint64(2), count)
}

// ====================================================================
// Hist2D
// ====================================================================

func TestHist2D_FillAndRebin(t *testing.T) {
	t.Parallel()

	s := New(Hist2DType, time.Hour).(*Hist2D)
	s.SetBinning(10, 0, 100, 10, 0, 50)
	s.AddSample(&Hist2DSample{X: 10, Y: 5, Weight: 1})
	s.AddSample(&Hist2DSample{X: 20, Y: 5, Weight: 2})
	s.AddSample(&TrendSample{T: 1, Y: 1})
	assert.Equal(t, 3.0, s.Entries())

	require.NoError(t, s.Execute(&message.Cmd{
		Command:  "set params",
		Metadata: map[string]string{"nbins x": "20", "max y": "80"},
	}))
	assert.Equal(t, 0.0, s.Entries())

	s.UpdateFrame()
	frame, _ := s.Frame()
	require.NotNil(t, frame)
	assert.Equal(t, "20", frame.Metadata["nbins x"])
	assert.Equal(t, "80", frame.Metadata["max y"])
	assert.Equal(t, "100", frame.Metadata["max x"])
	assert.Equal(t, "true", frame.Metadata["is png"])
	assert.True(t, bytes.HasPrefix(frame.Payload, []byte("\x89PNG")))

	// an empty range is refused
	require.NoError(t, s.Execute(&message.Cmd{
		Command:  "set params",
		Metadata: map[string]string{"min x": "200"},
	}))
	s.UpdateFrame()
	frame, _ = s.Frame()
	assert.Equal(t, "0", frame.Metadata["min x"])
}
