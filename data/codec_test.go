// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"bytes"
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sst1m/digicampipe/hillas"
	"github.com/sst1m/digicampipe/model/digicam"

	"github.com/proio-org/go-proio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTestEvent(id uint64) *Event {
	e := NewEvent(id, 3, 4)
	e.TriggerFlag = 0
	e.EventType = PhysicsTrigger
	e.LocalClock = 123456789
	for i := range e.R0.Samples {
		for j := range e.R0.Samples[i] {
			e.R0.Samples[i][j] = uint16(300 + 10*i + j)
		}
	}
	e.R0.DigicamBaseline = []float64{300, 310.5, 320}
	return e
}

func writeEvents(t *testing.T, events ...*Event) *bytes.Buffer {
	buf := &bytes.Buffer{}
	writer := proio.NewWriter(buf)
	for _, e := range events {
		require.NoError(t, writer.Push(Encode(e)))
	}
	require.NoError(t, writer.Close())
	return buf
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	in := rawTestEvent(42)
	in.DL2.Computed = true
	in.DL2.Shower = hillas.Moments{Valid: true, Size: 100, CenX: 1, CenY: -2, Length: 3, Width: 1, Alpha: 0.1}

	buf := writeEvents(t, in)

	reader := proio.NewReader(buf)
	var out []*Event
	for pe := range reader.ScanEvents(1) {
		e, err := Decode(pe)
		require.NoError(t, err)
		out = append(out, e)
	}
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, uint64(42), got.ID)
	assert.Equal(t, uint32(PhysicsTrigger), got.EventType)
	assert.Equal(t, int64(123456789), got.LocalClock)
	assert.Equal(t, in.R0.PixelID, got.R0.PixelID)
	assert.Equal(t, in.R0.Samples, got.R0.Samples)
	assert.Equal(t, in.R0.DigicamBaseline, got.R0.DigicamBaseline)
	assert.True(t, got.DL2.Computed)
	assert.Equal(t, LevelDL2, got.Level)
	assert.Equal(t, in.DL2.Shower, got.DL2.Shower)
}

func TestCodec_InvalidShowerKeepsNaN(t *testing.T) {
	t.Parallel()

	in := rawTestEvent(1)
	in.DL2.Computed = true
	in.DL2.Shower = hillas.Failed()

	reader := proio.NewReader(writeEvents(t, in))
	for pe := range reader.ScanEvents(1) {
		e, err := Decode(pe)
		require.NoError(t, err)
		assert.False(t, e.DL2.Shower.Valid)
		assert.True(t, math.IsNaN(e.DL2.Shower.Size))
	}
}

func TestCodec_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no R0 entry", func(t *testing.T) {
		_, err := Decode(proio.NewEvent())
		assert.Error(t, err)
	})

	t.Run("short samples", func(t *testing.T) {
		pe := proio.NewEvent()
		pe.AddEntry(R0Tag, &digicam.RawEvent{
			PixelId:    []uint32{0, 1},
			NSamples:   3,
			AdcSamples: []uint32{1, 2, 3, 4},
		})
		_, err := Decode(pe)
		assert.Error(t, err)
	})
}

func TestStripWaveforms(t *testing.T) {
	t.Parallel()

	e := rawTestEvent(7)
	e.DL2.Computed = true
	e.DL2.Shower = hillas.Failed()
	pe := Encode(e)
	require.Len(t, pe.TaggedEntries(R0Tag), 1)

	StripWaveforms(e)
	pe = Encode(e)
	assert.Empty(t, pe.TaggedEntries(R0Tag))
	assert.Len(t, pe.TaggedEntries(DL2Tag), 1)
	assert.Nil(t, e.R0.Samples)
}

func TestReadFiles(t *testing.T) {
	dir, err := ioutil.TempDir("", "digicam-data")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	var names []string
	for f := 0; f < 2; f++ {
		name := filepath.Join(dir, "run"+string(rune('a'+f))+".proio")
		buf := writeEvents(t, rawTestEvent(uint64(10*f)), rawTestEvent(uint64(10*f+1)))
		require.NoError(t, ioutil.WriteFile(name, buf.Bytes(), 0644))
		names = append(names, name)
	}

	all := Collect(ReadFiles(context.Background(), names, 2, 0, false))
	require.Len(t, all, 4)
	assert.Equal(t, uint64(0), all[0].ID)
	assert.Equal(t, uint64(11), all[3].ID)

	limited := Collect(ReadFiles(context.Background(), names, 2, 3, false))
	assert.Len(t, limited, 3)

	runs, err := ListResourceRuns(context.Background(), "file://"+dir, "")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
