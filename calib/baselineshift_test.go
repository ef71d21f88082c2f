// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sst1m/digicampipe/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLevels(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckLevels([]int{0, 10}, []string{"a", "b"}))

	err := CheckLevels([]int{0, 10, 20}, []string{"a", "b"})
	var lerr *LevelsError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, 3, lerr.Levels)
	assert.Equal(t, 2, lerr.Files)
}

func TestShiftResults(t *testing.T) {
	t.Parallel()

	results := &ShiftResults{}
	for level, baseline := range []float64{300, 310, 330} {
		events := []*data.Event{
			qualityEvent(1, baseline-1, 0),
			qualityEvent(2, baseline+1, 0),
		}
		stats := AccumulateBaseline(data.Slice(events...))
		require.NoError(t, results.Add(level*100, stats))
	}
	assert.Error(t, results.Add(400, &Stats{}))

	assert.Equal(t, []int{0, 100, 200}, results.DCLevels)
	assert.Equal(t, []float64{310, 310}, results.BaselineMean[1])
	assert.Equal(t, []float64{1, 1}, results.BaselineStd[1])

	require.NoError(t, results.Fit(5, 4, 0.08))
	assert.Equal(t, []float64{30, 30}, results.BaselineShift[2])
	assert.InDelta(t, 30.0/5/4*0.92, results.NSBRate[2][0], 1e-12)
	assert.InDelta(t, 30.0/5/4*0.92, PixelAverage(results.NSBRate)[2], 1e-12)

	buf := &bytes.Buffer{}
	require.NoError(t, results.Save(buf))
	loaded, err := LoadShiftResults(buf)
	require.NoError(t, err)
	assert.Equal(t, results, loaded)
}
