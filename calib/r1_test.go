// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"testing"

	"github.com/sst1m/digicampipe/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pulseEvent() *data.Event {
	e := data.NewEvent(1, 2, 10)
	e.EventType = data.PhysicsTrigger
	e.LocalClock = 1000
	pulses := [][]uint16{
		{0, 0, 0, 0, 10, 20, 10, 0, 0, 0},
		{0, 0, 0, 2, 4, 2, 0, 0, 0, 0},
	}
	mean := []float64{100, 200}
	for i, row := range pulses {
		for j, v := range row {
			e.R0.Samples[i][j] = uint16(mean[i]) + v
		}
	}
	e.R0.BaselineMean = mean
	e.R0.BaselineStd = []float64{2, 2}
	e.R0.BaselineReady = true
	return e
}

func testCalibrator(t *testing.T, dark []float64) *R1Calibrator {
	t.Helper()
	c, err := NewR1Calibrator(testParams(t, 2), testIntegration(t, 2), dark)
	require.NoError(t, err)
	return c
}

func TestR1Calibrator_Calibrate(t *testing.T) {
	t.Parallel()
	c := testCalibrator(t, nil)

	e := pulseEvent()
	c.Calibrate(e)
	require.Equal(t, data.LevelR1, e.Level)

	r1 := e.R1
	assert.Equal(t, []float64{100, 200}, r1.PedestalMean)
	assert.Equal(t, 10.0, r1.Samples.At(0, 4))
	assert.Equal(t, 4.0, r1.Samples.At(1, 4))
	// raw capture is untouched
	assert.Equal(t, uint16(110), e.R0.Samples[0][4])

	assert.Equal(t, []bool{true, false}, r1.CleaningMask)

	assert.Equal(t, 40.0, r1.Charge[0])
	assert.Equal(t, 20.0, r1.Amplitude[0])
	assert.Equal(t, []int{4, 1}, r1.TimeBin)
	assert.Equal(t, 1016.0, r1.Time[0])
	assert.Equal(t, 1004.0, r1.Time[1])
	for i := range r1.PE {
		assert.InDelta(t, r1.Charge[i]/(23*r1.GainDrop[i]), r1.PE[i], 1e-12)
		assert.True(t, r1.GainDrop[i] < 1)
	}
}

func TestR1Calibrator_NoiseRouting(t *testing.T) {
	t.Parallel()

	dark := []float64{99, 199}
	withDark := testCalibrator(t, dark)
	withoutDark := testCalibrator(t, nil)

	e1 := pulseEvent()
	withDark.Calibrate(e1)
	e2 := pulseEvent()
	withoutDark.Calibrate(e2)

	m := testParams(t, 2).NoiseModel()
	darkNSB, darkDrop := m.FromDark([]float64{100, 200}, dark)
	stdNSB, stdDrop := m.FromStd([]float64{2, 2})

	assert.Equal(t, darkNSB, e1.R1.NSBRate)
	assert.Equal(t, darkDrop, e1.R1.GainDrop)
	assert.Equal(t, stdNSB, e2.R1.NSBRate)
	assert.Equal(t, stdDrop, e2.R1.GainDrop)

	// baseline shift of 1 LSB: f = 1 / (G A / (1 - xt) - tau)
	assert.InDelta(t, 1/(5*4/0.92-0.5), e1.R1.NSBRate[0], 1e-12)
	assert.NotEqual(t, e1.R1.NSBRate[0], e2.R1.NSBRate[0])
	assert.NotEqual(t, e1.R1.PE[0], e2.R1.PE[0])
}

func TestR1Calibrator_PassThrough(t *testing.T) {
	t.Parallel()
	c := testCalibrator(t, nil)

	e := pulseEvent()
	e.TriggerFlag = 1
	c.Calibrate(e)
	assert.Equal(t, data.LevelR0, e.Level)
	assert.Nil(t, e.R1.Samples)

	e = pulseEvent()
	e.R0.BaselineReady = false
	c.Calibrate(e)
	assert.Equal(t, data.LevelR0, e.Level)
	assert.Nil(t, e.R1.PE)
}

func TestR1Calibrator_CheckPixels(t *testing.T) {
	t.Parallel()
	c := testCalibrator(t, nil)

	assert.NoError(t, c.CheckPixels(pulseEvent()))

	e := data.NewEvent(3, 5, 10)
	e.R0.BaselineMean = make([]float64, 5)
	e.R0.BaselineReady = true
	err := c.CheckPixels(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 pixels")
}

func TestNewR1Calibrator_Mismatch(t *testing.T) {
	t.Parallel()

	_, err := NewR1Calibrator(testParams(t, 2), testIntegration(t, 3), nil)
	assert.Error(t, err)

	_, err = NewR1Calibrator(testParams(t, 2), testIntegration(t, 2), []float64{1})
	assert.Error(t, err)
}
