// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"
	"testing"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/geometry"
	"github.com/sst1m/digicampipe/hillas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blob around the origin plus one isolated noise pixel far out
func showerEvent(cam *geometry.Camera, noisePixel int) *data.Event {
	e := &data.Event{Level: data.LevelDL1}
	e.DL1.Image = make([]float64, cam.NPixels())
	e.DL1.Mask = make([]bool, cam.NPixels())
	for i := range e.DL1.Image {
		r2 := cam.X[i]*cam.X[i]/4 + cam.Y[i]*cam.Y[i]
		if v := 100 * math.Exp(-r2/2); v > 1 {
			e.DL1.Image[i] = v
			e.DL1.Mask[i] = true
		}
	}
	e.DL1.Image[noisePixel] = 50
	e.DL1.Mask[noisePixel] = true
	return e
}

func TestDL2Calibrator_NoReclean(t *testing.T) {
	t.Parallel()
	cam := geometry.Hexagonal(331, 1)

	e := showerEvent(cam, 300)
	c := &DL2Calibrator{Camera: cam}
	c.Calibrate(e)

	require.Equal(t, data.LevelDL2, e.Level)
	assert.True(t, e.DL2.Computed)
	assert.True(t, e.DL2.Shower.Valid)
	// the noise pixel pulls the centroid
	assert.True(t, math.Hypot(e.DL2.Shower.CenX, e.DL2.Shower.CenY) > 0.1)
	assert.True(t, e.DL1.Mask[300])
}

func TestDL2Calibrator_Reclean(t *testing.T) {
	t.Parallel()
	cam := geometry.Hexagonal(331, 1)

	e := showerEvent(cam, 300)
	c := &DL2Calibrator{Camera: cam, Reclean: true, ShowerDistance: 7, RecleanIterations: 5}
	c.Calibrate(e)

	require.True(t, e.DL2.Shower.Valid)
	assert.False(t, e.DL1.Mask[300])
	assert.Equal(t, 0.0, e.DL1.Image[300])
	assert.InDelta(t, 0, e.DL2.Shower.CenX, 1e-6)
	assert.InDelta(t, 0, e.DL2.Shower.CenY, 1e-6)

	// converged: a further pass changes nothing
	image := append([]float64(nil), e.DL1.Image...)
	mask := append([]bool(nil), e.DL1.Mask...)
	again := c.RecleanImage(image, mask, e.DL2.Shower)
	assert.Equal(t, e.DL2.Shower, again)
	assert.Equal(t, e.DL1.Mask, mask)
	assert.Equal(t, e.DL1.Image, image)
}

func TestDL2Calibrator_RecleanSinglePass(t *testing.T) {
	t.Parallel()
	cam := geometry.Hexagonal(331, 1)

	e := showerEvent(cam, 300)
	first := hillas.Parameters(cam, e.DL1.Image, hillas.Source{})

	c := &DL2Calibrator{Camera: cam, Reclean: true, ShowerDistance: 7}
	c.Calibrate(e)

	near := cam.Within(first.CenX, first.CenY, 7)
	for i, m := range e.DL1.Mask {
		if m {
			assert.True(t, near[i], "pixel %d", i)
		}
	}
}

func TestDL2Calibrator_Degenerate(t *testing.T) {
	t.Parallel()
	cam := geometry.Hexagonal(37, 1)

	e := &data.Event{Level: data.LevelDL1}
	e.DL1.Image = make([]float64, 37)
	e.DL1.Mask = make([]bool, 37)

	c := &DL2Calibrator{Camera: cam, Reclean: true}
	assert.NotPanics(t, func() { c.Calibrate(e) })
	assert.True(t, e.DL2.Computed)
	assert.False(t, e.DL2.Shower.Valid)
	assert.True(t, math.IsNaN(e.DL2.Shower.Length))
}

func TestDL2Calibrator_CheckPixels(t *testing.T) {
	t.Parallel()
	c := &DL2Calibrator{Camera: geometry.Hexagonal(37, 1)}

	e := &data.Event{Level: data.LevelDL1}
	e.DL1.Image = make([]float64, 37)
	assert.NoError(t, c.CheckPixels(e))

	e.DL1.Image = make([]float64, 5)
	assert.Error(t, c.CheckPixels(e))

	// below DL1 the image is not looked at
	e.Level = data.LevelR1
	assert.NotPanics(t, func() { c.Calibrate(e) })
	assert.False(t, e.DL2.Computed)
}
