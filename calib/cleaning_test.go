// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"
	"testing"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/geometry"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestCleaningMask_Boundary(t *testing.T) {
	t.Parallel()

	const eps = 1e-9
	for _, threshold := range []float64{1, 3, 4.5} {
		for _, sigma := range []float64{0.5, 1, 7} {
			limit := threshold * sigma
			samples := mat.NewDense(3, 3, []float64{
				0, limit, 0,
				0, limit + eps, 0,
				limit - eps, 0, -limit,
			})
			std := []float64{sigma, sigma, sigma}

			mask := CleaningMask(samples, std, threshold)
			assert.Equal(t, []bool{false, true, false}, mask, "T=%v sigma=%v", threshold, sigma)
		}
	}
}

func TestCleaningMask_AnySample(t *testing.T) {
	t.Parallel()

	samples := mat.NewDense(2, 4, []float64{
		0, 0, 0, 10,
		10, 0, 0, 0,
	})
	assert.Equal(t, []bool{true, false}, CleaningMask(samples, []float64{1, 5}, 3))
}

func r1Event(pe []float64, cleaning []bool) *data.Event {
	e := &data.Event{Level: data.LevelR1}
	e.R1.PE = pe
	e.R1.CleaningMask = cleaning
	return e
}

func TestDL1Calibrator(t *testing.T) {
	t.Parallel()

	c := NewDL1Calibrator(nil, KeepMask(4, []int{2}), 0, 0)
	e := r1Event([]float64{5, 6, 7, math.NaN()}, []bool{true, false, true, true})
	c.Calibrate(e)

	assert.Equal(t, data.LevelDL1, e.Level)
	assert.Equal(t, []float64{5, 0, 0, 0}, e.DL1.Image)
	assert.Equal(t, []bool{true, false, false, false}, e.DL1.Mask)

	// events without R1 pass
	e = &data.Event{}
	c.Calibrate(e)
	assert.Equal(t, data.LevelR0, e.Level)
	assert.Nil(t, e.DL1.Image)
}

func TestKeepMask(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []bool{true, false, true}, KeepMask(3, []int{1, 7, -1}))
}

func TestTailCuts(t *testing.T) {
	t.Parallel()

	cam := geometry.Hexagonal(19, 1)
	neighbors := cam.Neighbors(geometry.NeighborDistance(cam))
	assert.Len(t, neighbors[0], 6)

	image := make([]float64, 19)
	image[0] = 20 // picture
	image[1] = 12 // boundary next to the picture
	image[9] = 12 // boundary in the outer ring, not touching pixel 0
	mask := TailCuts(image, neighbors, 15, 10)

	assert.True(t, mask[0])
	assert.True(t, mask[1])
	assert.False(t, mask[9])

	c := NewDL1Calibrator(cam, nil, 15, 10)
	all := make([]bool, 19)
	for i := range all {
		all[i] = true
	}
	e := r1Event(image, all)
	c.Calibrate(e)
	assert.Equal(t, 32.0, e.DL1.Image[0]+e.DL1.Image[1]+e.DL1.Image[9])
}
