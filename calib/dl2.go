// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"log"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/geometry"
	"github.com/sst1m/digicampipe/hillas"
)

// DefaultShowerDistance is the reclean radius around the centroid, in mm.
const DefaultShowerDistance = 80.0

// DL2Calibrator computes the Hillas moments of the DL1 image.
type DL2Calibrator struct {
	Camera *geometry.Camera
	Source hillas.Source

	// Reclean restricts the image to pixels within ShowerDistance of the
	// first pass centroid and recomputes the moments. It is repeated up to
	// RecleanIterations times, stopping as soon as the mask is stable.
	Reclean           bool
	ShowerDistance    float64
	RecleanIterations int
}

// CheckPixels reports a DL1 image that does not match the camera geometry.
func (c *DL2Calibrator) CheckPixels(event *data.Event) error {
	if n := len(event.DL1.Image); n != c.Camera.NPixels() {
		return fmt.Errorf("event %v image has %d pixels, geometry has %d", event.ID, n, c.Camera.NPixels())
	}
	return nil
}

func (c *DL2Calibrator) Calibrate(event *data.Event) {
	if event.Level < data.LevelDL1 {
		return
	}
	if err := c.CheckPixels(event); err != nil {
		log.Fatalf("dl2 calibration: %v", err)
	}

	image := event.DL1.Image
	mask := event.DL1.Mask
	if len(mask) != len(image) {
		mask = make([]bool, len(image))
		for i, v := range image {
			mask[i] = v != 0
		}
		event.DL1.Mask = mask
	}

	moments := hillas.Parameters(c.Camera, image, c.Source)
	if c.Reclean {
		moments = c.RecleanImage(image, mask, moments)
	}

	event.DL2 = data.DL2{Shower: moments, Computed: true}
	event.Level = data.LevelDL2
}

// RecleanImage applies the distance cut to mask and image in place and
// returns the moments of the final image.
func (c *DL2Calibrator) RecleanImage(image []float64, mask []bool, moments hillas.Moments) hillas.Moments {
	distance := c.ShowerDistance
	if distance <= 0 {
		distance = DefaultShowerDistance
	}
	iterations := c.RecleanIterations
	if iterations <= 0 {
		iterations = 1
	}

	for it := 0; it < iterations; it++ {
		// a NaN centroid selects nothing
		near := c.Camera.Within(moments.CenX, moments.CenY, distance)

		changed := false
		for i := range mask {
			if mask[i] && !near[i] {
				mask[i] = false
				changed = true
			}
			if !mask[i] {
				image[i] = 0
			}
		}
		if !changed {
			break
		}

		moments = hillas.Parameters(c.Camera, image, c.Source)
	}
	return moments
}
