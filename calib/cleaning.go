// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"math"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/geometry"

	"gonum.org/v1/gonum/mat"
)

const DefaultCleaningThreshold = 3.0

// CleaningMask flags the pixels with at least one sample strictly above
// threshold times the pixel's baseline std.
func CleaningMask(samples *mat.Dense, std []float64, threshold float64) []bool {
	nPixels, _ := samples.Dims()
	mask := make([]bool, nPixels)
	for i := range mask {
		limit := threshold * std[i]
		for _, v := range samples.RawRowView(i) {
			if v > limit {
				mask[i] = true
				break
			}
		}
	}
	return mask
}

// KeepMask is true everywhere except at the listed pixels.
func KeepMask(nPixels int, unwanted []int) []bool {
	mask := make([]bool, nPixels)
	for i := range mask {
		mask[i] = true
	}
	for _, i := range unwanted {
		if i >= 0 && i < nPixels {
			mask[i] = false
		}
	}
	return mask
}

// DL1Calibrator builds the cleaned p.e. image.
type DL1Calibrator struct {
	// AdditionalMask removes pixels from every image when false. A nil
	// mask keeps everything.
	AdditionalMask []bool

	// Optional tail cuts cleaning on top of the cleaning mask, applied
	// when PictureThreshold > 0.
	PictureThreshold  float64
	BoundaryThreshold float64
	neighbors         [][]int
}

// NewDL1Calibrator prepares the pixel neighborhoods used by the tail cuts.
// cam may be nil when tail cuts are disabled.
func NewDL1Calibrator(cam *geometry.Camera, additionalMask []bool, picture, boundary float64) *DL1Calibrator {
	c := &DL1Calibrator{
		AdditionalMask:    additionalMask,
		PictureThreshold:  picture,
		BoundaryThreshold: boundary,
	}
	if cam != nil && picture > 0 {
		c.neighbors = cam.Neighbors(geometry.NeighborDistance(cam))
	}
	return c
}

func (c *DL1Calibrator) Calibrate(event *data.Event) {
	if event.Level < data.LevelR1 {
		return
	}
	pe := event.R1.PE

	mask := make([]bool, len(pe))
	for i := range mask {
		mask[i] = i < len(event.R1.CleaningMask) && event.R1.CleaningMask[i] &&
			!math.IsNaN(pe[i]) &&
			(c.AdditionalMask == nil || c.AdditionalMask[i])
	}
	if c.PictureThreshold > 0 && len(c.neighbors) == len(pe) {
		tails := TailCuts(pe, c.neighbors, c.PictureThreshold, c.BoundaryThreshold)
		for i := range mask {
			mask[i] = mask[i] && tails[i]
		}
	}

	image := make([]float64, len(pe))
	for i, v := range pe {
		if mask[i] {
			image[i] = v
		}
	}

	event.DL1.Image = image
	event.DL1.Mask = mask
	event.Level = data.LevelDL1
}

// TailCuts keeps picture pixels (at or above picture) and boundary pixels
// (at or above boundary) next to a picture pixel.
func TailCuts(image []float64, neighbors [][]int, picture, boundary float64) []bool {
	isPicture := make([]bool, len(image))
	for i, v := range image {
		isPicture[i] = v >= picture
	}

	mask := make([]bool, len(image))
	for i, v := range image {
		if isPicture[i] {
			mask[i] = true
			continue
		}
		if v < boundary {
			continue
		}
		for _, j := range neighbors[i] {
			if isPicture[j] {
				mask[i] = true
				break
			}
		}
	}
	return mask
}
