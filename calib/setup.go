// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"os"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/geometry"
)

// LoadCamera reads a geometry table, or lays out the DigiCam pixels on a
// hexagonal lattice when filename is empty.
func LoadCamera(filename string) (*geometry.Camera, error) {
	if filename == "" {
		return geometry.Hexagonal(data.NPixels, geometry.DigiCamPitch), nil
	}
	return geometry.LoadFile(filename)
}

// LoadFinalParameters reads and finalizes the calibration parameters for
// nPixels. An empty filename gives the defaults.
func LoadFinalParameters(filename string, nPixels int) (*Parameters, error) {
	params := &Parameters{}
	if filename != "" {
		var err error
		if params, err = LoadParametersFile(filename); err != nil {
			return nil, err
		}
	}
	if err := params.Finalize(nPixels); err != nil {
		return nil, fmt.Errorf("%v: %v", filename, err)
	}
	return params, nil
}

// LoadDarkBaseline is the first DC level of a baseline shift results
// file, taken with the camera closed.
func LoadDarkBaseline(filename string, nPixels int) ([]float64, error) {
	if filename == "" {
		return nil, nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	results, err := LoadShiftResults(f)
	if err != nil {
		return nil, err
	}
	if len(results.BaselineMean) == 0 {
		return nil, fmt.Errorf("%v: no DC level", filename)
	}
	dark := results.BaselineMean[0]
	if len(dark) != nPixels {
		return nil, fmt.Errorf("%v: dark baseline for %d pixels, need %d", filename, len(dark), nPixels)
	}
	return dark, nil
}

// LoadPipeline reads the pipeline configuration, or the defaults when
// filename is empty, and finalizes it.
func LoadPipeline(filename string) (*PipelineConfig, error) {
	c := NewPipelineConfig()
	if filename != "" {
		var err error
		if c, err = LoadPipelineConfigFile(filename); err != nil {
			return nil, err
		}
	}
	if err := c.Finalize(); err != nil {
		return nil, fmt.Errorf("%v: %v", filename, err)
	}
	return c, nil
}
