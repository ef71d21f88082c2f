// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"io"
	"io/ioutil"
	"math"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/geometry"
	"github.com/sst1m/digicampipe/hillas"

	"gopkg.in/yaml.v2"
)

// DefaultNSamples is the DigiCam readout window.
const DefaultNSamples = 50

// PipelineConfig selects the stages of the R0 to DL2 chain and their
// options.
type PipelineConfig struct {
	NSamples int `yaml:"n_samples"`

	BaselineEvents     int  `yaml:"baseline_events"`
	UseDigicamBaseline bool `yaml:"use_digicam_baseline"`

	WindowStart         int     `yaml:"window_start"`
	WindowWidth         int     `yaml:"window_width"`
	TimingWidth         int     `yaml:"timing_width"`
	CentralSample       int     `yaml:"central_sample"`
	ThresholdSaturation float64 `yaml:"threshold_saturation"`

	CleaningThreshold float64 `yaml:"cleaning_threshold"`
	PictureThreshold  float64 `yaml:"picture_threshold"`
	BoundaryThreshold float64 `yaml:"boundary_threshold"`
	UnwantedPixels    []int   `yaml:"unwanted_pixels"`

	Reclean           bool    `yaml:"reclean"`
	ShowerDistance    float64 `yaml:"shower_distance"`
	RecleanIterations int     `yaml:"reclean_iterations"`
	SourceX           float64 `yaml:"source_x"`
	SourceY           float64 `yaml:"source_y"`

	EventTypes  []uint32 `yaml:"event_types"`
	MinShowerPE float64  `yaml:"min_shower_pe"`

	Concurrency int `yaml:"concurrency"`
}

// NewPipelineConfig returns the default configuration. Loading a file
// starts from it and overrides only the keys the file sets, so an explicit
// zero such as window_start: 0 is kept.
func NewPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		NSamples:            DefaultNSamples,
		BaselineEvents:      DefaultBaselineEvents,
		WindowStart:         DefaultWindowStart,
		WindowWidth:         DefaultWindowWidth,
		TimingWidth:         DefaultTimingWidth,
		CentralSample:       DefaultCentralSample,
		ThresholdSaturation: math.Inf(1),
		CleaningThreshold:   DefaultCleaningThreshold,
		ShowerDistance:      DefaultShowerDistance,
		RecleanIterations:   1,
		EventTypes:          []uint32{data.PhysicsTrigger, data.PhysicsTrigger2},
	}
}

func LoadPipelineConfig(r io.Reader) (*PipelineConfig, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := NewPipelineConfig()
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, fmt.Errorf("pipeline configuration: %v", err)
	}
	return c, nil
}

func LoadPipelineConfigFile(filename string) (*PipelineConfig, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	c := NewPipelineConfig()
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, fmt.Errorf("%v: %v", filename, err)
	}
	return c, nil
}

// Finalize fills in the options that have no meaningful zero and
// validates the windows. Options where zero is valid are left alone.
func (c *PipelineConfig) Finalize() error {
	if c.NSamples == 0 {
		c.NSamples = DefaultNSamples
	}
	if c.BaselineEvents == 0 {
		c.BaselineEvents = DefaultBaselineEvents
	}
	if c.WindowWidth == 0 {
		c.WindowWidth = DefaultWindowWidth
	}
	if c.TimingWidth == 0 {
		c.TimingWidth = DefaultTimingWidth
	}
	// zero saturates every pixel
	if c.ThresholdSaturation == 0 {
		c.ThresholdSaturation = math.Inf(1)
	}
	if len(c.EventTypes) == 0 {
		c.EventTypes = []uint32{data.PhysicsTrigger, data.PhysicsTrigger2}
	}

	if c.NSamples < 1 || c.BaselineEvents < 1 {
		return fmt.Errorf("n_samples and baseline_events must be positive")
	}
	if c.WindowWidth < 1 || c.WindowWidth > c.NSamples {
		return fmt.Errorf("window_width %d does not fit %d samples", c.WindowWidth, c.NSamples)
	}
	if c.BoundaryThreshold > c.PictureThreshold {
		return fmt.Errorf("boundary_threshold %v above picture_threshold %v", c.BoundaryThreshold, c.PictureThreshold)
	}
	if c.RecleanIterations < 0 {
		return fmt.Errorf("reclean_iterations must not be negative")
	}
	return nil
}

func (c PipelineConfig) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// Stages are the calibrators of a built pipeline, exposed for the tools
// that report on them.
type Stages struct {
	Baseline *Baseline
	R1       *R1Calibrator
	DL1      *DL1Calibrator
	DL2      *DL2Calibrator
}

// BuildPipeline chains baseline, event type selection, R1, DL1 and DL2.
// params must be finalized for cam. dark may be nil.
func BuildPipeline(cam *geometry.Camera, params *Parameters, c *PipelineConfig, dark []float64) (data.OpArray, *Stages, error) {
	nPixels := cam.NPixels()
	if len(params.NominalGain) != nPixels {
		return nil, nil, fmt.Errorf("calibration parameters for %d pixels, geometry has %d", len(params.NominalGain), nPixels)
	}

	integration, err := NewIntegration(nPixels, c.NSamples, c.WindowStart, c.WindowWidth, c.TimingWidth, c.CentralSample)
	if err != nil {
		return nil, nil, err
	}
	integration.ThresholdSaturation = c.ThresholdSaturation

	r1, err := NewR1Calibrator(params, integration, dark)
	if err != nil {
		return nil, nil, err
	}
	r1.CleaningThreshold = c.CleaningThreshold

	stages := &Stages{
		Baseline: &Baseline{NEvents: c.BaselineEvents},
		R1:       r1,
		DL1:      NewDL1Calibrator(cam, KeepMask(nPixels, c.UnwantedPixels), c.PictureThreshold, c.BoundaryThreshold),
		DL2: &DL2Calibrator{
			Camera:            cam,
			Source:            hillas.Source{X: c.SourceX, Y: c.SourceY},
			Reclean:           c.Reclean,
			ShowerDistance:    c.ShowerDistance,
			RecleanIterations: c.RecleanIterations,
		},
	}

	ops := data.OpArray{
		data.StreamOp{
			Description:     fmt.Sprintf("baseline over %d random triggers", c.BaselineEvents),
			StreamProcessor: stages.Baseline.Fill,
		},
	}
	if c.UseDigicamBaseline {
		ops = append(ops, data.EventOp{
			Description:    "use on board baseline",
			EventProcessor: UseDigicamBaseline,
		})
	}
	ops = append(ops,
		FilterEventTypes(c.EventTypes...),
		FilterMissingBaseline(),
		data.EventOp{
			Description:    "R1 calibration",
			EventProcessor: stages.R1.Calibrate,
			Concurrency:    c.Concurrency,
		},
		data.EventOp{
			Description:    "DL1 cleaning",
			EventProcessor: stages.DL1.Calibrate,
			Concurrency:    c.Concurrency,
		},
	)
	if c.MinShowerPE > 0 {
		ops = append(ops, FilterShower(c.MinShowerPE))
	}
	ops = append(ops, data.EventOp{
		Description:    "DL2 Hillas parameters",
		EventProcessor: stages.DL2.Calibrate,
		Concurrency:    c.Concurrency,
	})
	return ops, stages, nil
}
