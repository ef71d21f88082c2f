// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math"

	"gopkg.in/yaml.v2"
)

// Defaults for a DigiCam pixel
const (
	DefaultNominalGain     = 23.0  // integrated LSB per p.e.
	DefaultAmplitudeGain   = 5.0   // LSB per p.e.
	DefaultCrosstalk       = 0.08  // optical crosstalk probability
	DefaultElectronicNoise = 0.8   // LSB
	DefaultTemplateArea    = 4.0   // ns, area of the amplitude normalised pulse
	DefaultTemplateArea2   = 2.4   // ns, area of the squared pulse
	DefaultBiasResistance  = 1e4   // Ohm
	DefaultCellCapacitance = 5e-14 // F
)

// Parameters holds the per pixel calibration constants. Per pixel fields
// may be given as a one element list, which is then used for every pixel.
type Parameters struct {
	NominalGain     []float64 `yaml:"nominal_gain"`
	AmplitudeGain   []float64 `yaml:"amplitude_gain"`
	Crosstalk       []float64 `yaml:"crosstalk"`
	ElectronicNoise []float64 `yaml:"electronic_noise"`

	TemplateArea    float64 `yaml:"template_area"`
	TemplateArea2   float64 `yaml:"template_area2"`
	BiasResistance  float64 `yaml:"bias_resistance"`
	CellCapacitance float64 `yaml:"cell_capacitance"`
}

func LoadParameters(r io.Reader) (*Parameters, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	p := &Parameters{}
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("calibration parameters: %v", err)
	}
	return p, nil
}

func LoadParametersFile(filename string) (*Parameters, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	p := &Parameters{}
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("%v: %v", filename, err)
	}
	return p, nil
}

func (p Parameters) AsYaml() string {
	b, err := yaml.Marshal(p)
	if err != nil {
		log.Fatalf("can't marshal calibration parameters: %v", err)
	}
	return string(b)
}

func expand(name string, values []float64, def float64, nPixels int) ([]float64, error) {
	switch len(values) {
	case 0:
		values = []float64{def}
		fallthrough
	case 1:
		out := make([]float64, nPixels)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	case nPixels:
		return values, nil
	}
	return nil, fmt.Errorf("%v has %d values for %d pixels", name, len(values), nPixels)
}

// Finalize fills in defaults, broadcasts single values to nPixels and
// validates the result.
func (p *Parameters) Finalize(nPixels int) error {
	var err error
	if p.NominalGain, err = expand("nominal_gain", p.NominalGain, DefaultNominalGain, nPixels); err != nil {
		return err
	}
	if p.AmplitudeGain, err = expand("amplitude_gain", p.AmplitudeGain, DefaultAmplitudeGain, nPixels); err != nil {
		return err
	}
	if p.Crosstalk, err = expand("crosstalk", p.Crosstalk, DefaultCrosstalk, nPixels); err != nil {
		return err
	}
	if p.ElectronicNoise, err = expand("electronic_noise", p.ElectronicNoise, DefaultElectronicNoise, nPixels); err != nil {
		return err
	}

	if p.TemplateArea == 0 {
		p.TemplateArea = DefaultTemplateArea
	}
	if p.TemplateArea2 == 0 {
		p.TemplateArea2 = DefaultTemplateArea2
	}
	if p.BiasResistance == 0 {
		p.BiasResistance = DefaultBiasResistance
	}
	if p.CellCapacitance == 0 {
		p.CellCapacitance = DefaultCellCapacitance
	}

	for i, xt := range p.Crosstalk {
		if xt < 0 || xt >= 1 {
			return fmt.Errorf("crosstalk of pixel %d is %v, must be in [0, 1)", i, xt)
		}
	}
	for i, g := range p.NominalGain {
		if !(g > 0) || math.IsInf(g, 0) {
			return fmt.Errorf("nominal gain of pixel %d is %v", i, g)
		}
	}
	return nil
}

// Tau is the bias resistance times cell capacitance, in ns.
func (p *Parameters) Tau() float64 {
	return p.BiasResistance * p.CellCapacitance * 1e9
}

func (p *Parameters) NoiseModel() *NoiseModel {
	return &NoiseModel{
		Gain:            p.AmplitudeGain,
		Crosstalk:       p.Crosstalk,
		ElectronicNoise: p.ElectronicNoise,
		TemplateArea:    p.TemplateArea,
		TemplateArea2:   p.TemplateArea2,
		Tau:             p.Tau(),
	}
}
