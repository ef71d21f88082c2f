// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sst1m/digicampipe/data"

	"go-hep.org/x/hep/hbook"
)

// Raw ADC histogram binning, in LSB. Bins are one LSB wide.
const (
	RawADCMax           = 4095
	RawSubtractedADCMin = -100
)

// On board baseline histogram binning, in LSB.
const (
	DigicamBaselineMax      = 1024
	DigicamBaselineBinWidth = 0.25
)

// PixelHistograms holds one histogram per camera pixel.
type PixelHistograms []*hbook.H1D

func newPixelHistograms(nPixels, nBins int, min, max float64) PixelHistograms {
	h := make(PixelHistograms, nPixels)
	for i := range h {
		h[i] = hbook.NewH1D(nBins, min, max)
		h[i].Ann["name"] = fmt.Sprintf("pixel %d", i)
	}
	return h
}

// Means is the mean of every pixel histogram, NaN for empty ones.
func (h PixelHistograms) Means() []float64 {
	means := make([]float64, len(h))
	for i, p := range h {
		means[i] = p.XMean()
	}
	return means
}

// Save writes the histograms as consecutive hbook rio records.
func (h PixelHistograms) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, p := range h {
		if err := p.RioMarshal(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (h PixelHistograms) SaveFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := h.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadPixelHistograms reads histograms written by Save.
func LoadPixelHistograms(r io.Reader) (PixelHistograms, error) {
	br := bufio.NewReader(r)
	var h PixelHistograms
	for {
		p := &hbook.H1D{}
		err := p.RioUnmarshal(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pixel histogram %d: %v", len(h), err)
		}
		h = append(h, p)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("no pixel histogram")
	}
	return h, nil
}

func LoadPixelHistogramsFile(filename string) (PixelHistograms, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPixelHistograms(f)
}

func selectedType(types []uint32, eventType uint32) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == eventType {
			return true
		}
	}
	return false
}

// RawHistogram histograms the ADC samples of every pixel.
type RawHistogram struct {
	Pixels PixelHistograms
	// BaselineSubtracted removes the on board baseline from the samples.
	BaselineSubtracted bool
	// EventTypes restricts the filled events, all of them when empty.
	EventTypes []uint32
}

func NewRawHistogram(nPixels int, baselineSubtracted bool, eventTypes []uint32) *RawHistogram {
	min := 0.0
	if baselineSubtracted {
		min = RawSubtractedADCMin
	}
	return &RawHistogram{
		Pixels:             newPixelHistograms(nPixels, int(RawADCMax-min), min, RawADCMax),
		BaselineSubtracted: baselineSubtracted,
		EventTypes:         eventTypes,
	}
}

// Fill adds the samples of e. Events of other types are ignored.
func (h *RawHistogram) Fill(e *data.Event) error {
	if !selectedType(h.EventTypes, e.EventType) {
		return nil
	}
	if e.NPixels() != len(h.Pixels) {
		return fmt.Errorf("event %v has %d pixels, histogram has %d", e.ID, e.NPixels(), len(h.Pixels))
	}
	if h.BaselineSubtracted && len(e.R0.DigicamBaseline) != len(h.Pixels) {
		return fmt.Errorf("event %v has no on board baseline", e.ID)
	}

	for i, row := range e.R0.Samples {
		var baseline float64
		if h.BaselineSubtracted {
			baseline = e.R0.DigicamBaseline[i]
		}
		p := h.Pixels[i]
		for _, adc := range row {
			p.Fill(float64(adc)-baseline, 1)
		}
	}
	return nil
}

// DigicamBaselineHistogram histograms the on board baseline of every pixel.
type DigicamBaselineHistogram struct {
	Pixels     PixelHistograms
	EventTypes []uint32
}

func NewDigicamBaselineHistogram(nPixels int, eventTypes []uint32) *DigicamBaselineHistogram {
	return &DigicamBaselineHistogram{
		Pixels:     newPixelHistograms(nPixels, int(DigicamBaselineMax/DigicamBaselineBinWidth), 0, DigicamBaselineMax),
		EventTypes: eventTypes,
	}
}

// Fill adds the baseline of e. Events of other types or without a
// baseline are ignored.
func (h *DigicamBaselineHistogram) Fill(e *data.Event) error {
	if !selectedType(h.EventTypes, e.EventType) || e.R0.DigicamBaseline == nil {
		return nil
	}
	if len(e.R0.DigicamBaseline) != len(h.Pixels) {
		return fmt.Errorf("event %v has %d baselines, histogram has %d pixels", e.ID, len(e.R0.DigicamBaseline), len(h.Pixels))
	}
	for i, b := range e.R0.DigicamBaseline {
		h.Pixels[i].Fill(b, 1)
	}
	return nil
}
