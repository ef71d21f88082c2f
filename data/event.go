// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"github.com/sst1m/digicampipe/hillas"

	"github.com/proio-org/go-proio"
	"gonum.org/v1/gonum/mat"
)

// Camera constants
const (
	NPixels      = 1296
	SamplePeriod = 4 // ns
)

// Event types as set by the DigiCam trigger
const (
	PhysicsTrigger  = 1
	PhysicsTrigger2 = 2
	ClockedTrigger  = 8
)

// Processing levels reached by an event
const (
	LevelR0 = iota
	LevelR1
	LevelDL1
	LevelDL2
)

// Event is the record handed from stage to stage. Each stage fills in its
// own section and leaves the others untouched.
type Event struct {
	// Proio is the event the record was decoded from, or nil for events
	// built in memory. Encode writes results back into it.
	Proio *proio.Event

	ID          uint64
	TriggerFlag uint32
	EventType   uint32
	LocalClock  int64 // ns
	Level       int

	// data quality tags
	Burst  bool
	Shower bool

	R0  R0
	R1  R1
	DL1 DL1
	DL2 DL2
}

type R0 struct {
	PixelID []int
	// Samples is indexed [pixel][sample]
	Samples         [][]uint16
	DigicamBaseline []float64

	// snapshot of the random trigger baseline at the time the event passed
	// the baseline stage
	BaselineMean  []float64
	BaselineStd   []float64
	BaselineReady bool
}

type R1 struct {
	PedestalMean []float64
	PedestalStd  []float64
	// Samples is the baseline subtracted waveform, pixels x samples
	Samples *mat.Dense

	GainDrop []float64
	NSBRate  []float64 // GHz

	CleaningMask []bool

	Charge    []float64 // integrated LSB
	Amplitude []float64 // LSB
	PE        []float64
	Saturated []bool
	TimeBin   []int
	Time      []float64 // ns
}

type DL1 struct {
	Image []float64
	Mask  []bool
}

type DL2 struct {
	Shower   hillas.Moments
	Computed bool
}

func (e *Event) NPixels() int {
	return len(e.R0.Samples)
}

func (e *Event) NSamples() int {
	if len(e.R0.Samples) == 0 {
		return 0
	}
	return len(e.R0.Samples[0])
}

// NewEvent allocates an event with zeroed waveforms of the given shape and
// sequential pixel ids.
func NewEvent(id uint64, nPixels, nSamples int) *Event {
	e := &Event{ID: id}
	e.R0.PixelID = make([]int, nPixels)
	e.R0.Samples = make([][]uint16, nPixels)
	for i := range e.R0.Samples {
		e.R0.PixelID[i] = i
		e.R0.Samples[i] = make([]uint16, nSamples)
	}
	return e
}
