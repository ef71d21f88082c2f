// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"fmt"

	"github.com/sst1m/digicampipe/hillas"
	"github.com/sst1m/digicampipe/model/digicam"

	"github.com/proio-org/go-proio"
)

// Entry tags
const (
	R0Tag  = "R0"
	DL2Tag = "DL2"
)

// Decode builds an Event from the first R0 entry of a proio event. A DL2
// entry, if present, is decoded too.
func Decode(pe *proio.Event) (*Event, error) {
	ids := pe.TaggedEntries(R0Tag)
	if len(ids) == 0 {
		return nil, fmt.Errorf("event has no %v entry", R0Tag)
	}
	raw, ok := pe.GetEntry(ids[0]).(*digicam.RawEvent)
	if !ok {
		return nil, fmt.Errorf("bad %v entry: %v", R0Tag, pe.Err)
	}

	nPixels := len(raw.PixelId)
	nSamples := int(raw.NSamples)
	if nPixels*nSamples != len(raw.AdcSamples) {
		return nil, fmt.Errorf(
			"event %v: %v samples do not fill %v pixels x %v samples",
			raw.EventId, len(raw.AdcSamples), nPixels, nSamples,
		)
	}
	if len(raw.DigicamBaseline) != 0 && len(raw.DigicamBaseline) != nPixels {
		return nil, fmt.Errorf(
			"event %v: %v digicam baselines for %v pixels",
			raw.EventId, len(raw.DigicamBaseline), nPixels,
		)
	}

	event := &Event{
		Proio:       pe,
		ID:          raw.EventId,
		TriggerFlag: raw.TriggerFlag,
		EventType:   raw.EventType,
		LocalClock:  raw.LocalCameraClock,
		Level:       LevelR0,
	}

	event.R0.PixelID = make([]int, nPixels)
	event.R0.Samples = make([][]uint16, nPixels)
	for i, id := range raw.PixelId {
		event.R0.PixelID[i] = int(id)
		row := make([]uint16, nSamples)
		for j, adc := range raw.AdcSamples[i*nSamples : (i+1)*nSamples] {
			row[j] = uint16(adc)
		}
		event.R0.Samples[i] = row
	}
	if len(raw.DigicamBaseline) > 0 {
		event.R0.DigicamBaseline = make([]float64, nPixels)
		for i, b := range raw.DigicamBaseline {
			event.R0.DigicamBaseline[i] = float64(b)
		}
	}

	if ids := pe.TaggedEntries(DL2Tag); len(ids) > 0 {
		if shower, ok := pe.GetEntry(ids[0]).(*digicam.Shower); ok {
			event.DL2.Shower = momentsFromShower(shower)
			event.DL2.Computed = true
			event.Level = LevelDL2
		}
	}

	return event, nil
}

// Encode returns the proio event for e. The event the record was decoded
// from is reused; computed DL2 moments replace any DL2 entry it carries.
func Encode(e *Event) *proio.Event {
	pe := e.Proio
	if pe == nil {
		pe = proio.NewEvent()
		if len(e.R0.Samples) > 0 {
			pe.AddEntry(R0Tag, RawEntry(e))
		}
		e.Proio = pe
	}

	if e.DL2.Computed {
		for _, id := range pe.TaggedEntries(DL2Tag) {
			pe.RemoveEntry(id)
		}
		pe.AddEntry(DL2Tag, ShowerEntry(e))
	}

	return pe
}

func RawEntry(e *Event) *digicam.RawEvent {
	nSamples := e.NSamples()
	raw := &digicam.RawEvent{
		EventId:          e.ID,
		TriggerFlag:      e.TriggerFlag,
		EventType:        e.EventType,
		LocalCameraClock: e.LocalClock,
		NSamples:         uint32(nSamples),
		PixelId:          make([]uint32, len(e.R0.Samples)),
		AdcSamples:       make([]uint32, 0, len(e.R0.Samples)*nSamples),
	}
	for i, row := range e.R0.Samples {
		if i < len(e.R0.PixelID) {
			raw.PixelId[i] = uint32(e.R0.PixelID[i])
		} else {
			raw.PixelId[i] = uint32(i)
		}
		for _, adc := range row {
			raw.AdcSamples = append(raw.AdcSamples, uint32(adc))
		}
	}
	for _, b := range e.R0.DigicamBaseline {
		raw.DigicamBaseline = append(raw.DigicamBaseline, float32(b))
	}
	return raw
}

func ShowerEntry(e *Event) *digicam.Shower {
	m := e.DL2.Shower
	return &digicam.Shower{
		EventId:          e.ID,
		LocalCameraClock: e.LocalClock,
		Valid:            m.Valid,
		Size:             m.Size,
		CenX:             m.CenX,
		CenY:             m.CenY,
		Length:           m.Length,
		Width:            m.Width,
		R:                m.R,
		Phi:              m.Phi,
		Psi:              m.Psi,
		Miss:             m.Miss,
		Alpha:            m.Alpha,
		Skewness:         m.Skewness,
		Kurtosis:         m.Kurtosis,
	}
}

func momentsFromShower(s *digicam.Shower) hillas.Moments {
	return hillas.Moments{
		Valid:    s.Valid,
		Size:     s.Size,
		CenX:     s.CenX,
		CenY:     s.CenY,
		Length:   s.Length,
		Width:    s.Width,
		R:        s.R,
		Phi:      s.Phi,
		Psi:      s.Psi,
		Miss:     s.Miss,
		Alpha:    s.Alpha,
		Skewness: s.Skewness,
		Kurtosis: s.Kurtosis,
	}
}
