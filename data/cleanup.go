// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

// StripWaveforms drops the raw and calibrated waveforms of an event so
// that only the reconstructed quantities are written out.
func StripWaveforms(event *Event) {
	if event.Proio != nil {
		for _, id := range event.Proio.TaggedEntries(R0Tag) {
			event.Proio.RemoveEntry(id)
		}
	}
	event.R0.Samples = nil
	event.R1.Samples = nil
}

// KeepOnlyRaw removes everything but the R0 entries from the underlying
// proio event.
func KeepOnlyRaw(event *Event) {
	if event.Proio == nil {
		return
	}
	rawIds := event.Proio.TaggedEntries(R0Tag)
	for _, id := range event.Proio.AllEntries() {
		isRaw := false
		for _, rawId := range rawIds {
			if id == rawId {
				isRaw = true
				break
			}
		}
		if !isRaw {
			event.Proio.RemoveEntry(id)
		}
	}
	event.DL2 = DL2{}
}
