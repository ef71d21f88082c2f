// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"

	"github.com/sst1m/digicampipe/data"
)

// FilterEventTypes keeps the events of the given types.
func FilterEventTypes(types ...uint32) data.StreamOp {
	return data.Filter(
		fmt.Sprintf("keep event types %v", types),
		func(e *data.Event) bool {
			for _, t := range types {
				if e.EventType == t {
					return true
				}
			}
			return false
		},
	)
}

// FilterMissingBaseline drops the events seen before the baseline was
// ready.
func FilterMissingBaseline() data.StreamOp {
	return data.Filter("drop events without baseline", func(e *data.Event) bool {
		return e.R0.BaselineReady
	})
}

// FilterLevel drops the events that did not reach the given level.
func FilterLevel(level int) data.StreamOp {
	return data.Filter(fmt.Sprintf("keep events at level >= %d", level), func(e *data.Event) bool {
		return e.Level >= level
	})
}

// FilterShower keeps the DL1 events whose cleaned image holds at least
// minPE photo electrons.
func FilterShower(minPE float64) data.StreamOp {
	return data.Filter(fmt.Sprintf("keep showers with at least %v p.e.", minPE), func(e *data.Event) bool {
		if e.Level < data.LevelDL1 {
			return false
		}
		var size float64
		for i, v := range e.DL1.Image {
			if e.DL1.Mask[i] {
				size += v
			}
		}
		return size >= minPE
	})
}
