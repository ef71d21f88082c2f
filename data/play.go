// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"time"
)

// Player releases events at the pace given by their camera clock, scaled
// by Speed.
type Player struct {
	Speed float64
}

func (p *Player) Play(input <-chan *Event, output chan<- *Event) {
	if p.Speed == 0.0 {
		p.Speed = 1.0
	}
	durationScale := 1.0 / p.Speed

	var start time.Time
	var initStamp, lastStamp int64
	first := true

	for event := range input {
		stamp := event.LocalClock
		var offset time.Duration
		if first || stamp < lastStamp {
			// clock reset, e.g. a new file
			start = time.Now()
			initStamp = stamp
			first = false
		} else {
			offset = time.Duration(durationScale * float64(stamp-initStamp))
		}
		lastStamp = stamp
		time.Sleep(time.Until(start.Add(offset)))

		output <- event
	}
}
