// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ScanText reads R0 events from a text dump and hands each one to emit.
// An event starts with a header line
//
//	# event <id> <event type> <local clock ns> [trigger flag]
//
// followed by one "<pixel id> <adc>..." line per pixel, and optionally a
// "# baseline <lsb>..." line with the on board baseline of every pixel.
// Blank lines and other # lines are skipped.
func ScanText(r io.Reader, emit func(*Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var event *Event
	flush := func() error {
		if event == nil {
			return nil
		}
		e := event
		event = nil
		if len(e.R0.Samples) == 0 {
			return fmt.Errorf("event %v has no pixel", e.ID)
		}
		if n := len(e.R0.DigicamBaseline); n != 0 && n != len(e.R0.Samples) {
			return fmt.Errorf("event %v: %v baselines for %v pixels", e.ID, n, len(e.R0.Samples))
		}
		return emit(e)
	}

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "#" {
			if len(fields) < 2 {
				continue
			}
			switch fields[1] {
			case "event":
				if err := flush(); err != nil {
					return err
				}
				e, err := parseHeader(fields[2:])
				if err != nil {
					return fmt.Errorf("line %d: %v", line, err)
				}
				event = e
			case "baseline":
				if event == nil {
					return fmt.Errorf("line %d: baseline outside of an event", line)
				}
				for _, f := range fields[2:] {
					b, err := strconv.ParseFloat(f, 64)
					if err != nil {
						return fmt.Errorf("line %d: %v", line, err)
					}
					event.R0.DigicamBaseline = append(event.R0.DigicamBaseline, b)
				}
			}
			continue
		}

		if event == nil {
			return fmt.Errorf("line %d: samples outside of an event", line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("line %d: %v", line, err)
		}
		row := make([]uint16, len(fields)-1)
		for i, f := range fields[1:] {
			adc, err := strconv.ParseUint(f, 10, 16)
			if err != nil {
				return fmt.Errorf("line %d: %v", line, err)
			}
			row[i] = uint16(adc)
		}
		if len(event.R0.Samples) > 0 && len(row) != len(event.R0.Samples[0]) {
			return fmt.Errorf("line %d: %d samples, previous pixels have %d", line, len(row), len(event.R0.Samples[0]))
		}
		event.R0.PixelID = append(event.R0.PixelID, id)
		event.R0.Samples = append(event.R0.Samples, row)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

func parseHeader(fields []string) (*Event, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("event header needs id, type and clock")
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, err
	}
	eventType, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, err
	}
	clock, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, err
	}
	e := &Event{
		ID:         id,
		EventType:  uint32(eventType),
		LocalClock: clock,
		Level:      LevelR0,
	}
	if len(fields) > 3 {
		flag, err := strconv.ParseUint(fields[3], 10, 32)
		if err != nil {
			return nil, err
		}
		e.TriggerFlag = uint32(flag)
	}
	return e, nil
}
