// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

// StreamProcessor consumes input until it is closed. It must not close
// output.
type StreamProcessor func(<-chan *Event, chan<- *Event)

// StreamOp runs a stateful processor in a single goroutine.
type StreamOp struct {
	Description     string
	StreamProcessor StreamProcessor
	MaxEventBuf     int
}

func (o StreamOp) GetDescription() string {
	return o.Description
}

func (o StreamOp) Run(input <-chan *Event) <-chan *Event {
	if o.MaxEventBuf <= 0 {
		o.MaxEventBuf = DefaultMaxEventBuf
	}

	output := make(chan *Event, o.MaxEventBuf)

	go func() {
		defer close(output)

		o.StreamProcessor(input, output)
	}()

	return output
}

// Filter builds a StreamOp passing on only the events keep accepts.
func Filter(description string, keep func(*Event) bool) StreamOp {
	return StreamOp{
		Description: description,
		StreamProcessor: func(input <-chan *Event, output chan<- *Event) {
			for event := range input {
				if keep(event) {
					output <- event
				}
			}
		},
	}
}

// Slice feeds events into a closed stream. Mostly useful in tests.
func Slice(events ...*Event) <-chan *Event {
	stream := make(chan *Event, len(events))
	for _, event := range events {
		stream <- event
	}
	close(stream)
	return stream
}

// Collect drains a stream.
func Collect(stream <-chan *Event) []*Event {
	var events []*Event
	for event := range stream {
		events = append(events, event)
	}
	return events
}
