// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

type EventProcessor func(*Event)

// EventOp applies EventProcessor to up to Concurrency events at a time.
// Output order matches input order.
type EventOp struct {
	Description    string
	EventProcessor EventProcessor
	Concurrency    int
	MaxEventBuf    int
}

func (o EventOp) GetDescription() string {
	return o.Description
}

func (o EventOp) Run(input <-chan *Event) <-chan *Event {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}

	if o.MaxEventBuf <= 0 {
		o.MaxEventBuf = DefaultMaxEventBuf
	}

	output := make(chan *Event, o.MaxEventBuf)

	go func() {
		defer close(output)

		inFlight := make(map[uint64]*Event)
		finished := make(map[uint64]*Event)
		done := make(chan uint64)
		ackDone := func() {
			index := <-done
			finished[index] = inFlight[index]
			delete(inFlight, index)
		}

		nRead := uint64(0)
		nWritten := uint64(0)
		flush := func() {
			for {
				event, ok := finished[nWritten]
				if !ok {
					return
				}
				output <- event
				delete(finished, nWritten)
				nWritten++
			}
		}

		for event := range input {
			inFlight[nRead] = event
			go func(event *Event, index uint64) {
				o.EventProcessor(event)
				done <- index
			}(event, nRead)
			nRead++

			for len(inFlight) >= o.Concurrency || len(finished) >= o.MaxEventBuf {
				ackDone()
				flush()
			}
		}

		for len(inFlight) > 0 {
			ackDone()
		}
		flush()
	}()

	return output
}
