// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) []*Event {
	events := make([]*Event, n)
	for i := range events {
		events[i] = &Event{ID: uint64(i)}
	}
	return events
}

func TestEventOp_PreservesOrder(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 3, 16} {
		op := EventOp{
			EventProcessor: func(e *Event) {
				// later events finish first
				time.Sleep(time.Duration(20-e.ID) * time.Millisecond)
				e.Level = LevelR1
			},
			Concurrency: concurrency,
			MaxEventBuf: 4,
		}

		out := Collect(op.Run(Slice(numbered(20)...)))
		require.Len(t, out, 20)
		for i, e := range out {
			assert.Equal(t, uint64(i), e.ID, "concurrency %d", concurrency)
			assert.Equal(t, LevelR1, e.Level)
		}
	}
}

func TestStreamOp_Filter(t *testing.T) {
	t.Parallel()

	op := Filter("even ids", func(e *Event) bool { return e.ID%2 == 0 })
	out := Collect(op.Run(Slice(numbered(7)...)))

	require.Len(t, out, 4)
	for i, e := range out {
		assert.Equal(t, uint64(2*i), e.ID)
	}
}

func TestOpArray_Chain(t *testing.T) {
	t.Parallel()

	ops := OpArray{
		EventOp{Description: "bump", EventProcessor: func(e *Event) { e.Level++ }},
		Filter("drop first", func(e *Event) bool { return e.ID > 0 }),
		EventOp{Description: "bump", EventProcessor: func(e *Event) { e.Level++ }},
	}

	out := Collect(ops.Run(Slice(numbered(3)...)))
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Level)
	assert.Equal(t, "0) bump\n1) drop first\n2) bump", ops.Description())
}

func TestPlayer_PassesEverything(t *testing.T) {
	t.Parallel()

	events := numbered(5)
	for i, e := range events {
		e.LocalClock = int64(i) * 1000
	}
	// clock reset half way
	events[3].LocalClock = 0

	p := &Player{Speed: 1e3}
	op := StreamOp{StreamProcessor: p.Play}
	out := Collect(op.Run(Slice(events...)))
	assert.Len(t, out, 5)
}
