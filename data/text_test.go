// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDump = `# two events of two pixels
# event 1 8 1000
0 300 301 302
1 310 311 312

# event 2 1 2000 4
# baseline 300.5 310
0 300 350 302
1 310 311 400
`

func TestScanText(t *testing.T) {
	t.Parallel()

	var events []*Event
	err := ScanText(strings.NewReader(testDump), func(e *Event) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, uint64(1), events[0].ID)
	assert.Equal(t, uint32(ClockedTrigger), events[0].EventType)
	assert.Equal(t, int64(1000), events[0].LocalClock)
	assert.Equal(t, []int{0, 1}, events[0].R0.PixelID)
	assert.Equal(t, []uint16{310, 311, 312}, events[0].R0.Samples[1])
	assert.Nil(t, events[0].R0.DigicamBaseline)

	assert.Equal(t, uint32(PhysicsTrigger), events[1].EventType)
	assert.Equal(t, uint32(4), events[1].TriggerFlag)
	assert.Equal(t, []float64{300.5, 310}, events[1].R0.DigicamBaseline)
	assert.Equal(t, 3, events[1].NSamples())

	raw := RawEntry(events[1])
	assert.Equal(t, []uint32{300, 350, 302, 310, 311, 400}, raw.AdcSamples)
}

func TestScanText_Errors(t *testing.T) {
	t.Parallel()

	noop := func(*Event) error { return nil }
	for _, dump := range []string{
		"0 300 301\n",
		"# event 1 8\n0 1 2\n",
		"# event 1 8 1000\n0 1 2\n1 1\n",
		"# event 1 8 1000\n0 1 70000\n",
		"# event 1 8 1000\n# baseline 1 2\n0 1 2\n",
		"# event 1 8 1000\n",
	} {
		assert.Error(t, ScanText(strings.NewReader(dump), noop), dump)
	}
}
