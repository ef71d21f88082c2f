// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package hillas

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextWriter(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	w := NewTextWriter(buf)
	m := Moments{Valid: true, Size: 120.5, CenX: -3, CenY: 4, Length: 10, Width: 2.5}
	require.NoError(t, w.Write(7, 1000, m))
	require.NoError(t, w.Write(8, 2000, Failed()))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# event_id local_time size cen_x cen_y length width r phi psi alpha miss skewness kurtosis", lines[0])
	assert.Equal(t, "7 1000 120.5 -3 4 10 2.5 0 0 0 0 0 0 0", lines[1])

	fields := strings.Fields(lines[2])
	require.Len(t, fields, 2+len(Columns))
	for _, f := range fields[2:] {
		assert.Equal(t, "NaN", f)
	}
}
