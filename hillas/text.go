// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package hillas

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Columns of the text table, after the event id and local time.
var Columns = []string{
	"size", "cen_x", "cen_y", "length", "width", "r", "phi", "psi",
	"alpha", "miss", "skewness", "kurtosis",
}

func (m Moments) values() []float64 {
	return []float64{
		m.Size, m.CenX, m.CenY, m.Length, m.Width, m.R, m.Phi, m.Psi,
		m.Alpha, m.Miss, m.Skewness, m.Kurtosis,
	}
}

// TextWriter writes one whitespace separated line of moments per event,
// after a "#" header line.
type TextWriter struct {
	w         *bufio.Writer
	wroteHead bool
}

func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

func (t *TextWriter) Write(eventID uint64, localClock int64, m Moments) error {
	if !t.wroteHead {
		t.wroteHead = true
		if _, err := fmt.Fprintf(t.w, "# event_id local_time %s\n", strings.Join(Columns, " ")); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(t.w, "%d %d", eventID, localClock); err != nil {
		return err
	}
	for _, v := range m.values() {
		if _, err := fmt.Fprintf(t.w, " %.9g", v); err != nil {
			return err
		}
	}
	_, err := t.w.WriteString("\n")
	return err
}

func (t *TextWriter) Flush() error {
	return t.w.Flush()
}
