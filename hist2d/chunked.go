// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package hist2d

import (
	"io"
)

const DefaultBufferSize = 1000

// Chunked stages up to BufferSize fills and folds them into the counts in
// one go. Anything reading the counts flushes first.
type Chunked struct {
	hist *Histogram2D

	bufferSize int
	bufX, bufY [][][]float64
}

func NewChunked(nChannels, nx, ny int, rng *Range, bufferSize int) *Chunked {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Chunked{
		hist:       New(nChannels, nx, ny, rng),
		bufferSize: bufferSize,
		bufX:       make([][][]float64, 0, bufferSize),
		bufY:       make([][][]float64, 0, bufferSize),
	}
}

// Fill stages a copy of x and y and folds the buffer as soon as it is
// full. Shape errors are reported right away.
func (c *Chunked) Fill(x, y [][]float64) error {
	if err := c.hist.checkShape(x, y); err != nil {
		return err
	}
	c.bufX = append(c.bufX, clone(x))
	c.bufY = append(c.bufY, clone(y))
	if len(c.bufX) >= c.bufferSize {
		c.Flush()
	}
	return nil
}

func clone(v [][]float64) [][]float64 {
	out := make([][]float64, len(v))
	for i, row := range v {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Buffered is the number of staged fills.
func (c *Chunked) Buffered() int {
	return len(c.bufX)
}

// Flush folds the staged fills. Flushing an empty buffer does nothing.
func (c *Chunked) Flush() {
	if len(c.bufX) == 0 {
		return
	}
	c.hist.fold(c.bufX, c.bufY)
	c.bufX = c.bufX[:0]
	c.bufY = c.bufY[:0]
}

// Histogram flushes and returns the underlying histogram.
func (c *Chunked) Histogram() *Histogram2D {
	c.Flush()
	return c.hist
}

func (c *Chunked) Contents() []uint16 {
	return c.Histogram().Contents()
}

func (c *Chunked) FitY(minEntries float64) []Profile {
	return c.Histogram().FitY(minEntries)
}

func (c *Chunked) Save(w io.Writer) error {
	return c.Histogram().Save(w)
}
