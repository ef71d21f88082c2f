// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package hist2d accumulates per channel 2D histograms of paired samples,
// such as waveform amplitude versus time for pulse templates.
//
// Binning follows numpy.histogram2d: bins are right-open except the last
// one, which is closed, and values outside the edges or not finite are
// dropped. Counts are 16 bit and wrap around on overflow.
package hist2d

import (
	"fmt"
	"math"
	"sort"
)

// Range holds {{xmin, xmax}, {ymin, ymax}}.
type Range [2][2]float64

// ShapeError reports fills or merges that do not match the histogram
// layout. It is a configuration error, never a data condition.
type ShapeError struct {
	What      string
	Got, Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("hist2d: %s: got %d, want %d", e.What, e.Got, e.Want)
}

// Histogram2D folds every fill into the counts immediately.
type Histogram2D struct {
	nChannels, nx, ny int
	rng               *Range

	// values per channel and fill, fixed by the first fill
	nValues int

	counts         []uint16
	xEdges, yEdges []float64
}

// New returns an empty histogram. With a nil rng the edges are taken from
// the data of the first fold and frozen.
func New(nChannels, nx, ny int, rng *Range) *Histogram2D {
	if nChannels <= 0 || nx <= 0 || ny <= 0 {
		panic(fmt.Sprintf("hist2d: bad shape %dx%dx%d", nChannels, nx, ny))
	}
	h := &Histogram2D{
		nChannels: nChannels,
		nx:        nx,
		ny:        ny,
		nValues:   -1,
		counts:    make([]uint16, nChannels*nx*ny),
	}
	if rng != nil {
		r := *rng
		h.rng = &r
		h.xEdges = linspace(r[0][0], r[0][1], nx)
		h.yEdges = linspace(r[1][0], r[1][1], ny)
	}
	return h
}

func (h *Histogram2D) NChannels() int { return h.nChannels }
func (h *Histogram2D) NX() int        { return h.nx }
func (h *Histogram2D) NY() int        { return h.ny }

// Range is nil when the edges come from the data.
func (h *Histogram2D) Range() *Range {
	if h.rng == nil {
		return nil
	}
	r := *h.rng
	return &r
}

// XEdges and YEdges are nil until the edges are known.
func (h *Histogram2D) XEdges() []float64 { return h.xEdges }
func (h *Histogram2D) YEdges() []float64 { return h.yEdges }

// Contents returns the counts laid out [channel][x][y].
func (h *Histogram2D) Contents() []uint16 { return h.counts }

func (h *Histogram2D) At(channel, ix, iy int) uint16 {
	return h.counts[h.index(channel, ix, iy)]
}

func (h *Histogram2D) index(channel, ix, iy int) int {
	return (channel*h.nx+ix)*h.ny + iy
}

// Fill histograms x[c][k] against y[c][k] for every channel c.
func (h *Histogram2D) Fill(x, y [][]float64) error {
	if err := h.checkShape(x, y); err != nil {
		return err
	}
	h.fold([][][]float64{x}, [][][]float64{y})
	return nil
}

func (h *Histogram2D) checkShape(x, y [][]float64) error {
	if len(x) != h.nChannels {
		return &ShapeError{What: "x channels", Got: len(x), Want: h.nChannels}
	}
	if len(y) != h.nChannels {
		return &ShapeError{What: "y channels", Got: len(y), Want: h.nChannels}
	}
	want := h.nValues
	if want < 0 {
		want = len(x[0])
	}
	for c := range x {
		if len(x[c]) != want {
			return &ShapeError{What: fmt.Sprintf("x values of channel %d", c), Got: len(x[c]), Want: want}
		}
		if len(y[c]) != want {
			return &ShapeError{What: fmt.Sprintf("y values of channel %d", c), Got: len(y[c]), Want: want}
		}
	}
	h.nValues = want
	return nil
}

// fold adds a batch of shape-checked fills.
func (h *Histogram2D) fold(xs, ys [][][]float64) {
	if h.xEdges == nil {
		if !h.edgesFromData(xs, ys) {
			return
		}
	}

	for k := range xs {
		for c := range xs[k] {
			xv, yv := xs[k][c], ys[k][c]
			for i := range xv {
				ix := bin(h.xEdges, xv[i])
				if ix < 0 {
					continue
				}
				iy := bin(h.yEdges, yv[i])
				if iy < 0 {
					continue
				}
				h.counts[h.index(c, ix, iy)]++
			}
		}
	}
}

func (h *Histogram2D) edgesFromData(xs, ys [][][]float64) bool {
	xMin, xMax, okX := finiteBounds(xs)
	yMin, yMax, okY := finiteBounds(ys)
	if !okX || !okY {
		return false
	}
	h.xEdges = linspace(xMin, xMax, h.nx)
	h.yEdges = linspace(yMin, yMax, h.ny)
	return true
}

func finiteBounds(vs [][][]float64) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, fill := range vs {
		for _, row := range fill {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				min = math.Min(min, v)
				max = math.Max(max, v)
			}
		}
	}
	if min > max {
		return 0, 0, false
	}
	if min == max {
		min -= 0.5
		max += 0.5
	}
	return min, max, true
}

// linspace returns n+1 evenly spaced edges, the last one exactly stop.
func linspace(start, stop float64, n int) []float64 {
	edges := make([]float64, n+1)
	step := (stop - start) / float64(n)
	for i := range edges {
		edges[i] = float64(i)*step + start
	}
	edges[n] = stop
	return edges
}

// bin returns the index of the bin holding v, or -1.
func bin(edges []float64, v float64) int {
	n := len(edges) - 1
	if math.IsNaN(v) || v < edges[0] || v > edges[n] {
		return -1
	}
	if v == edges[n] {
		return n - 1
	}
	i := sort.Search(len(edges), func(k int) bool { return edges[k] > v }) - 1
	if i < 0 || i >= n {
		return -1
	}
	return i
}

// Add merges the counts of other, which must have the same layout and
// edges.
func (h *Histogram2D) Add(other *Histogram2D) error {
	if other.nChannels != h.nChannels {
		return &ShapeError{What: "channels", Got: other.nChannels, Want: h.nChannels}
	}
	if other.nx != h.nx {
		return &ShapeError{What: "x bins", Got: other.nx, Want: h.nx}
	}
	if other.ny != h.ny {
		return &ShapeError{What: "y bins", Got: other.ny, Want: h.ny}
	}
	if other.xEdges == nil {
		return nil
	}
	if h.xEdges == nil {
		h.xEdges = append([]float64(nil), other.xEdges...)
		h.yEdges = append([]float64(nil), other.yEdges...)
		if other.rng != nil {
			r := *other.rng
			h.rng = &r
		}
	} else if !equal(h.xEdges, other.xEdges) || !equal(h.yEdges, other.yEdges) {
		return fmt.Errorf("hist2d: cannot merge histograms with different edges")
	}

	for i, v := range other.counts {
		h.counts[i] += v
	}
	if h.nValues < 0 {
		h.nValues = other.nValues
	}
	return nil
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
