// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package hist2d

import (
	"fmt"
	"math"
)

// DefaultMinEntries is the x-bin population FitY needs by default.
const DefaultMinEntries = 10

// Profile is the y mean and standard deviation of every populated x bin.
type Profile struct {
	X, Mean, Std []float64
}

func centers(edges []float64) []float64 {
	if len(edges) < 2 {
		return nil
	}
	c := make([]float64, len(edges)-1)
	for i := range c {
		c[i] = 0.5 * (edges[i] + edges[i+1])
	}
	return c
}

// profile fits the y distribution of each x bin holding more than
// minEntries counts. count(ix, iy) reads one bin.
func profile(nx, ny int, xEdges, yEdges []float64, minEntries float64, count func(ix, iy int) float64) Profile {
	var p Profile
	if xEdges == nil {
		return p
	}
	xc, yc := centers(xEdges), centers(yEdges)
	for ix := 0; ix < nx; ix++ {
		var n, sum float64
		for iy := 0; iy < ny; iy++ {
			w := count(ix, iy)
			n += w
			sum += w * yc[iy]
		}
		if !(n > minEntries) {
			continue
		}
		mean := sum / n
		var ss float64
		for iy := 0; iy < ny; iy++ {
			d := yc[iy] - mean
			ss += count(ix, iy) * d * d
		}
		p.X = append(p.X, xc[ix])
		p.Mean = append(p.Mean, mean)
		p.Std = append(p.Std, math.Sqrt(ss/(n-1)))
	}
	return p
}

// FitY returns one Profile per channel.
func (h *Histogram2D) FitY(minEntries float64) []Profile {
	profiles := make([]Profile, h.nChannels)
	for c := range profiles {
		c := c
		profiles[c] = profile(h.nx, h.ny, h.xEdges, h.yEdges, minEntries, func(ix, iy int) float64 {
			return float64(h.At(c, ix, iy))
		})
	}
	return profiles
}

// Stack is the sum of all channels of a histogram.
type Stack struct {
	NX, NY         int
	Counts         []int64 // [x][y]
	XEdges, YEdges []float64
}

func (h *Histogram2D) StackAll() *Stack {
	s := &Stack{
		NX:     h.nx,
		NY:     h.ny,
		Counts: make([]int64, h.nx*h.ny),
		XEdges: h.xEdges,
		YEdges: h.yEdges,
	}
	n := h.nx * h.ny
	for i, v := range h.counts {
		s.Counts[i%n] += int64(v)
	}
	return s
}

func (s *Stack) At(ix, iy int) int64 {
	return s.Counts[ix*s.NY+iy]
}

func (s *Stack) FitY(minEntries float64) Profile {
	return profile(s.NX, s.NY, s.XEdges, s.YEdges, minEntries, func(ix, iy int) float64 {
		return float64(s.At(ix, iy))
	})
}

// MaxXEntries is the largest population of any x bin.
func (s *Stack) MaxXEntries() int64 {
	var max int64
	for ix := 0; ix < s.NX; ix++ {
		var n int64
		for iy := 0; iy < s.NY; iy++ {
			n += s.At(ix, iy)
		}
		if n > max {
			max = n
		}
	}
	return max
}

// Add sums other into s. Both must share the same edges.
func (s *Stack) Add(other *Stack) error {
	if other.NX != s.NX {
		return &ShapeError{What: "x bins", Got: other.NX, Want: s.NX}
	}
	if other.NY != s.NY {
		return &ShapeError{What: "y bins", Got: other.NY, Want: s.NY}
	}
	if !equal(s.XEdges, other.XEdges) || !equal(s.YEdges, other.YEdges) {
		return fmt.Errorf("hist2d: cannot merge stacks with different edges")
	}
	for i, v := range other.Counts {
		s.Counts[i] += v
	}
	return nil
}
