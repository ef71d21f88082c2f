// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package pulse

import (
	"sort"
)

// spline is a natural cubic spline through (x, y), x strictly increasing.
// It evaluates to outside beyond the knots.
type spline struct {
	x, y, m []float64 // m holds the second derivatives
	outside float64
}

func newSpline(x, y []float64, outside float64) *spline {
	n := len(x)
	s := &spline{x: x, y: y, m: make([]float64, n), outside: outside}
	if n < 3 {
		return s
	}

	// tridiagonal system for m[1..n-2], m[0] = m[n-1] = 0
	diag := make([]float64, n)
	rhs := make([]float64, n)
	for i := 1; i < n-1; i++ {
		h0 := x[i] - x[i-1]
		h1 := x[i+1] - x[i]
		diag[i] = 2 * (h0 + h1)
		rhs[i] = 6 * ((y[i+1]-y[i])/h1 - (y[i]-y[i-1])/h0)
	}
	// forward elimination
	for i := 2; i < n-1; i++ {
		w := (x[i] - x[i-1]) / diag[i-1]
		diag[i] -= w * (x[i] - x[i-1])
		rhs[i] -= w * rhs[i-1]
	}
	for i := n - 2; i >= 1; i-- {
		s.m[i] = (rhs[i] - (x[i+1]-x[i])*s.m[i+1]) / diag[i]
	}
	return s
}

func (s *spline) at(t float64) float64 {
	n := len(s.x)
	if n == 0 || !(t >= s.x[0] && t <= s.x[n-1]) {
		return s.outside
	}
	if n == 1 {
		return s.y[0]
	}

	i := sort.SearchFloat64s(s.x, t)
	if i == 0 {
		return s.y[0]
	}
	// t lies in [x[i-1], x[i]]
	x0, x1 := s.x[i-1], s.x[i]
	h := x1 - x0
	a := (x1 - t) / h
	b := (t - x0) / h
	return a*s.y[i-1] + b*s.y[i] +
		((a*a*a-a)*s.m[i-1]+(b*b*b-b)*s.m[i])*h*h/6
}
