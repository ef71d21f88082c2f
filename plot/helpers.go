// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package plot

import (
	"math"
)

// MakeSmoother returns an exponential moving average with weight alpha
// for new values, starting from init. NaN values are skipped.
func MakeSmoother(alpha, init float64) func(float64) float64 {
	val := init
	return func(newVal float64) float64 {
		if math.IsNaN(newVal) {
			return val
		}
		if math.IsNaN(val) {
			val = newVal
			return val
		}
		val = (1-alpha)*val + alpha*newVal
		return val
	}
}

// FiniteRange is the range of the finite values of vs. ok is false when
// there are none.
func FiniteRange(vs ...[]float64) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				continue
			}
			min = math.Min(min, x)
			max = math.Max(max, x)
		}
	}
	return min, max, min <= max
}
