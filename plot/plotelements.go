// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package plot holds the axis scales and tick markers shared by the
// static displays and the live shows.
package plot

import (
	"math"
	"strconv"

	"gonum.org/v1/plot"
)

// FuncScale normalizes through an arbitrary monotonic function.
type FuncScale struct {
	Func func(float64) float64
}

func (s *FuncScale) Normalize(min, max, x float64) float64 {
	if s.Func == nil {
		panic("plot: FuncScale without Func")
	}
	fMin := s.Func(min)
	return (s.Func(x) - fMin) / (s.Func(max) - fMin)
}

// Log10Floor returns a log10 clipped at floor, so that zero and negative
// rates stay on a log axis.
func Log10Floor(floor float64) func(float64) float64 {
	logFloor := math.Log10(floor)
	return func(x float64) float64 {
		if !(x > floor) {
			return logFloor
		}
		return math.Log10(x)
	}
}

// LogScale is a log10 scale clipped at 1e-15.
var LogScale = &FuncScale{Func: Log10Floor(1e-15)}

// LogTicks labels each decade between min and max and marks the 2..9
// multiples in between.
type LogTicks struct {
	// Floor replaces non positive minima, 1e-15 when zero.
	Floor float64
}

func (t LogTicks) Ticks(min, max float64) []plot.Tick {
	floor := t.Floor
	if floor <= 0 {
		floor = 1e-15
	}
	log10 := Log10Floor(floor)

	val := math.Pow10(int(math.Floor(log10(min))))
	top := math.Pow10(int(math.Ceil(log10(max))))
	var ticks []plot.Tick
	for val < top {
		ticks = append(ticks, plot.Tick{Value: val, Label: formatTick(val)})
		for i := 2; i < 10; i++ {
			ticks = append(ticks, plot.Tick{Value: val * float64(i)})
		}
		val *= 10
	}
	ticks = append(ticks, plot.Tick{Value: val, Label: formatTick(val)})
	return ticks
}

// TimeTicks labels a rolling time axis, in seconds, with about N major
// ticks on round values and one minor tick between majors.
type TimeTicks struct {
	N int
}

func (t TimeTicks) Ticks(min, max float64) []plot.Tick {
	n := t.N
	if n < 2 {
		n = 4
	}
	if !(max > min) {
		return []plot.Tick{{Value: min, Label: formatTick(min)}}
	}

	step := math.Pow10(int(math.Floor(math.Log10((max - min) / float64(n)))))
	for _, mult := range []float64{1, 2, 5, 10} {
		if (max-min)/(step*mult) <= float64(n) {
			step *= mult
			break
		}
	}

	var ticks []plot.Tick
	for v := math.Ceil(min/step) * step; v <= max; v += step {
		ticks = append(ticks, plot.Tick{Value: v, Label: formatTick(roundTo(v, step))})
		if minor := v + step/2; minor <= max {
			ticks = append(ticks, plot.Tick{Value: minor})
		}
	}
	return ticks
}

// roundTo drops the float noise left below step.
func roundTo(v, step float64) float64 {
	prec := math.Pow10(int(-math.Floor(math.Log10(step))) + 1)
	v = math.Round(v*prec) / prec
	if v == 0 {
		return 0
	}
	return v
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 5, 64)
}
