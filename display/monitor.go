// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package display

import (
	"fmt"
	"image/color"
	"math"

	"github.com/sst1m/digicampipe/calib"
	dplot "github.com/sst1m/digicampipe/plot"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

// finitePoints drops the pairs with a non finite coordinate.
func finitePoints(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(x))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsInf(x[i], 0) || math.IsInf(y[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

// BaselineShift draws the camera averaged background rate against the LED
// DC level, on a log scale.
func BaselineShift(results *calib.ShiftResults) (*plot.Plot, error) {
	if len(results.NSBRate) == 0 {
		return nil, fmt.Errorf("display: baseline shift results are not fitted")
	}
	shift := calib.PixelAverage(results.BaselineShift)
	title := fmt.Sprintf("baseline shift (max %.1f LSB)", maxFinite(shift))
	p, err := newPlot(title, "DC level", "NSB rate [GHz]")
	if err != nil {
		return nil, err
	}

	levels := make([]float64, len(results.DCLevels))
	for i, l := range results.DCLevels {
		levels[i] = float64(l)
	}
	rate := calib.PixelAverage(results.NSBRate)

	// levels at or below the reference have no rate on a log axis
	pts := make(plotter.XYs, 0, len(levels))
	for _, pt := range finitePoints(levels, rate) {
		if pt.Y > 0 {
			pts = append(pts, pt)
		}
	}
	if len(pts) > 0 {
		if err := plotutil.AddLinePoints(p, "NSB rate", pts); err != nil {
			return nil, err
		}
		p.Y.Scale = dplot.LogScale
		p.Y.Tick.Marker = dplot.LogTicks{}
	}

	p.Add(plotter.NewGrid())
	return p, nil
}

func maxFinite(v []float64) float64 {
	_, max, ok := dplot.FiniteRange(v)
	if !ok {
		return math.NaN()
	}
	return max
}

// Quality draws the trigger and shower rates of the data quality windows
// against time, bursts marked in red.
func Quality(windows []calib.QualityWindow) (*plot.Plot, error) {
	p, err := newPlot("data quality", "time [s]", "rate [Hz]")
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return p, nil
	}

	t0 := windows[0].Time
	t := make([]float64, len(windows))
	trigger := make([]float64, len(windows))
	shower := make([]float64, len(windows))
	var bursts plotter.XYs
	for i, w := range windows {
		t[i] = (w.Time - t0) * 1e-9
		trigger[i] = w.TriggerRate
		shower[i] = w.ShowerRate
		if w.Burst {
			bursts = append(bursts, plotter.XY{X: t[i], Y: w.TriggerRate})
		}
	}

	if err := plotutil.AddLines(p,
		"trigger rate", finitePoints(t, trigger),
		"shower rate", finitePoints(t, shower),
	); err != nil {
		return nil, err
	}
	if len(bursts) > 0 {
		s, err := plotter.NewScatter(bursts)
		if err != nil {
			return nil, err
		}
		s.Color = color.RGBA{R: 255, A: 255}
		p.Add(s)
		p.Legend.Add("burst", s)
	}
	p.X.Tick.Marker = dplot.TimeTicks{N: 6}
	p.Add(plotter.NewGrid())
	return p, nil
}

// Baselines draws the camera averaged baseline histogram.
func Baselines(h *hbook.H1D) (*plot.Plot, error) {
	return Histogram(h, "baseline", "baseline [LSB]")
}

// Histogram draws h zoomed on five standard deviations around its mean.
func Histogram(h *hbook.H1D, title, xLabel string) (*plot.Plot, error) {
	p, err := newPlot(title, xLabel, "count")
	if err != nil {
		return nil, err
	}
	hp := &hplot.Plot{
		Plot:  p,
		Style: hplot.DefaultStyle,
	}
	hh := hplot.NewH1D(h)
	hh.Infos.Style = hplot.HInfoSummary
	hp.Add(hh)
	hp.Add(hplot.NewGrid())

	if mean, std := h.XMean(), h.XStdDev(); !math.IsNaN(std) && std > 0 {
		p.X.Min = mean - 5*std
		p.X.Max = mean + 5*std
	}
	return p, nil
}

// Values histograms the finite entries of v, one per pixel.
func Values(v []float64, nBins int, title, xLabel string) (*plot.Plot, error) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		min = math.Min(min, x)
		max = math.Max(max, x)
	}
	if min > max {
		return nil, fmt.Errorf("display: no finite value for %q", title)
	}
	if max == min {
		min -= 0.5
		max += 0.5
	}
	// the maximum lands in the last bin
	max += (max - min) * 1e-9

	h := hbook.NewH1D(nBins, min, max)
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			h.Fill(x, 1)
		}
	}
	return Histogram(h, title, xLabel)
}
