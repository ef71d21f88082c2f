// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package display

import (
	"image/color"

	"github.com/sst1m/digicampipe/pulse"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
)

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// Template draws the table points with their spread and the interpolated
// template, 100 points per table step.
func Template(tpl *pulse.Template, title string) (*plot.Plot, error) {
	p, err := newPlot(title, "time [ns]", "normalised amplitude")
	if err != nil {
		return nil, err
	}

	pts := errorPoints{
		XYs:     make(plotter.XYs, len(tpl.Time)),
		YErrors: make(plotter.YErrors, len(tpl.Time)),
	}
	for i := range tpl.Time {
		pts.XYs[i].X = tpl.Time[i]
		pts.XYs[i].Y = tpl.Amplitude[i]
		pts.YErrors[i].Low = tpl.AmplitudeStd[i]
		pts.YErrors[i].High = tpl.AmplitudeStd[i]
	}
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, err
	}
	scatter, err := plotter.NewScatter(pts.XYs)
	if err != nil {
		return nil, err
	}

	n := 100 * len(tpl.Time)
	t0, t1 := tpl.Time[0], tpl.Time[len(tpl.Time)-1]
	curve := make(plotter.XYs, n)
	for i := range curve {
		curve[i].X = t0 + (t1-t0)*float64(i)/float64(n-1)
		curve[i].Y = tpl.Eval(curve[i].X)
	}
	line, err := plotter.NewLine(curve)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{R: 200, A: 255}

	p.Add(plotter.NewGrid(), bars, scatter, line)
	p.Legend.Add("template data points", scatter)
	p.Legend.Add("interpolated template", line)
	return p, nil
}
