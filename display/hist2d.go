// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package display

import (
	"fmt"
	"image/color"

	"github.com/sst1m/digicampipe/hist2d"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
)

// StackH2D copies a stacked histogram into an hbook histogram with the
// same binning.
func StackH2D(s *hist2d.Stack) (*hbook.H2D, error) {
	if len(s.XEdges) != s.NX+1 || len(s.YEdges) != s.NY+1 {
		return nil, fmt.Errorf("display: histogram has no edges")
	}
	h := hbook.NewH2D(s.NX, s.XEdges[0], s.XEdges[s.NX], s.NY, s.YEdges[0], s.YEdges[s.NY])
	for ix := 0; ix < s.NX; ix++ {
		x := 0.5 * (s.XEdges[ix] + s.XEdges[ix+1])
		for iy := 0; iy < s.NY; iy++ {
			if n := s.At(ix, iy); n != 0 {
				h.Fill(x, 0.5*(s.YEdges[iy]+s.YEdges[iy+1]), float64(n))
			}
		}
	}
	return h, nil
}

// Hist2D draws h as a color map. A non nil profile is drawn on top as the
// mean y of each x bin.
func Hist2D(h *hbook.H2D, title, xLabel, yLabel string, profile *hist2d.Profile) (*plot.Plot, error) {
	p, err := newPlot(title, xLabel, yLabel)
	if err != nil {
		return nil, err
	}
	hp := &hplot.Plot{
		Plot:  p,
		Style: hplot.DefaultStyle,
	}

	colorMap := moreland.Kindlmann()
	hh := hplot.NewH2D(h, colorMap.Palette(1000))
	hh.Infos.Style = hplot.HInfoMean | hplot.HInfoStdDev
	hp.Add(hh)
	hp.Add(hplot.NewGrid())

	if profile != nil && len(profile.X) > 0 {
		pts := make(plotter.XYs, len(profile.X))
		for i := range profile.X {
			pts[i].X = profile.X[i]
			pts[i].Y = profile.Mean[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = color.White
		hp.Add(line)
	}
	return p, nil
}
