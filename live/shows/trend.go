// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package shows

import (
	"bytes"
	"image/color"
	"log"
	"math"
	"strconv"

	"github.com/sst1m/digicampipe/display"
	"github.com/sst1m/digicampipe/live/message"
	dcplot "github.com/sst1m/digicampipe/plot"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	DefaultNSample = 500
	DefaultAlpha   = 1
)

type smoothLine struct {
	smoother func(float64) float64
	i        int

	plotter.Line
}

// TrendSample is one point of a named line, T in seconds.
type TrendSample struct {
	T, Y     float64
	LineName string
}

// Trend rolls the last NSample points of one or more lines. Every
// Downsample-th point is kept after exponential smoothing with Alpha.
type Trend struct {
	Alpha            float64
	DisableAutorange bool
	Downsample       int
	NSample          int

	lines map[string]*smoothLine
	p     *plot.Plot

	framer
}

func (s *Trend) setLogScale(log bool) {
	if log {
		s.p.Y.Scale = dcplot.LogScale
		s.p.Y.Tick.Marker = dcplot.LogTicks{}
	} else {
		s.p.Y.Scale = plot.LinearScale{}
		s.p.Y.Tick.Marker = plot.DefaultTicks{}
	}
}

func (s *Trend) isLogScale() bool {
	_, linear := s.p.Y.Scale.(plot.LinearScale)
	return !linear
}

func (s *Trend) Execute(cmd *message.Cmd) error {
	s.Lock()
	defer s.Unlock()

	if cmd.Command != "set params" {
		return nil
	}

	for param, value := range cmd.Metadata {
		switch param {
		case "autorange":
			s.DisableAutorange = !parseBool(value)
		case "min":
			if min, err := strconv.ParseFloat(value, 64); err == nil {
				s.p.Y.Min = min
			}
		case "max":
			if max, err := strconv.ParseFloat(value, 64); err == nil {
				s.p.Y.Max = max
			}
		case "logscale":
			s.setLogScale(parseBool(value))
		case "alpha":
			alpha, err := strconv.ParseFloat(value, 64)
			if err == nil && alpha > 0 && alpha <= 1 {
				s.Alpha = alpha
				for _, line := range s.lines {
					init := math.NaN()
					if len(line.XYs) > 0 {
						init = line.XYs[len(line.XYs)-1].Y
					}
					line.smoother = dcplot.MakeSmoother(alpha, init)
				}
			}
		case "nsample":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				s.NSample = n
			}
		case "downsample":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				s.Downsample = n
			}
		}
	}

	return nil
}

func (s *Trend) AddSample(vi interface{}) {
	v, ok := vi.(*TrendSample)
	if !ok {
		return
	}

	s.Lock()
	defer s.Unlock()

	if s.NSample == 0 {
		s.NSample = DefaultNSample
	}
	if s.Downsample == 0 {
		s.Downsample = 1
	}
	if s.Alpha == 0 {
		s.Alpha = DefaultAlpha
	}
	if s.lines == nil {
		s.lines = make(map[string]*smoothLine)
	}

	line := s.lines[v.LineName]
	if line == nil {
		line = &smoothLine{
			smoother: dcplot.MakeSmoother(s.Alpha, math.NaN()),
		}
		line.LineStyle = plotter.DefaultLineStyle
		line.Color = plotutil.Color(len(s.lines))
		s.lines[v.LineName] = line
		s.p.Add(line)
		s.p.Legend.Add(v.LineName, line)
	}
	line.i++

	// time going backwards starts a new trace, e.g. a new run
	if len(line.XYs) > 0 && v.T < line.XYs[len(line.XYs)-1].X {
		line.XYs = nil
		line.smoother = dcplot.MakeSmoother(s.Alpha, math.NaN())
		line.i = 1
	}
	ySmooth := line.smoother(v.Y)

	if (line.i-1)%s.Downsample == 0 && !math.IsNaN(ySmooth) {
		line.XYs = append(line.XYs, plotter.XY{X: v.T, Y: ySmooth})
		for len(line.XYs) > s.NSample {
			line.XYs = line.XYs[1:]
		}
	}

	if s.takeExpired() {
		go s.UpdateFrame()
	}
}

// Points returns a copy of the retained points of a line.
func (s *Trend) Points(lineName string) plotter.XYs {
	s.RLock()
	defer s.RUnlock()

	line := s.lines[lineName]
	if line == nil {
		return nil
	}
	return append(plotter.XYs(nil), line.XYs...)
}

func (s *Trend) UpdateFrame() {
	s.Lock()
	defer s.Unlock()

	var xs, ys []float64
	for _, line := range s.lines {
		for _, xy := range line.XYs {
			xs = append(xs, xy.X)
			ys = append(ys, xy.Y)
		}
	}
	if min, max, ok := dcplot.FiniteRange(xs); ok {
		s.p.X.Min, s.p.X.Max = min, max
	}
	if !s.DisableAutorange {
		if min, max, ok := dcplot.FiniteRange(ys); ok {
			s.p.Y.Min, s.p.Y.Max = min, max
		}
	}

	frame := message.NewMsg(message.ShowFrame)
	buf := &bytes.Buffer{}
	if err := display.SVG(buf, s.p, 4*vg.Inch, 2.5*vg.Inch); err != nil {
		log.Println("trend frame:", err)
	}
	frame.Payload = buf.Bytes()
	frame.Metadata["show type"] = TrendType
	frame.Metadata["alpha"] = strconv.FormatFloat(s.Alpha, 'g', 8, 64)
	frame.Metadata["nsample"] = strconv.Itoa(s.NSample)
	frame.Metadata["downsample"] = strconv.Itoa(s.Downsample)
	frame.Metadata["autorange"] = strconv.FormatBool(!s.DisableAutorange)
	frame.Metadata["min"] = formatFloat(s.p.Y.Min)
	frame.Metadata["max"] = formatFloat(s.p.Y.Max)
	frame.Metadata["logscale"] = strconv.FormatBool(s.isLogScale())

	s.setFrame(frame)
}

func (s *Trend) InitPlot() {
	s.Lock()
	defer s.Unlock()

	p, err := plot.New()
	if err != nil {
		panic(err)
	}
	p.BackgroundColor = color.Transparent
	p.X.Label.Text = "time [s]"
	p.X.Tick.Marker = dcplot.TimeTicks{N: 5}
	p.Legend.Top = true
	s.p = p
}
