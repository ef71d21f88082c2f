// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package shows

import (
	"bytes"
	"log"
	"strconv"

	"github.com/sst1m/digicampipe/display"
	"github.com/sst1m/digicampipe/live/message"

	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/plot/vg"
)

type Hist2DSample struct {
	X, Y   float64
	Weight float64
}

// Hist2D accumulates weighted (x, y) samples in a fixed binning. Changing
// the binning from a client resets the contents.
type Hist2D struct {
	Title, XLabel, YLabel string

	hb *hbook.H2D

	framer
}

type binning struct {
	nx, ny                 int
	xMin, xMax, yMin, yMax float64
}

func (s *Hist2D) binning() binning {
	b := s.hb.Binning
	return binning{
		nx: b.Nx, ny: b.Ny,
		xMin: b.XRange.Min, xMax: b.XRange.Max,
		yMin: b.YRange.Min, yMax: b.YRange.Max,
	}
}

func (s *Hist2D) rebin(b binning) {
	if b.nx <= 0 || b.ny <= 0 || !(b.xMin < b.xMax) || !(b.yMin < b.yMax) {
		return
	}
	s.hb = hbook.NewH2D(b.nx, b.xMin, b.xMax, b.ny, b.yMin, b.yMax)
}

func (s *Hist2D) Execute(cmd *message.Cmd) error {
	s.Lock()
	defer s.Unlock()

	if cmd.Command != "set params" {
		return nil
	}

	// any parameter change, "reset" included, empties the histogram
	b := s.binning()
	for param, value := range cmd.Metadata {
		switch param {
		case "nbins x", "nbins y":
			n, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			if param == "nbins x" {
				b.nx = n
			} else {
				b.ny = n
			}
		case "min x", "max x", "min y", "max y":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			switch param {
			case "min x":
				b.xMin = v
			case "max x":
				b.xMax = v
			case "min y":
				b.yMin = v
			case "max y":
				b.yMax = v
			}
		}
	}
	s.rebin(b)

	return nil
}

func (s *Hist2D) AddSample(vi interface{}) {
	v, ok := vi.(*Hist2DSample)
	if !ok {
		return
	}

	s.Lock()
	defer s.Unlock()

	s.hb.Fill(v.X, v.Y, v.Weight)

	if s.takeExpired() {
		go s.UpdateFrame()
	}
}

// Entries is the sum of the weights filled since the last reset.
func (s *Hist2D) Entries() float64 {
	s.RLock()
	defer s.RUnlock()
	return s.hb.SumW()
}

func (s *Hist2D) UpdateFrame() {
	s.Lock()
	defer s.Unlock()

	frame := message.NewMsg(message.ShowFrame)
	p, err := display.Hist2D(s.hb, s.Title, s.XLabel, s.YLabel, nil)
	if err == nil {
		buf := &bytes.Buffer{}
		if err = display.PNG(buf, p, 4*vg.Inch, 2.5*vg.Inch); err == nil {
			frame.Payload = buf.Bytes()
		}
	}
	if err != nil {
		log.Println("histogram 2D frame:", err)
	}

	b := s.binning()
	frame.Metadata["show type"] = Hist2DType
	frame.Metadata["is png"] = "true"
	frame.Metadata["reset"] = ""
	frame.Metadata["nbins x"] = strconv.Itoa(b.nx)
	frame.Metadata["min x"] = formatFloat(b.xMin)
	frame.Metadata["max x"] = formatFloat(b.xMax)
	frame.Metadata["nbins y"] = strconv.Itoa(b.ny)
	frame.Metadata["min y"] = formatFloat(b.yMin)
	frame.Metadata["max y"] = formatFloat(b.yMax)

	s.setFrame(frame)
}

func (s *Hist2D) InitPlot() {
	s.Lock()
	defer s.Unlock()

	s.hb = hbook.NewH2D(50, -500, 500, 50, -500, 500)
}

// SetBinning replaces the histogram with an empty one.
func (s *Hist2D) SetBinning(nx int, xMin, xMax float64, ny int, yMin, yMax float64) {
	s.Lock()
	defer s.Unlock()

	s.rebin(binning{nx: nx, ny: ny, xMin: xMin, xMax: xMax, yMin: yMin, yMax: yMax})
}
