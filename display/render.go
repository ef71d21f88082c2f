// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package display renders histograms, templates and monitoring curves to
// PNG or SVG.
package display

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

// Default canvas size
var (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

func newPlot(title, xLabel, yLabel string) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.BackgroundColor = color.White
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p, nil
}

// PNG draws p on a width x height canvas.
func PNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	img := vgimg.New(width, height)
	p.Draw(draw.New(img))
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	return encoder.Encode(w, img.Image())
}

func SVG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	svg := vgsvg.New(width, height)
	p.Draw(draw.New(svg))
	_, err := svg.WriteTo(w)
	return err
}

// Bytes renders p with the default size in the given format, "png" or
// "svg".
func Bytes(p *plot.Plot, format string) ([]byte, error) {
	buf := &bytes.Buffer{}
	var err error
	switch format {
	case "png":
		err = PNG(buf, p, Width, Height)
	case "svg":
		err = SVG(buf, p, Width, Height)
	default:
		err = fmt.Errorf("display: unknown format %q", format)
	}
	return buf.Bytes(), err
}

// Save picks the format from the file extension.
func Save(filename string, p *plot.Plot) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	b, err := Bytes(p, format)
	if err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
