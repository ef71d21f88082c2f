// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/sst1m/digicampipe/calib"
	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/display"
	"github.com/sst1m/digicampipe/hist2d"
	"github.com/sst1m/digicampipe/pulse"
)

var (
	compute     = data.FlagSet.Bool("compute", false, "fill the pulse shape histogram of the proio inputs")
	fit         = data.FlagSet.Bool("fit", false, "fit a template to the histogram files given as inputs")
	show        = data.FlagSet.Bool("display", false, "plot the histogram files or template given as inputs")
	histFile    = data.FlagSet.String("hist", "", "histogram FITS file written by -compute (default first input + .fits)")
	tplFile     = data.FlagSet.String("template", "template.txt", "template text file written by -fit")
	plotFile    = data.FlagSet.String("plot", "template.png", "image written by -display")
	tMin        = data.FlagSet.Float64("tmin", -10, "minimum time in ns w.r.t. the half maximum of the leading edge")
	tMax        = data.FlagSet.Float64("tmax", 40, "maximum time in ns")
	aMin        = data.FlagSet.Float64("amin", -0.1, "minimum amplitude normalised to the integrated charge")
	aMax        = data.FlagSet.Float64("amax", 0.4, "maximum normalised amplitude")
	iMin        = data.FlagSet.Int("imin", 10, "first sample of the charge integration")
	iMax        = data.FlagSet.Int("imax", 30, "sample after the last one of the charge integration")
	qMin        = data.FlagSet.Float64("qmin", 200, "minimum integrated charge in LSB")
	qMax        = data.FlagSet.Float64("qmax", 10000, "maximum integrated charge in LSB")
	nBin        = data.FlagSet.Int("nbin", 100, "number of bins along each axis")
	bufferSize  = data.FlagSet.Int("buffer", hist2d.DefaultBufferSize, "number of events staged before filling the histogram")
	entryRatio  = data.FlagSet.Float64("min-entries", 0.1, "fraction of the most populated time bin needed to keep a bin in the fit")
	nPixelsFlag = data.FlagSet.Int("npixels", data.NPixels, "number of camera pixels")
)

const description = `Builds the DigiCam pulse template.
  -compute: inputs are R0 proio files, fills a time vs amplitude histogram per pixel
  -fit:     inputs are histogram files, writes the template table
  -display: inputs are histogram files or a template table`

func main() {
	data.ParseFlags(description)

	if !*compute && !*fit && !*show {
		data.FlagSet.Usage()
		log.Fatal("one of -compute, -fit or -display is needed")
	}

	inputs := data.FlagSet.Args()
	if *compute {
		inputs = []string{computeHistogram()}
	}
	if *fit {
		fitTemplate(inputs)
		inputs = []string{*tplFile}
	}
	if *show {
		displayInputs(inputs)
	}
}

// computeHistogram returns the name of the histogram file.
func computeHistogram() string {
	output := *histFile
	if output == "" {
		output = data.FlagSet.Arg(0) + ".fits"
	}
	if _, err := os.Stat(filepath.Dir(output)); err != nil {
		log.Fatal(err)
	}

	rng := &hist2d.Range{{*tMin, *tMax}, {*aMin, *aMax}}
	histo := hist2d.NewChunked(*nPixelsFlag, *nBin, *nBin, rng, *bufferSize)
	shape := &calib.PulseShape{
		IntegrationMin: *iMin,
		IntegrationMax: *iMax,
		ChargeMin:      *qMin,
		ChargeMax:      *qMax,
	}

	ops := data.OpArray{
		data.EventOp{
			Description:    "use the on board baseline",
			EventProcessor: calib.UseDigicamBaseline,
		},
		calib.FilterMissingBaseline(),
		data.StreamOp{
			Description: "fill the pulse shape histogram",
			StreamProcessor: func(input <-chan *data.Event, output chan<- *data.Event) {
				for event := range input {
					x, y := shape.Pairs(event)
					if x == nil {
						continue
					}
					if err := histo.Fill(x, y); err != nil {
						log.Fatal(err)
					}
					output <- event
				}
			},
		},
	}
	ops.SinkCmd()

	if err := saveHistogram(output, histo); err != nil {
		log.Fatal(err)
	}
	log.Println("2D histogram of pulse shape for all pixels saved as", output)
	return output
}

func saveHistogram(filename string, histo *hist2d.Chunked) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := histo.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fitTemplate(histFiles []string) {
	tpl, err := pulse.FromHistogramFiles(histFiles, *entryRatio)
	if err != nil {
		log.Fatal(err)
	}
	if err := tpl.SaveFile(*tplFile); err != nil {
		log.Fatal(err)
	}
	log.Println("pulse template saved as", *tplFile)
}

func displayInputs(inputs []string) {
	for _, input := range inputs {
		if filepath.Ext(input) == ".txt" {
			tpl, err := pulse.LoadFile(input)
			if err != nil {
				log.Fatal(err)
			}
			p, err := display.Template(tpl, filepath.Base(input))
			if err != nil {
				log.Fatal(err)
			}
			if err := display.Save(*plotFile, p); err != nil {
				log.Fatal(err)
			}
			continue
		}

		h, err := hist2d.LoadFile(input)
		if err != nil {
			log.Fatal(err)
		}
		stack := h.StackAll()
		hb, err := display.StackH2D(stack)
		if err != nil {
			log.Fatal(err)
		}
		profile := stack.FitY(2)
		p, err := display.Hist2D(hb, filepath.Base(input), "time [ns]", "normalised amplitude", &profile)
		if err != nil {
			log.Fatal(err)
		}
		if err := display.Save(*plotFile, p); err != nil {
			log.Fatal(err)
		}
	}
	log.Println("plot saved as", *plotFile)
}
