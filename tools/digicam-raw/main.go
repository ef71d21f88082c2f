// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sst1m/digicampipe/calib"
	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/display"

	"gonum.org/v1/plot"
)

var (
	compute      = data.FlagSet.Bool("compute", false, "fill the raw data histograms of the proio inputs")
	show         = data.FlagSet.Bool("display", false, "plot the raw data histograms")
	rawFile      = data.FlagSet.String("hist", "raw_histo.rio", "raw data histogram file")
	baselineFile = data.FlagSet.String("baseline-hist", "", "on board baseline histogram file, not computed when empty")
	subtracted   = data.FlagSet.Bool("baseline-subtracted", false, "subtract the on board baseline from the samples")
	eventTypes   = data.FlagSet.String("event-types", "", "comma separated event types to histogram, all when empty")
	pixel        = data.FlagSet.Int("pixel", 0, "pixel drawn by -display")
	plotPrefix   = data.FlagSet.String("plot", "raw", "prefix of the images written by -display")
	nPixelsFlag  = data.FlagSet.Int("npixels", data.NPixels, "number of camera pixels")
)

const description = `Histograms the raw ADC samples of every pixel.
  -compute: inputs are R0 proio files
  -display: plots one pixel and the per pixel mean, and the difference with
            the on board baseline when -baseline-hist is set`

func main() {
	data.ParseFlags(description)

	if !*compute && !*show {
		data.FlagSet.Usage()
		log.Fatal("one of -compute or -display is needed")
	}
	for _, name := range []string{*rawFile, *baselineFile} {
		if name == "" {
			continue
		}
		if _, err := os.Stat(filepath.Dir(name)); err != nil {
			log.Fatalf("output path: %v", err)
		}
	}

	if *compute {
		types, err := parseEventTypes(*eventTypes)
		if err != nil {
			log.Fatal(err)
		}
		computeHistograms(types)
	}
	if *show {
		displayHistograms()
	}
}

func parseEventTypes(s string) ([]uint32, error) {
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	var types []uint32
	for _, field := range strings.Split(s, ",") {
		t, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("event types %q: %v", s, err)
		}
		types = append(types, uint32(t))
	}
	return types, nil
}

func computeHistograms(types []uint32) {
	raw := calib.NewRawHistogram(*nPixelsFlag, *subtracted, types)
	var baseline *calib.DigicamBaselineHistogram
	if *baselineFile != "" {
		baseline = calib.NewDigicamBaselineHistogram(*nPixelsFlag, types)
	}

	ops := data.OpArray{
		data.StreamOp{
			Description: "fill the raw data histograms",
			StreamProcessor: func(input <-chan *data.Event, output chan<- *data.Event) {
				for event := range input {
					if err := raw.Fill(event); err != nil {
						log.Fatal(err)
					}
					if baseline != nil {
						if err := baseline.Fill(event); err != nil {
							log.Fatal(err)
						}
					}
					output <- event
				}
			},
		},
	}
	ops.SinkCmd()

	if err := raw.Pixels.SaveFile(*rawFile); err != nil {
		log.Fatal(err)
	}
	log.Println("raw data histograms saved as", *rawFile)
	if baseline != nil {
		if err := baseline.Pixels.SaveFile(*baselineFile); err != nil {
			log.Fatal(err)
		}
		log.Println("on board baseline histograms saved as", *baselineFile)
	}
}

func save(suffix string, p *plot.Plot, err error) {
	if err != nil {
		log.Fatal(err)
	}
	name := *plotPrefix + "_" + suffix + ".png"
	if err := display.Save(name, p); err != nil {
		log.Fatal(err)
	}
	log.Println("plot saved as", name)
}

func displayHistograms() {
	raw, err := calib.LoadPixelHistogramsFile(*rawFile)
	if err != nil {
		log.Fatal(err)
	}
	if *pixel < 0 || *pixel >= len(raw) {
		log.Fatalf("pixel %d out of %d", *pixel, len(raw))
	}

	p, err := display.Histogram(raw[*pixel], fmt.Sprintf("pixel %d", *pixel), "[LSB]")
	save("pixel", p, err)
	mean := raw.Means()
	p, err = display.Values(mean, 100, "raw data", "mean value [LSB]")
	save("mean", p, err)

	if *baselineFile == "" {
		return
	}
	baseline, err := calib.LoadPixelHistogramsFile(*baselineFile)
	if err != nil {
		log.Fatal(err)
	}
	if len(baseline) != len(raw) {
		log.Fatalf("%d baseline histograms for %d pixels", len(baseline), len(raw))
	}
	p, err = display.Histogram(baseline[*pixel], fmt.Sprintf("pixel %d", *pixel), "DigiCam baseline [LSB]")
	save("baseline_pixel", p, err)

	meanBaseline := baseline.Means()
	p, err = display.Values(meanBaseline, 100, "DigiCam baseline", "mean DigiCam baseline [LSB]")
	save("baseline_mean", p, err)

	diff := make([]float64, len(mean))
	for i := range diff {
		diff[i] = meanBaseline[i] - mean[i]
	}
	p, err = display.Values(diff, 100, "DigiCam baseline - raw mean", "diff [LSB]")
	save("diff", p, err)
}
