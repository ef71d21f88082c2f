// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sst1m/digicampipe/calib"
	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/display"
	"github.com/sst1m/digicampipe/pulse"
)

var (
	compute      = data.FlagSet.Bool("compute", false, "average the baseline of each input, one input per DC level")
	fit          = data.FlagSet.Bool("fit", false, "convert the baseline shifts into NSB rates")
	show         = data.FlagSet.Bool("display", false, "plot the NSB rate against the DC level")
	outputDir    = data.FlagSet.String("output", ".", "directory to store the results in")
	dcLevels     = data.FlagSet.String("dc-levels", "", "comma separated LED DC DAC level of each input")
	gain         = data.FlagSet.Float64("gain", calib.DefaultNominalGain, "integrated LSB per p.e.")
	crosstalk    = data.FlagSet.Float64("crosstalk", calib.DefaultCrosstalk, "optical crosstalk probability")
	templateFile = data.FlagSet.String("template", "", "pulse template whose area is used in the fit")
)

const (
	resultsName = "baseline_shift.yml"
	plotName    = "baseline_shift.png"
)

const description = `Measures the baseline shift induced by the LED DC level.
Inputs are R0 proio files, one per DC level.`

func main() {
	data.ParseFlags(description)

	if !*compute && !*fit && !*show {
		data.FlagSet.Usage()
		log.Fatal("one of -compute, -fit or -display is needed")
	}
	if fi, err := os.Stat(*outputDir); err != nil || !fi.IsDir() {
		log.Fatalf("path %v for output does not exist", *outputDir)
	}
	resultsFile := filepath.Join(*outputDir, resultsName)

	if *compute {
		levels, err := parseLevels(*dcLevels)
		if err != nil {
			log.Fatal(err)
		}
		files := data.FlagSet.Args()
		if err := calib.CheckLevels(levels, files); err != nil {
			log.Fatal(err)
		}

		results := &calib.ShiftResults{}
		for i, file := range files {
			stats := calib.AccumulateBaseline(data.InputFiles(file))
			if err := results.Add(levels[i], stats); err != nil {
				log.Fatal(err)
			}
			log.Printf("DC level %v: %v events from %v", levels[i], stats.N(), file)
		}
		if err := saveResults(resultsFile, results); err != nil {
			log.Fatal(err)
		}
	}

	if *fit {
		results := loadResults(resultsFile)
		area := calib.DefaultTemplateArea
		if *templateFile != "" {
			tpl, err := pulse.LoadFile(*templateFile)
			if err != nil {
				log.Fatal(err)
			}
			area = tpl.Integral()
		}
		if err := results.Fit(*gain, area, *crosstalk); err != nil {
			log.Fatal(err)
		}
		if err := saveResults(resultsFile, results); err != nil {
			log.Fatal(err)
		}
	}

	if *show {
		results := loadResults(resultsFile)
		p, err := display.BaselineShift(results)
		if err != nil {
			log.Fatal(err)
		}
		plotFile := filepath.Join(*outputDir, plotName)
		if err := display.Save(plotFile, p); err != nil {
			log.Fatal(err)
		}
		log.Println("plot saved as", plotFile)
	}
}

func parseLevels(text string) ([]int, error) {
	var levels []int
	for _, field := range strings.Split(text, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		level, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func saveResults(filename string, results *calib.ShiftResults) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := results.Save(f); err != nil {
		f.Close()
		return err
	}
	log.Println("results saved in", filename)
	return f.Close()
}

func loadResults(filename string) *calib.ShiftResults {
	f, err := os.Open(filename)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	results, err := calib.LoadShiftResults(f)
	if err != nil {
		log.Fatal(err)
	}
	return results
}
