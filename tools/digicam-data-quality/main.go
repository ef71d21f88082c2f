// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"github.com/sst1m/digicampipe/calib"
	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/display"
	"github.com/sst1m/digicampipe/live/message"

	"github.com/go-redis/redis"
	"go-hep.org/x/hep/hbook"
)

var (
	paramsFile   = data.FlagSet.String("params", "", "calibration parameters yaml")
	darkFile     = data.FlagSet.String("dark", "", "baseline shift results whose first DC level is the dark baseline")
	timeStep     = data.FlagSet.Float64("time-step", calib.DefaultTimeStep, "time window in ns within which values are computed")
	thresholdPE  = data.FlagSet.Float64("threshold-sample-pe", calib.DefaultThresholdSamplePE, "sample threshold in p.e. of the shower tag")
	outputFits   = data.FlagSet.String("output-fits", "data_quality.fits", "output FITS file")
	load         = data.FlagSet.Bool("load", false, "skip the analysis and plot the inputs, which are output FITS files")
	ratePlot     = data.FlagSet.String("rate-plot", "", "output plot of the trigger and shower rate history")
	baselinePlot = data.FlagSet.String("baseline-plot", "", "output plot of the baseline histogram")
	liveStream   = data.FlagSet.String("live", "", "publish every window as the status of this stream on REDIS_ADDR")
	namespace    = data.FlagSet.String("ns", "everyone", "live namespace")
)

const description = `Quick data quality check of DigiCam R0 proio files.
Tags bursts and showers and averages the trigger rate, shower rate,
baseline and NSB rate over time windows.`

func main() {
	data.ParseFlags(description)

	if *load {
		for _, input := range data.FlagSet.Args() {
			windows, counts := loadQuality(input)
			plotQuality(windows, countsH1D(counts))
		}
		return
	}

	params, err := calib.LoadFinalParameters(*paramsFile, data.NPixels)
	if err != nil {
		log.Fatal(err)
	}
	dark, err := calib.LoadDarkBaseline(*darkFile, data.NPixels)
	if err != nil {
		log.Fatal(err)
	}

	dq := &calib.DataQuality{
		TimeStep:          *timeStep,
		ThresholdSamplePE: *thresholdPE,
		Params:            params,
		DarkBaseline:      dark,
	}
	if *liveStream != "" {
		redisAddr := os.Getenv("REDIS_ADDR")
		if len(redisAddr) == 0 {
			log.Fatal("-live needs REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer client.Close()
		channel := message.StreamChannel(*namespace, *liveStream)
		dq.OnWindow = func(w calib.QualityWindow) {
			if err := publishWindow(client, channel, w); err != nil {
				log.Println(err)
			}
		}
	}

	baseline := &calib.Baseline{NEvents: calib.DefaultBaselineEvents}
	ops := data.OpArray{
		data.StreamOp{
			Description:     "compute the baseline from clocked triggers",
			StreamProcessor: baseline.Fill,
		},
		data.StreamOp{
			Description:     "tag bursts and showers per time window",
			StreamProcessor: dq.Process,
		},
	}
	ops.SinkCmd()

	f, err := os.Create(*outputFits)
	if err != nil {
		log.Fatal(err)
	}
	if err := calib.SaveQuality(f, dq.Windows, dq.Baselines); err != nil {
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	log.Printf("%v windows saved in %v", len(dq.Windows), *outputFits)

	plotQuality(dq.Windows, dq.Baselines)
}

func publishWindow(client *redis.Client, channel string, w calib.QualityWindow) error {
	payload, err := json.Marshal(w)
	if err != nil {
		return err
	}
	msg := message.NewMsg(message.StreamStatus)
	msg.Metadata["Trigger Rate"] = strconv.FormatFloat(w.TriggerRate, 'g', 4, 64)
	msg.Metadata["Shower Rate"] = strconv.FormatFloat(w.ShowerRate, 'g', 4, 64)
	msg.Metadata["Burst"] = strconv.FormatBool(w.Burst)
	msg.Payload = payload
	return message.PublishJsonMsg(client, channel, msg)
}

func loadQuality(filename string) ([]calib.QualityWindow, []float64) {
	f, err := os.Open(filename)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	windows, counts, err := calib.LoadQuality(f)
	if err != nil {
		log.Fatalf("%v: %v", filename, err)
	}
	log.Printf("%v: %v windows, baseline mode %v LSB", filename, len(windows), calib.BaselineMode(counts))
	return windows, counts
}

func countsH1D(counts []float64) *hbook.H1D {
	h := hbook.NewH1D(len(counts), 0, float64(len(counts)))
	for i, c := range counts {
		if c != 0 {
			h.Fill(float64(i)+0.5, c)
		}
	}
	return h
}

func plotQuality(windows []calib.QualityWindow, baselines *hbook.H1D) {
	if *ratePlot != "" {
		p, err := display.Quality(windows)
		if err != nil {
			log.Fatal(err)
		}
		if err := display.Save(*ratePlot, p); err != nil {
			log.Fatal(err)
		}
	}
	if *baselinePlot != "" {
		p, err := display.Baselines(baselines)
		if err != nil {
			log.Fatal(err)
		}
		if err := display.Save(*baselinePlot, p); err != nil {
			log.Fatal(err)
		}
	}
}
