// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/sst1m/digicampipe/calib"
	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/hillas"
	"github.com/sst1m/digicampipe/live"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
)

var (
	geometryFile = data.FlagSet.String("geometry", "", "camera geometry table (default hexagonal DigiCam layout)")
	paramsFile   = data.FlagSet.String("params", "", "calibration parameters yaml")
	configFile   = data.FlagSet.String("config", "", "pipeline configuration yaml")
	darkFile     = data.FlagSet.String("dark", "", "baseline shift results whose first DC level is the dark baseline")
	hillasFile   = data.FlagSet.String("hillas", "", "text file to write the Hillas parameters of each shower to")
	liveStream   = data.FlagSet.String("live", "", "publish the live sources under this stream name on REDIS_ADDR")
	namespace    = data.FlagSet.String("ns", "everyone", "live namespace")
	progress     = data.FlagSet.Int("p", 1000, "log progress every p events, 0 to disable")
)

const description = `Calibrates DigiCam R0 events up to the Hillas parameters (DL2).
Events without a shower are dropped unless min_shower_pe is 0.`

func main() {
	data.ParseFlags(description)

	cam, err := calib.LoadCamera(*geometryFile)
	if err != nil {
		log.Fatal(err)
	}
	params, err := calib.LoadFinalParameters(*paramsFile, cam.NPixels())
	if err != nil {
		log.Fatal(err)
	}
	config, err := calib.LoadPipeline(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	dark, err := calib.LoadDarkBaseline(*darkFile, cam.NPixels())
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("pipeline configuration:\n%v", config.AsYaml())

	var ops data.OpArray
	if *liveStream != "" {
		redisAddr := os.Getenv("REDIS_ADDR")
		if len(redisAddr) == 0 {
			s, err := miniredis.Run()
			if err != nil {
				log.Fatal("unable to start miniredis server:", err)
			}
			defer s.Close()
			redisAddr = s.Addr()
		}
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer client.Close()
		if err := client.Ping().Err(); err != nil {
			log.Fatalf("unable to ping redis server: %v\n", err)
		}

		mon := &live.Monitor{Camera: cam, Params: params, Pipeline: config, Dark: dark}
		ops, err = live.BuildOpArray(*namespace, *liveStream, client, redisAddr, mon)
	} else {
		ops, _, err = calib.BuildPipeline(cam, params, config, dark)
	}
	if err != nil {
		log.Fatal(err)
	}

	ops = append(ops, calib.FilterLevel(data.LevelDL2))

	if *hillasFile != "" {
		f, err := os.Create(*hillasFile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		w := hillas.NewTextWriter(f)
		defer w.Flush()

		ops = append(ops, data.StreamOp{
			Description: "write Hillas parameters to " + *hillasFile,
			StreamProcessor: func(input <-chan *data.Event, output chan<- *data.Event) {
				for event := range input {
					if err := w.Write(event.ID, event.LocalClock, event.DL2.Shower); err != nil {
						log.Fatal(err)
					}
					output <- event
				}
			},
		})
	}

	if *progress > 0 {
		ops = append(ops, data.StreamOp{
			Description:     "log progress",
			StreamProcessor: logProgress(*progress),
		})
	}

	ops.RunCmd()
}

func logProgress(every int) data.StreamProcessor {
	return func(input <-chan *data.Event, output chan<- *data.Event) {
		n := 0
		for event := range input {
			n++
			if n%every == 0 {
				log.Printf("%v showers, last event %v", n, event.ID)
			}
			output <- event
		}
	}
}
