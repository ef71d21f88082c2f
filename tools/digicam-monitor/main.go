// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/sst1m/digicampipe/calib"
	"github.com/sst1m/digicampipe/live"
	"github.com/sst1m/digicampipe/live/handlers/client"
	"github.com/sst1m/digicampipe/live/handlers/ingress"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/gorilla/mux"
	"github.com/sevlyar/go-daemon"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/net/websocket"
)

var (
	openBrowser  = flag.Bool("b", false, "open a browser window and connect to server")
	daemonize    = flag.Bool("d", false, "run the monitor as a daemon")
	cpuProfile   = flag.String("cpuprofile", "", "output file for cpu profiling")
	geometryFile = flag.String("geometry", "", "camera geometry table (default hexagonal DigiCam layout)")
	paramsFile   = flag.String("params", "", "calibration parameters yaml")
	configFile   = flag.String("config", "", "pipeline configuration yaml")
	darkFile     = flag.String("dark", "", "baseline shift results whose first DC level is the dark baseline")
	namespaces   = flag.String("ns", client.DefaultNamespace, "comma separated namespaces served to clients")
)

func printUsage() {
	fmt.Fprintf(os.Stderr,
		`Usage: `+os.Args[0]+` [options]

Web monitor of DigiCam event streams. Cameras push R0 proio events to
/ingress; browsers connect to / and follow the calibrated live sources.

environment:
  REDIS_ADDR   redis server (default in-process miniredis)
  PORT         http port (default 8080)
  MAX_NPR      max number of frames per second sent to a client
  SECURE_ONLY  redirect proxied http requests to https

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() != 0 {
		printUsage()
		log.Fatal("invalid arguments")
	}

	if *daemonize {
		ctxt := &daemon.Context{}
		d, err := ctxt.Reborn()
		if err != nil {
			log.Fatal("unable to daemonize monitor:", err)
		}
		if d != nil {
			return
		}
		defer ctxt.Release()
		log.Println("daemon started")
	}

	// Calibration shared by every stream
	mon, err := loadMonitor()
	if err != nil {
		log.Fatal(err)
	}

	// Define redis connection
	redisAddr := os.Getenv("REDIS_ADDR")
	if len(redisAddr) == 0 {
		s, err := miniredis.Run()
		if err != nil {
			log.Fatal("unable to start miniredis server:", err)
		}
		defer s.Close()
		redisAddr = s.Addr()
	}
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()
	ping := redisClient.Ping()
	if ping.Err() != nil {
		log.Fatalf("unable to ping redis server: %v\n", ping.Err())
	} else {
		log.Printf("successfully connected to redis server at %v with status %v\n", redisAddr, ping.String())
	}

	// Define handlers
	nsList := strings.Split(*namespaces, ",")
	clientHandler := &client.ClientHandler{
		Redis:      redisClient,
		Addr:       redisAddr,
		Namespaces: nsList,
		Monitor:    mon,
	}
	clientHandler.MaxNPR = float64(100)
	if len(os.Getenv("MAX_NPR")) > 0 {
		if max, err := strconv.ParseFloat(os.Getenv("MAX_NPR"), 64); err == nil {
			clientHandler.MaxNPR = max
		}
	}
	clientHandler.EnableCompression = true
	wsc := &ingress.WsCollector{
		Redis:            redisClient,
		Addr:             redisAddr,
		DefaultNamespace: nsList[0],
		Monitor:          mon,
	}
	ingressHandler := websocket.Handler(wsc.Collect)
	statusHandler := http.StripPrefix("/status", mon.Statuses)

	// Define http server and routes
	port := os.Getenv("PORT")
	if len(port) == 0 {
		port = "8080"
	}
	router := mux.NewRouter()
	router.Handle("/client", clientHandler)
	router.Handle("/ingress", ingressHandler)
	router.PathPrefix("/status/").Handler(statusHandler)
	router.PathPrefix("/webdata/").Handler(live.WebdataHandler("/webdata/"))
	router.PathPrefix("/").Handler(live.WebdataHandler("/"))

	srv := &http.Server{Addr: ":" + port, Handler: router}
	switch strings.ToLower(os.Getenv("SECURE_ONLY")) {
	case "true", "on":
		log.Println("Enabling HTTP proxy securing middleware")
		srv.Handler = Secure(router)
	}

	// Turn on cpu profiling if output file is specified
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal("could not create cpu profile file: ", err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Set up interrupt for nice quitting
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		srv.Shutdown(context.Background())
	}()

	// Open a browser window if flag is set
	if *openBrowser {
		// Instruct the clientHandler to shutdown the server when clients all
		// disconnect
		clientHandler.Srv = srv
		go func() {
			time.Sleep(10 * time.Millisecond)
			open.Run("http://localhost:" + port)
		}()
	}

	log.Println("http server started on :" + port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("ListenAndServe: ", err)
	}

	log.Println("successful quit")
}

func loadMonitor() (*live.Monitor, error) {
	cam, err := calib.LoadCamera(*geometryFile)
	if err != nil {
		return nil, err
	}
	params, err := calib.LoadFinalParameters(*paramsFile, cam.NPixels())
	if err != nil {
		return nil, err
	}
	config, err := calib.LoadPipeline(*configFile)
	if err != nil {
		return nil, err
	}
	dark, err := calib.LoadDarkBaseline(*darkFile, cam.NPixels())
	if err != nil {
		return nil, err
	}
	return &live.Monitor{
		Camera:   cam,
		Params:   params,
		Pipeline: config,
		Dark:     dark,
		Statuses: &live.Statuses{},
	}, nil
}

// Middleware for redirecting http requests that are behind an HTTP proxy to
// https
func Secure(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if strings.ToLower(r.Header.Get("x-forwarded-proto")) == "http" {
				target := "https://" + r.Host + r.URL.Path
				if len(r.URL.RawQuery) > 0 {
					target += "?" + r.URL.RawQuery
				}
				log.Printf("redirect to: %s", target)
				http.Redirect(w, r, target,
					http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r)
		},
	)
}
