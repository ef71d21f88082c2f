// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"

	"github.com/google/uuid"
	"github.com/proio-org/go-proio"
)

type Op interface {
	GetDescription() string
	Run(input <-chan *Event) <-chan *Event
}

type OpArray []Op

func (ops OpArray) Run(stream <-chan *Event) <-chan *Event {
	for _, o := range ops {
		stream = o.Run(stream)
	}
	return stream
}

func (ops OpArray) Sink(stream <-chan *Event) {
	for range ops.Run(stream) {
	}
}

func (ops OpArray) Description() string {
	var desc string
	for i, o := range ops {
		desc += strconv.Itoa(i) + ") "
		desc += o.GetDescription()
		if i < len(ops)-1 {
			desc += "\n"
		}
	}
	return desc
}

// Defaults for ops that leave Concurrency or MaxEventBuf unset. RunCmd
// overrides them from the command line.
var (
	DefaultConcurrency = 1
	DefaultMaxEventBuf = 200
)

var FlagSet = flag.NewFlagSet("", flag.ExitOnError)

var (
	outFile     = FlagSet.String("o", "", "file or url to save output events to (- for stdout)")
	compLevel   = FlagSet.Int("c", 1, "output compression level: 0 for uncompressed, 1 for LZ4 compression, 2 for GZIP compression, 3 for LZMA compression")
	readBufSize = FlagSet.Int("b", 10, "read buffer size in number of events")
	concurrency = FlagSet.Int("t", 1, "level of concurrency")
	maxEventBuf = FlagSet.Int("e", 200, "max event buffer for maintaining event order")
	bucketThres = FlagSet.Int("d", 0x10000, "bucket dump threshold in bytes")
	maxEvents   = FlagSet.Int("n", 0, "max number of events to read, 0 for all")
	loop        = FlagSet.Bool("l", false, "infinite loop over data")
	cpuProfile  = FlagSet.String("cpuprofile", "", "output file for cpu profiling")
	memProfile  = FlagSet.String("memprofile", "", "output file for memory profiling")
)

func (ops OpArray) RunCmdFlagParse() {
	if FlagSet.Parsed() {
		return
	}
	ParseFlags(ops.Description())
}

// ParseFlags parses the command line into FlagSet. Tools that need their
// own flags to build the ops call it first; RunCmd then skips parsing.
func ParseFlags(desc string) {
	FlagSet.Usage = func() {
		fmt.Fprintf(os.Stderr,
			`Usage: `+os.Args[0]+` [options] <proio-input-file>...

`+desc+`

options:
`,
		)
		FlagSet.PrintDefaults()
	}
	FlagSet.Parse(os.Args[1:])

	if FlagSet.NArg() < 1 {
		FlagSet.Usage()
		log.Fatal("Invalid arguments")
	}

	DefaultConcurrency = *concurrency
	DefaultMaxEventBuf = *maxEventBuf
}

// Input returns the decoded events of the files named on the command line.
func (ops OpArray) Input() <-chan *Event {
	return InputFiles(FlagSet.Args()...)
}

// InputFiles is ReadFiles with the read options of the command line.
func InputFiles(names ...string) <-chan *Event {
	return ReadFiles(context.Background(), names, *readBufSize, *maxEvents, *loop)
}

// ReadFiles decodes the events of each named file in turn. Events that
// fail to decode are logged and skipped. maxEvents <= 0 reads everything.
func ReadFiles(ctx context.Context, names []string, bufSize, maxEvents int, loop bool) <-chan *Event {
	if bufSize <= 0 {
		bufSize = 1
	}
	output := make(chan *Event, bufSize)

	go func() {
		defer close(output)

		nEvents := 0
		for {
			nPass := 0
			for _, name := range names {
				reader, err := OpenReader(ctx, name)
				if err != nil {
					log.Println(err)
					continue
				}

				for pe := range reader.ScanEvents(bufSize) {
					event, err := Decode(pe)
					if err != nil {
						log.Println(err)
						continue
					}
					output <- event
					nPass++
					nEvents++
					if maxEvents > 0 && nEvents >= maxEvents {
						reader.Close()
						return
					}
				}
				if reader.Err != nil && reader.Err != io.EOF {
					log.Println(reader.Err)
				}
				reader.Close()
			}

			if !loop || nPass == 0 {
				return
			}
		}
	}()

	return output
}

// OpenOutput opens the -o destination with the requested compression and
// tags it with a fresh run id.
func OpenOutput(ctx context.Context) (*proio.Writer, error) {
	writer, err := OpenWriter(ctx, *outFile)
	if err != nil {
		return nil, err
	}
	switch *compLevel {
	case 3:
		writer.SetCompression(proio.LZMA)
	case 2:
		writer.SetCompression(proio.GZIP)
	case 1:
		writer.SetCompression(proio.LZ4)
	default:
		writer.SetCompression(proio.UNCOMPRESSED)
	}
	writer.BucketDumpThres = *bucketThres
	writer.PushMetadata("digicam.RunID", []byte(uuid.New().String()))
	return writer, nil
}

// RunCmd runs the ops over the files named on the command line and writes
// the resulting events to -o.
func (ops OpArray) RunCmd() {
	ops.RunCmdFlagParse()

	ctx := context.Background()
	writer, err := OpenOutput(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer writer.Close()

	stopProfile := startProfiling()

	nWritten := 0
	for event := range ops.Run(ops.Input()) {
		if err := writer.Push(Encode(event)); err != nil {
			log.Println(err)
			break
		}
		nWritten++
	}
	log.Printf("wrote %v events", nWritten)

	stopProfile()
}

// SinkCmd runs the ops over the files named on the command line and
// discards the events.
func (ops OpArray) SinkCmd() {
	ops.RunCmdFlagParse()

	stopProfile := startProfiling()
	ops.Sink(ops.Input())
	stopProfile()
}

func startProfiling() func() {
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal("could not create cpu profile file: ", err)
		}
		pprof.StartCPUProfile(f)
	}

	return func() {
		if *cpuProfile != "" {
			pprof.StopCPUProfile()
		}

		if *memProfile != "" {
			f, err := os.Create(*memProfile)
			if err != nil {
				log.Fatal(err)
			}
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
			f.Close()
		}
	}
}
