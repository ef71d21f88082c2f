// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sst1m/digicampipe/data"

	"github.com/google/uuid"
	"github.com/proio-org/go-proio"
)

var (
	outFile   = flag.String("o", "", "file to save output to")
	compLevel = flag.Int("c", 1, "output compression level: 0 for uncompressed, 1 for LZ4 compression, 2 for GZIP compression, 3 for LZMA compression")
)

func printUsage() {
	fmt.Fprintf(os.Stderr,
		`Usage: `+os.Args[0]+` [options] <input-file>

Converts a text dump of DigiCam waveforms into R0 proio events. Each event
is a "# event <id> <type> <clock ns> [trigger flag]" line followed by one
"<pixel id> <adc>..." line per pixel and an optional "# baseline" line.

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() != 1 {
		printUsage()
		log.Fatal("Invalid arguments")
	}

	var input *bufio.Reader
	filename := flag.Arg(0)
	if filename == "-" {
		input = bufio.NewReader(os.Stdin)
	} else {
		file, err := os.Open(filename)
		if err != nil {
			log.Fatal(err)
		}
		defer file.Close()
		input = bufio.NewReader(file)
	}

	var writer *proio.Writer
	var err error
	if *outFile == "" {
		writer = proio.NewWriter(os.Stdout)
	} else {
		writer, err = proio.Create(*outFile)
		if err != nil {
			log.Fatal(err)
		}
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
	writer.PushMetadata("digicam.RunID", []byte(uuid.New().String()))
	defer writer.Close()

	count := 0
	err = data.ScanText(input, func(e *data.Event) error {
		count++
		return writer.Push(data.Encode(e))
	})
	if err != nil {
		writer.Close()
		log.Fatal(err)
	}
	log.Printf("wrote %v events", count)
}
