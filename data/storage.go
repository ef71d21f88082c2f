// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/proio-org/go-proio"
	"golang.org/x/net/websocket"
)

// CredentialsEnv names the environment variable holding the Google Cloud
// service account JSON used for gs:// resources.
const CredentialsEnv = "GCS_CREDENTIALS"

type RunObject struct {
	Name string
}

func isURL(name string) bool {
	return strings.Contains(name, "://")
}

func localPath(u *url.URL) string {
	return filepath.Clean(fmt.Sprintf("%v/%v", u.Host, strings.TrimLeft(u.Path, "/")))
}

// ListResourceRuns lists the proio files found under a file:// or gs://
// prefix.
func ListResourceRuns(ctx context.Context, urlString, credentials string) (runs []*RunObject, err error) {
	var thisUrl *url.URL
	thisUrl, err = url.Parse(urlString)
	if err != nil {
		return
	}

	switch thisUrl.Scheme {
	case "gs":
		runs, err = ListGcsRuns(
			ctx,
			thisUrl.Host,
			strings.TrimLeft(thisUrl.Path, "/"),
			[]byte(credentials),
		)
	case "file":
		var files []string
		files, err = filepath.Glob(localPath(thisUrl) + "/*.proio")
		for _, file := range files {
			runs = append(runs, &RunObject{Name: path.Base(file)})
		}
	default:
		err = errors.New("bad url scheme")
	}
	return
}

func GetReader(ctx context.Context, urlString, credentials string) (reader *proio.Reader, err error) {
	var thisUrl *url.URL
	thisUrl, err = url.Parse(urlString)
	if err != nil {
		return
	}

	switch thisUrl.Scheme {
	case "gs":
		reader, err = CreateGcsReader(
			ctx,
			thisUrl.Host,
			strings.TrimLeft(thisUrl.Path, "/"),
			[]byte(credentials),
		)
	case "file":
		reader, err = proio.Open(localPath(thisUrl))
	default:
		err = errors.New("bad url scheme")
	}
	return
}

func GetWriter(ctx context.Context, urlString, credentials string) (writer *proio.Writer, err error) {
	var thisUrl *url.URL
	thisUrl, err = url.Parse(urlString)
	if err != nil {
		return
	}

	switch thisUrl.Scheme {
	case "gs":
		writer, err = CreateGcsWriter(
			ctx,
			thisUrl.Host,
			strings.TrimLeft(thisUrl.Path, "/"),
			[]byte(credentials),
		)
	case "file":
		writer, err = proio.Create(localPath(thisUrl))
	case "ws", "wss":
		var conn *websocket.Conn
		conn, err = websocket.Dial(urlString, "", "http://localhost/")
		if err != nil {
			return
		}
		writer = proio.NewWriter(conn)
		writer.DeferUntilClose(conn.Close)
	default:
		err = errors.New("bad url scheme")
	}

	return
}

// OpenReader opens "-" (stdin), a resource URL or a plain file name.
func OpenReader(ctx context.Context, name string) (*proio.Reader, error) {
	switch {
	case name == "-":
		return proio.NewReader(bufio.NewReader(os.Stdin)), nil
	case isURL(name):
		return GetReader(ctx, name, os.Getenv(CredentialsEnv))
	default:
		return proio.Open(name)
	}
}

// OpenWriter opens "" or "-" (stdout), a resource URL or a plain file
// name.
func OpenWriter(ctx context.Context, name string) (*proio.Writer, error) {
	switch {
	case name == "" || name == "-":
		return proio.NewWriter(os.Stdout), nil
	case isURL(name):
		return GetWriter(ctx, name, os.Getenv(CredentialsEnv))
	default:
		return proio.Create(name)
	}
}

// OpenFile opens a plain file or a gs:// object for reading.
func OpenFile(ctx context.Context, name string) (io.ReadCloser, error) {
	if !isURL(name) {
		return os.Open(name)
	}

	u, err := url.Parse(name)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "gs":
		return OpenGcsObject(ctx, u.Host, strings.TrimLeft(u.Path, "/"), []byte(os.Getenv(CredentialsEnv)))
	case "file":
		return os.Open(localPath(u))
	}
	return nil, errors.New("bad url scheme")
}

// CreateFile creates a plain file or a gs:// object.
func CreateFile(ctx context.Context, name string) (io.WriteCloser, error) {
	if !isURL(name) {
		return os.Create(name)
	}

	u, err := url.Parse(name)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "gs":
		return CreateGcsObject(ctx, u.Host, strings.TrimLeft(u.Path, "/"), []byte(os.Getenv(CredentialsEnv)))
	case "file":
		return os.Create(localPath(u))
	}
	return nil, errors.New("bad url scheme")
}
