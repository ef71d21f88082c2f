// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package data

import (
	"context"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/proio-org/go-proio"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func ListGcsRuns(ctx context.Context, bucket, prefix string, credentials []byte) ([]*RunObject, error) {
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		prefix += "/"
	}

	client, err := storage.NewClient(
		ctx,
		option.WithCredentialsJSON(credentials),
	)
	if err != nil {
		return nil, err
	}

	var runList []*RunObject

	bucketHandle := client.Bucket(bucket)
	it := bucketHandle.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		objAttrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if !strings.HasSuffix(objAttrs.Name, ".proio") {
			continue
		}
		runList = append(runList, &RunObject{Name: path.Base(objAttrs.Name)})
	}

	return runList, nil
}

type gcsObjectReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsObjectReader) Close() error {
	err := r.Reader.Close()
	r.client.Close()
	return err
}

type gcsObjectWriter struct {
	*storage.Writer
	client *storage.Client
}

func (w *gcsObjectWriter) Close() error {
	err := w.Writer.Close()
	w.client.Close()
	return err
}

// OpenGcsObject opens an object for reading. Closing the reader releases
// the client.
func OpenGcsObject(ctx context.Context, bucket, name string, credentials []byte) (io.ReadCloser, error) {
	client, err := storage.NewClient(
		ctx,
		option.WithCredentialsJSON(credentials),
	)
	if err != nil {
		return nil, err
	}

	objectReader, err := client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &gcsObjectReader{Reader: objectReader, client: client}, nil
}

// CreateGcsObject opens an object for writing. The object is committed
// on Close.
func CreateGcsObject(ctx context.Context, bucket, name string, credentials []byte) (io.WriteCloser, error) {
	client, err := storage.NewClient(
		ctx,
		option.WithCredentialsJSON(credentials),
	)
	if err != nil {
		return nil, err
	}

	objectWriter := client.Bucket(bucket).Object(name).NewWriter(ctx)
	objectWriter.ContentType = "application/octet-stream"
	return &gcsObjectWriter{Writer: objectWriter, client: client}, nil
}

func CreateGcsReader(ctx context.Context, bucket, name string, credentials []byte) (*proio.Reader, error) {
	objectReader, err := OpenGcsObject(ctx, bucket, name, credentials)
	if err != nil {
		return nil, err
	}
	proioReader := proio.NewReader(objectReader)
	proioReader.DeferUntilClose(func() { objectReader.Close() })
	return proioReader, nil
}

func CreateGcsWriter(ctx context.Context, bucket, name string, credentials []byte) (*proio.Writer, error) {
	objectWriter, err := CreateGcsObject(ctx, bucket, name, credentials)
	if err != nil {
		return nil, err
	}
	proioWriter := proio.NewWriter(objectWriter)
	proioWriter.DeferUntilClose(objectWriter.Close)
	return proioWriter, nil
}
