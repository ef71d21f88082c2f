// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package ingress

import (
	"context"
	"io"

	"github.com/go-redis/redis"
)

// PubSubWriter is an io.Writer publishing each write as one message.
type PubSubWriter struct {
	Redis   *redis.Client
	Channel string
}

func (wrt *PubSubWriter) Write(p []byte) (int, error) {
	if err := wrt.Redis.Publish(wrt.Channel, string(p)).Err(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// PubSubReader is an io.Reader over the messages of a subscription. It
// returns io.EOF once the subscription or Ctx is closed.
type PubSubReader struct {
	Channel  <-chan *redis.Message
	Ctx      context.Context
	leftover []byte
}

func (rdr *PubSubReader) Read(p []byte) (int, error) {
	for len(rdr.leftover) == 0 {
		select {
		case msg, ok := <-rdr.Channel:
			if !ok || msg == nil {
				return 0, io.EOF
			}
			rdr.leftover = []byte(msg.Payload)
		case <-rdr.Ctx.Done():
			return 0, io.EOF
		}
	}

	n := copy(p, rdr.leftover)
	rdr.leftover = rdr.leftover[n:]
	return n, nil
}
