// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package ingress

import (
	"context"
	"io"
	"io/ioutil"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cam1", StreamName(map[string][]byte{StreamKey: []byte("cam1")}))
	assert.Len(t, StreamName(nil), 8)
}

func TestPubSubRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	sub := client.Subscribe("everyone ingress cam1")
	_, err = sub.Receive()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reader := &PubSubReader{Channel: sub.Channel(), Ctx: ctx}
	writer := &PubSubWriter{Redis: client, Channel: "everyone ingress cam1"}

	n, err := writer.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = writer.Write([]byte("camera"))
	require.NoError(t, err)

	// small reads span message boundaries
	buf := make([]byte, 4)
	var got []byte
	for len(got) < 12 {
		n, err := reader.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, "hello camera", string(got))

	cancel()
	rest, err := ioutil.ReadAll(reader)
	require.NoError(t, err)
	assert.Empty(t, rest)
	_, err = reader.Read(buf)
	assert.Equal(t, io.EOF, err)
	sub.Close()
}
