// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package ingress

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/live"
	"github.com/sst1m/digicampipe/live/message"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/proio-org/go-proio"
	"golang.org/x/net/websocket"
)

// StreamKey is the proio metadata key naming the stream of a camera
// connection.
const StreamKey = "Stream"

// ReadTimeout closes a camera connection that stopped sending.
var ReadTimeout = 10 * time.Second

// WsCollector is a Websocket ProIO data collector. Each camera connection
// is relayed over redis pub/sub to a stream handler running the monitor
// pipeline.
type WsCollector struct {
	Redis            *redis.Client
	Addr             string
	DefaultNamespace string
	Monitor          *live.Monitor
}

// StreamName is the StreamKey metadata, or a random name.
func StreamName(metadata map[string][]byte) string {
	if name, ok := metadata[StreamKey]; ok && len(name) > 0 {
		return string(name)
	}
	log.Println("falling back to random stream name")
	return uuid.New().String()[:8]
}

func (wsc *WsCollector) Collect(c *websocket.Conn) {
	log.Println("serving websocket data collector to", c.Request().RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := proio.NewReader(c)
	defer reader.Close()
	reader.Skip(0)
	input := reader.ScanEvents(1000)

	namespace := wsc.DefaultNamespace
	streamName := StreamName(reader.Metadata)
	chanString := message.IngressChannel(namespace, streamName)

	// if there is no stream data handler, create one
	if !hasSubscriber(wsc.Redis, chanString) {
		if err := wsc.makeNewDataHandler(ctx, namespace, streamName); err != nil {
			log.Println(err)
			return
		}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: wsc.Addr})
	defer redisClient.Close()
	writer := proio.NewWriter(&PubSubWriter{Redis: redisClient, Channel: chanString})
	defer writer.Close()
	writer.BucketDumpThres = 0x1
	writer.SetCompression(proio.UNCOMPRESSED)
	for key, value := range reader.Metadata {
		writer.PushMetadata(key, value)
	}
	log.Println("data collector starting writing to channel", chanString)
	defer log.Println("data collector done writing to channel", chanString)

	c.SetReadDeadline(time.Now().Add(ReadTimeout))
	for event := range input {
		if !hasSubscriber(wsc.Redis, chanString) {
			log.Printf("no stream handler for \"%s\"", chanString)
			break
		}

		writer.Push(event)

		c.SetReadDeadline(time.Now().Add(ReadTimeout))
	}
}

func hasSubscriber(client *redis.Client, channel string) bool {
	return client.PubSubNumSub(channel).Val()[channel] > 0
}

// decode turns the relayed proio events into pipeline events.
func decode(input <-chan *proio.Event) <-chan *data.Event {
	output := make(chan *data.Event, cap(input))
	go func() {
		defer close(output)
		for pe := range input {
			event, err := data.Decode(pe)
			if err != nil {
				log.Println(err)
				continue
			}
			output <- event
		}
	}()
	return output
}

func (wsc *WsCollector) makeNewDataHandler(ctx context.Context, namespace, streamName string) error {
	ops, err := live.BuildOpArray(namespace, streamName, wsc.Redis, wsc.Addr, wsc.Monitor)
	if err != nil {
		return err
	}

	chanString := message.IngressChannel(namespace, streamName)
	log.Println("subscribing new data handler to channel", chanString)

	redisClient := redis.NewClient(&redis.Options{Addr: wsc.Addr})
	pubSub := redisClient.Subscribe(chanString)
	if _, err := pubSub.Receive(); err != nil {
		redisClient.Close()
		return err
	}

	go func() {
		defer redisClient.Close()
		defer pubSub.Close()
		reader := proio.NewReader(
			&PubSubReader{
				Channel: pubSub.ChannelSize(1000),
				Ctx:     ctx,
			},
		)
		defer reader.Close()
		input := reader.ScanEvents(1000)

		// publish input buffer size
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				msg := message.NewMsg(message.StreamStatus)
				msg.Metadata["stream"] = streamName
				select {
				case <-ctx.Done():
					msg.Metadata["Buffer Size"] = "stream disconnected, wrapping up"
					message.PublishJsonMsg(redisClient, message.StreamChannel(namespace, streamName), msg)
					return
				case <-ticker.C:
					msg.Metadata["Buffer Size"] = fmt.Sprintf("%v", len(input))
					message.PublishJsonMsg(redisClient, message.StreamChannel(namespace, streamName), msg)
				}
			}
		}()

		ops.Sink(decode(input))

		log.Println("quitting subscriber goroutine on channel", chanString)
	}()

	return nil
}
