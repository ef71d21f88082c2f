// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package message carries the JSON messages and commands exchanged over
// redis pub/sub and websockets between camera streams and monitor clients.
package message

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis"
	"github.com/gorilla/websocket"
)

// Message types published by the stream handlers
const (
	StreamAnnounce = "stream announce"
	StreamClose    = "stream close"
	StreamStatus   = "stream status"
	SourceAnnounce = "source announce"
	ShowFrame      = "show frame"
	ShowClose      = "show close"
)

type Msg struct {
	Type     string
	Metadata map[string]string
	Payload  []byte
}

func NewMsg(msgType string) *Msg {
	return &Msg{
		Type:     msgType,
		Metadata: make(map[string]string),
	}
}

// BroadcastChannel carries stream announcements of a namespace.
func BroadcastChannel(namespace string) string {
	return namespace + " broadcast"
}

// StreamChannel carries the status, sources and frames of one stream.
func StreamChannel(namespace, stream string) string {
	return namespace + " stream " + stream
}

// CmdChannel carries the commands addressed to one stream.
func CmdChannel(namespace, stream string) string {
	return namespace + " stream cmd " + stream
}

// IngressChannel carries the raw proio bytes of one stream.
func IngressChannel(namespace, stream string) string {
	return namespace + " ingress " + stream
}

func PublishJsonMsg(client *redis.Client, channel string, msg *Msg) error {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.Publish(channel, string(msgBytes)).Err()
}

type Cmd struct {
	Command  string
	Metadata map[string]string
}

func PublishCmd(client *redis.Client, channel string, cmd *Cmd) error {
	cmdBytes, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return client.Publish(channel, string(cmdBytes)).Err()
}

type Executer interface {
	Execute(*Cmd) error
}

// ReceivePubSubCmds subscribes to channel until ctx is done. Payloads that
// are not commands are logged and dropped.
func ReceivePubSubCmds(ctx context.Context, addr, channel string) <-chan *Cmd {
	cmds := make(chan *Cmd)

	go func() {
		defer close(cmds)

		redisClient := redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()
		sub := redisClient.Subscribe(channel)
		if _, err := sub.Receive(); err != nil {
			log.Println("sub.Receive():", err)
			return
		}
		defer sub.Close()

		log.Println("listening for commands on channel", channel)
		defer log.Println("done listening for commands on channel", channel)

		msgs := sub.ChannelSize(10)
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				cmd := &Cmd{}
				if err := json.Unmarshal([]byte(msg.Payload), cmd); err != nil {
					log.Printf("bad command on %v: %v", channel, err)
					continue
				}
				if cmd.Metadata == nil {
					cmd.Metadata = make(map[string]string)
				}
				select {
				case cmds <- cmd:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return cmds
}

func ReceiveWsCmds(ctx context.Context, c *websocket.Conn) <-chan *Cmd {
	cmds := make(chan *Cmd)

	go func() {
		defer close(cmds)

		for {
			cmd := &Cmd{}
			if err := c.ReadJSON(cmd); err != nil {
				return
			}
			if cmd.Metadata == nil {
				cmd.Metadata = make(map[string]string)
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	return cmds
}
