// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"math"
	"net/http"
	"net/url"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/live"
	"github.com/sst1m/digicampipe/live/message"

	"github.com/go-redis/redis"
	"github.com/gorilla/websocket"
)

// DefaultNamespace is used when a handler lists no namespaces.
const DefaultNamespace = "everyone"

var nClients uint64

// ClientHandler relays the messages of the streams of Namespaces to a
// websocket client and forwards its commands. MaxNPR caps the rate of low
// priority messages (frames and status) per second.
type ClientHandler struct {
	Redis      *redis.Client
	Addr       string
	MaxNPR     float64
	Srv        *http.Server
	Namespaces []string
	Monitor    *live.Monitor

	websocket.Upgrader
}

func (h *ClientHandler) namespaces() []string {
	if len(h.Namespaces) == 0 {
		return []string{DefaultNamespace}
	}
	return h.Namespaces
}

func (h *ClientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	namespaces := h.namespaces()

	log.Println("starting client ws serve for", r.RemoteAddr, "with namespaces", namespaces)
	c, err := h.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	subClient := redis.NewClient(&redis.Options{Addr: h.Addr})
	var broadcasts []string
	for _, name := range namespaces {
		broadcasts = append(broadcasts, message.BroadcastChannel(name))
	}
	sub := subClient.Subscribe(broadcasts...)
	if _, err = sub.Receive(); err != nil {
		log.Println("PubSub.Receive():", err)
		subClient.Close()
		c.Close()
		return
	}
	broadcast := sub.ChannelSize(10)

	ctx, cancel := context.WithCancel(context.Background())
	resp := make(chan *message.Msg)

	go func() {
		defer cancel()
		defer c.Close()

		for cmd := range message.ReceiveWsCmds(ctx, c) {
			h.Execute(ctx, namespaces, cmd, resp, sub)
		}
	}()

	msgBufs := make(chan []byte, 100)
	priorityBufs := make(chan []byte, 10000)

	go func() {
		atomic.AddUint64(&nClients, 1)
		defer func() {
			log.Println("stopped client ws serve")
			time.Sleep(time.Second)
			atomic.AddUint64(&nClients, ^uint64(0))
			if h.Srv != nil && atomic.LoadUint64(&nClients) == 0 {
				log.Println("no clients, shutting down")
				h.Srv.Shutdown(context.Background())
			}
		}()
		defer subClient.Close()
		defer sub.Close()

		for {
			var buf []byte
			msg := &message.Msg{}
			select {
			case msg = <-resp:
				if msg == nil {
					continue
				}
				var err error
				if buf, err = json.Marshal(msg); err != nil {
					log.Println(err)
					continue
				}
			case redisMsg := <-broadcast:
				buf = []byte(redisMsg.Payload)
				if err := json.Unmarshal(buf, msg); err != nil {
					continue
				}
			case <-ctx.Done():
				return
			}

			channel := priorityBufs
			switch msg.Type {
			case message.ShowFrame, message.StreamStatus:
				channel = msgBufs
			}

			select {
			case channel <- buf:
			default:
			}
		}
	}()

	go func() {
		for {
			msg := systemStatus()

			select {
			case <-ctx.Done():
				return
			default:
				if buf, err := json.Marshal(msg); err == nil {
					priorityBufs <- buf
				}
			}
		}
	}()

	go func() {
		var npr float64
		last := time.Now()
		for {
			now := time.Now()
			alpha := now.Sub(last).Seconds()
			last = now
			if alpha > 1 {
				alpha = 1
			}
			npr *= 1 - alpha

			var buf []byte
			select {
			case buf = <-priorityBufs:
				// stale frames behind a priority message are dropped
				for len(msgBufs) > 0 {
					<-msgBufs
				}
			default:
				select {
				case buf = <-priorityBufs:
				case buf = <-msgBufs:
					if npr < h.MaxNPR {
						npr++
					} else {
						buf = nil
					}
				case <-ctx.Done():
					return
				}
			}

			if buf != nil {
				if err := c.WriteMessage(websocket.TextMessage, buf); err != nil {
					log.Println(err)
				}
			}
		}
	}()
}

// systemStatus samples the cpu usage over one second.
func systemStatus() *message.Msg {
	msg := message.NewMsg("system status")

	idle0, total0 := getCPUSample()
	time.Sleep(time.Second)
	idle1, total1 := getCPUSample()
	idleTicks := float64(idle1 - idle0)
	totalTicks := float64(total1 - total0)
	cpuUsage := (totalTicks - idleTicks) / totalTicks
	if !math.IsNaN(cpuUsage) {
		msg.Metadata["usage"] = fmt.Sprintf("%v", cpuUsage)
	}

	memStats := &runtime.MemStats{}
	runtime.ReadMemStats(memStats)
	msg.Metadata["mem alloc"] = fmt.Sprintf("%v", memStats.Alloc>>20)
	msg.Metadata["mem sys"] = fmt.Sprintf("%v", memStats.Sys>>20)
	return msg
}

func (h *ClientHandler) Execute(
	ctx context.Context,
	namespaces []string,
	cmd *message.Cmd,
	resp chan<- *message.Msg,
	sub *redis.PubSub,
) {
	log.Println("ClientHandler:", cmd.Command)

	switch cmd.Command {
	case "list streams":
		h.ListStreams(namespaces, cmd, resp)
	case "list show types":
		h.ListShowTypes(resp)
	case "stream cmd":
		h.StreamCmd(namespaces, cmd)
	case "stream sub":
		h.StreamSub(namespaces, cmd, sub, resp)
	case "stream unsub":
		h.StreamUnsub(namespaces, cmd, sub, resp)
	case "ls":
		h.ListResourceRuns(ctx, cmd, resp)
	case "get meta":
		h.GetRunMetadata(ctx, cmd, resp)
	case "play run":
		h.PlayRun(ctx, namespaces, cmd, resp)
	default:
		log.Printf("unknown command\n%v", cmd)
	}
}

// StreamNames lists the streams of a namespace currently taking commands.
func StreamNames(client *redis.Client, namespace string) []string {
	prefix := message.CmdChannel(namespace, "")
	var names []string
	for _, channel := range client.PubSubChannels(prefix + "*").Val() {
		names = append(names, strings.TrimPrefix(channel, prefix))
	}
	return names
}

func (h *ClientHandler) ListStreams(namespaces []string, cmd *message.Cmd, resp chan<- *message.Msg) {
	for _, namespace := range namespaces {
		for _, name := range StreamNames(h.Redis, namespace) {
			msg := message.NewMsg(message.StreamAnnounce)
			msg.Metadata["name"] = name
			resp <- msg
		}
	}
}

func (h *ClientHandler) ListShowTypes(resp chan<- *message.Msg) {
	msg := message.NewMsg("show types")
	msg.Metadata["types"] = strings.Join(live.ShowTypes, ", ")
	resp <- msg
}

func (h *ClientHandler) StreamCmd(namespaces []string, cmd *message.Cmd) {
	stream := cmd.Metadata["stream"]
	cmd.Command = cmd.Metadata["stream cmd"]
	delete(cmd.Metadata, "stream")
	delete(cmd.Metadata, "stream cmd")

	for _, namespace := range namespaces {
		if err := message.PublishCmd(h.Redis, message.CmdChannel(namespace, stream), cmd); err != nil {
			log.Println(err)
		}
	}
}

func (h *ClientHandler) StreamSub(namespaces []string, cmd *message.Cmd, sub *redis.PubSub, resp chan<- *message.Msg) {
	stream := cmd.Metadata["stream"]
	for _, namespace := range namespaces {
		channel := message.StreamChannel(namespace, stream)
		log.Println("sub to", channel)
		sub.Subscribe(channel)
	}

	msg := message.NewMsg("stream sub")
	msg.Metadata["stream"] = stream
	resp <- msg
}

func (h *ClientHandler) StreamUnsub(namespaces []string, cmd *message.Cmd, sub *redis.PubSub, resp chan<- *message.Msg) {
	stream := cmd.Metadata["stream"]
	for _, namespace := range namespaces {
		channel := message.StreamChannel(namespace, stream)
		log.Println("unsub from", channel)
		sub.Unsubscribe(channel)
	}

	msg := message.NewMsg("stream unsub")
	msg.Metadata["stream"] = stream
	resp <- msg
}

func (h *ClientHandler) ListResourceRuns(ctx context.Context, cmd *message.Cmd, resp chan<- *message.Msg) {
	go func() {
		msg := message.NewMsg("run list")
		msg.Metadata["name"] = cmd.Metadata["name"]
		msg.Metadata["status"] = "failure"
		msg.Metadata["url"] = cmd.Metadata["url"]
		defer func() { resp <- msg }()

		runs, err := data.ListResourceRuns(ctx, cmd.Metadata["url"], cmd.Metadata["credentials"])
		if err != nil {
			msg.Payload = []byte(err.Error())
			return
		}
		if msg.Payload, err = json.Marshal(runs); err != nil {
			msg.Payload = []byte(err.Error())
			return
		}

		msg.Metadata["status"] = "success"
	}()
}

func (h *ClientHandler) GetRunMetadata(ctx context.Context, cmd *message.Cmd, resp chan<- *message.Msg) {
	go func() {
		msg := message.NewMsg("run meta")
		msg.Metadata["status"] = "failure"
		msg.Metadata["url"] = cmd.Metadata["url"]
		defer func() { resp <- msg }()

		reader, err := data.GetReader(ctx, cmd.Metadata["url"], cmd.Metadata["credentials"])
		if err != nil {
			msg.Payload = []byte(err.Error())
			return
		}
		defer reader.Close()

		reader.Skip(0)
		if msg.Payload, err = json.Marshal(reader.Metadata); err != nil {
			msg.Payload = []byte(err.Error())
			return
		}

		msg.Metadata["status"] = "success"
	}()
}

// PlayRun replays a recorded run, in a loop, through the monitor pipeline
// as a stream named after the file.
func (h *ClientHandler) PlayRun(ctx context.Context, namespaces []string, cmd *message.Cmd, resp chan<- *message.Msg) {
	urlString := cmd.Metadata["url"]
	credentials := cmd.Metadata["credentials"]
	fail := func(err error) {
		msg := message.NewMsg("player failure")
		msg.Metadata["url"] = urlString
		msg.Payload = []byte(err.Error())
		resp <- msg
	}

	thisUrl, err := url.Parse(urlString)
	if err != nil {
		fail(err)
		return
	}
	speed := 1.0
	if v, err := strconv.ParseFloat(cmd.Metadata["speed"], 64); err == nil && v > 0 {
		speed = v
	}
	streamName := path.Base(thisUrl.Path)

	ops, err := live.BuildPlayer(namespaces[len(namespaces)-1], streamName, h.Redis, h.Addr, h.Monitor, speed)
	if err != nil {
		fail(err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	input := make(chan *data.Event)
	go func() {
		defer close(input)

		log.Println("player reader for", thisUrl, "started")
		defer log.Println("player reader for", thisUrl, "stopped")

		for {
			reader, err := data.GetReader(ctx, urlString, credentials)
			if err != nil {
				fail(err)
				return
			}
			for pe := range reader.ScanEvents(1000) {
				event, err := data.Decode(pe)
				if err != nil {
					continue
				}
				select {
				case input <- event:
				case <-ctx.Done():
					reader.Close()
					return
				}
			}
			reader.Close()
		}
	}()

	go func() {
		defer cancel()

		log.Println("player for", thisUrl, "started")
		defer log.Println("player for", thisUrl, "stopped")
		ops.Sink(input)
	}()
}

// CPU sampling for usage calculation
func getCPUSample() (idle, total uint64) {
	contents, err := ioutil.ReadFile("/proc/stat")
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(contents), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "cpu" {
			continue
		}
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				continue
			}
			total += val
			if i == 4 { // idle is the 5th field in the cpu line
				idle = val
			}
		}
		return
	}
	return
}
