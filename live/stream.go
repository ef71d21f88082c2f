// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package live

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/live/message"
	"github.com/sst1m/digicampipe/live/shows"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/proio-org/go-proio"
)

type ShowInfo struct {
	Show          shows.Show
	Cancel        context.CancelFunc
	SampleChannel chan<- interface{}
}

type ShowType int

const (
	Trend ShowType = iota
	Hist2D
)

func (t ShowType) String() string {
	switch t {
	case Trend:
		return shows.TrendType
	case Hist2D:
		return shows.Hist2DType
	}
	return "unknown"
}

type SourceType int

const (
	Normal SourceType = iota
	Advanced
)

func (t SourceType) String() string {
	if t == Advanced {
		return "Advanced"
	}
	return "Normal"
}

type SourceInfo struct {
	Name        string
	ShowIds     []uuid.UUID
	CompatShows []ShowType
	Type        SourceType
}

// StreamManager turns the events of one camera stream into show samples
// and executes the commands clients send to the stream. All of its state
// is owned by the Manage goroutine.
type StreamManager struct {
	Namespace       string
	Name            string
	Redis           *redis.Client
	Addr            string
	InitShows       func(*StreamManager)
	GenerateSources func(*StreamManager, *data.Event)
	// CleanupRunData is applied to the events of a run before they are
	// written.
	CleanupRunData []data.EventProcessor
	Status         *Status

	ctx context.Context

	showInfo   map[uuid.UUID]ShowInfo
	sourceInfo map[string]*SourceInfo

	runChannel  chan *proio.Event
	runCancel   context.CancelFunc

	doPubDesc bool
	nEvents   uint64
}

func (m *StreamManager) init() {
	if m.sourceInfo == nil {
		m.sourceInfo = make(map[string]*SourceInfo)
	}
	if m.showInfo == nil {
		m.showInfo = make(map[uuid.UUID]ShowInfo)
	}
	if m.Status == nil {
		m.Status = &Status{}
	}
	if m.ctx == nil {
		m.ctx = context.Background()
	}
}

// Manage is a data.StreamProcessor.
func (m *StreamManager) Manage(input <-chan *data.Event, output chan<- *data.Event) {
	var cancel context.CancelFunc
	m.ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	m.init()
	defer m.rmAllShows(&message.Cmd{})

	if m.InitShows != nil {
		m.InitShows(m)
	}

	cmds := message.ReceivePubSubCmds(m.ctx, m.Addr, message.CmdChannel(m.Namespace, m.Name))
	m.announce()
	defer m.closeStream()
	defer m.stopRun(&message.Cmd{})

	for {
		select {
		case event, ok := <-input:
			if !ok {
				return
			}
			m.handleEvent(event)
			output <- event
		case cmd, ok := <-cmds:
			if !ok {
				// command channel lost, keep processing data
				cmds = nil
				continue
			}
			// kill stops the live handling, events keep flowing
			if cmd.Command == "kill" {
				for event := range input {
					output <- event
				}
				return
			}
			m.execute(cmd)
		}
	}
}

func (m *StreamManager) handleEvent(event *data.Event) {
	m.nEvents++
	m.Status.SetString("Events", strconv.FormatUint(m.nEvents, 10))

	if m.doPubDesc {
		m.doPubDesc = false
		m.pubStatus("Description", m.describe(event))
	}

	if m.GenerateSources != nil {
		m.GenerateSources(m, event)
	}

	if m.runChannel != nil {
		for _, proc := range m.CleanupRunData {
			proc(event)
		}
		select {
		case m.runChannel <- data.Encode(event):
		default:
			log.Println("run writer behind, dropping event", event.ID)
		}
	}
}

func (m *StreamManager) describe(event *data.Event) string {
	if event.Proio != nil {
		if desc, ok := event.Proio.Metadata["Description"]; ok {
			return string(desc)
		}
	}
	return fmt.Sprintf("%d pixels, %d samples", event.NPixels(), event.NSamples())
}

func (m *StreamManager) GetSourceInfo(source string) *SourceInfo {
	m.init()
	sourceInfo := m.sourceInfo[source]
	if sourceInfo == nil {
		sourceInfo = &SourceInfo{Name: source}
		m.sourceInfo[source] = sourceInfo
	}
	return sourceInfo
}

func (m *StreamManager) register(sourceInfo *SourceInfo, t SourceType, compat ShowType) {
	sourceInfo.Type = t
	if sourceInfo.CompatShows == nil {
		sourceInfo.CompatShows = []ShowType{compat}
		m.listSource(sourceInfo.Name, sourceInfo)
	}
}

// send drops the sample when the show is behind.
func send(info ShowInfo, sample interface{}) {
	select {
	case info.SampleChannel <- sample:
	default:
	}
}

// HandleXY feeds a time series point, t in seconds, to the trend shows
// mapped to the source.
func (m *StreamManager) HandleXY(sourceInfo *SourceInfo, t SourceType, x, y float64) {
	if sourceInfo == nil {
		return
	}
	m.register(sourceInfo, t, Trend)

	for _, showId := range sourceInfo.ShowIds {
		info := m.showInfo[showId]
		if _, ok := info.Show.(*shows.Trend); ok {
			send(info, &shows.TrendSample{T: x, Y: y, LineName: sourceInfo.Name})
		}
	}
}

// HandleXYW feeds a weighted point to the 2D histogram shows mapped to the
// source.
func (m *StreamManager) HandleXYW(sourceInfo *SourceInfo, t SourceType, x, y, w float64) {
	if sourceInfo == nil {
		return
	}
	m.register(sourceInfo, t, Hist2D)

	for _, showId := range sourceInfo.ShowIds {
		info := m.showInfo[showId]
		if _, ok := info.Show.(*shows.Hist2D); ok {
			send(info, &shows.Hist2DSample{X: x, Y: y, Weight: w})
		}
	}
}

func (m *StreamManager) publish(msg *message.Msg) {
	if err := message.PublishJsonMsg(m.Redis, message.StreamChannel(m.Namespace, m.Name), msg); err != nil {
		log.Println(err)
	}
}

func (m *StreamManager) pubStatus(key, value string) {
	m.Status.SetString(key, value)

	msg := message.NewMsg(message.StreamStatus)
	msg.Metadata["stream"] = m.Name
	msg.Metadata[key] = value
	m.publish(msg)
}

func (m *StreamManager) announce() {
	msg := message.NewMsg(message.StreamAnnounce)
	msg.Metadata["name"] = m.Name
	if err := message.PublishJsonMsg(m.Redis, message.BroadcastChannel(m.Namespace), msg); err != nil {
		log.Println(err)
	}
}

func (m *StreamManager) closeStream() {
	msg := message.NewMsg(message.StreamClose)
	msg.Metadata["name"] = m.Name
	if err := message.PublishJsonMsg(m.Redis, message.BroadcastChannel(m.Namespace), msg); err != nil {
		log.Println(err)
	}
}

func (m *StreamManager) execute(cmd *message.Cmd) {
	log.Println("StreamManager:", cmd.Command)
	if cmd.Metadata == nil {
		cmd.Metadata = make(map[string]string)
	}

	switch cmd.Command {
	case "new show":
		m.newShow(cmd)
	case "map source":
		m.mapSource(cmd)
	case "rm show":
		m.rmShow(cmd)
	case "rm all shows":
		m.rmAllShows(cmd)
	case "show cmd":
		m.showCmd(cmd)
	case "pub all shows":
		m.pubAllShows(cmd)
	case "list all sources":
		m.listAllSources(cmd)
	case "start run":
		m.startRun(cmd)
	case "stop run":
		m.stopRun(cmd)
	case "pub desc":
		m.doPubDesc = true
	}
}

func (m *StreamManager) newShow(cmd *message.Cmd) {
	var period time.Duration
	if v, ok := cmd.Metadata["period"]; ok {
		if ns, err := strconv.Atoi(v); err == nil {
			period = time.Duration(ns)
		}
	}
	if period == 0 {
		period = 50 * time.Millisecond
	} else if period < 10*time.Millisecond {
		period = 10 * time.Millisecond
	}

	show := shows.New(cmd.Metadata["type"], period)
	if show == nil {
		log.Printf("unknown show type %q", cmd.Metadata["type"])
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	showId := uuid.New()
	idString := showId.String()
	channel := make(chan interface{}, 10000)
	m.showInfo[showId] = ShowInfo{
		Show:          show,
		Cancel:        cancel,
		SampleChannel: channel,
	}

	go func() {
		log.Println("starting show", idString, "frame pusher")
		defer log.Println("stopped show", idString, "frame pusher")
		defer func() {
			msg := message.NewMsg(message.ShowClose)
			msg.Metadata["stream"] = m.Name
			msg.Metadata["show id"] = idString
			m.publish(msg)
		}()

		show.UpdateFrame()

		var lastFrameCount uint64
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			frame, frameCount := show.Frame()
			if frameCount != lastFrameCount && frame != nil {
				frame.Type = message.ShowFrame
				frame.Metadata["show id"] = idString
				frame.Metadata["stream name"] = m.Name
				m.publish(frame)
				time.Sleep(period)
			} else {
				time.Sleep(time.Millisecond)
			}
			lastFrameCount = frameCount
		}
	}()

	go func() {
		log.Println("starting show", idString, "sample getter")
		defer log.Println("stopped show", idString, "sample getter")

		for {
			select {
			case <-ctx.Done():
				return
			case sample := <-channel:
				show.AddSample(sample)
			}
		}
	}()

	cmd.Metadata["show id"] = idString
	m.mapSource(cmd)

	cmd.Metadata["show cmd"] = "set params"
	m.showCmd(cmd)
}

func (m *StreamManager) mapSource(cmd *message.Cmd) {
	source := cmd.Metadata["source"]
	if len(source) == 0 {
		return
	}

	showId, err := uuid.Parse(cmd.Metadata["show id"])
	if err != nil {
		return
	}
	if _, ok := m.showInfo[showId]; !ok {
		return
	}

	for _, source := range strings.Split(source, ",") {
		sourceInfo := m.GetSourceInfo(strings.TrimSpace(source))

		mapped := false
		for _, thisId := range sourceInfo.ShowIds {
			if thisId == showId {
				mapped = true
				break
			}
		}
		if !mapped {
			sourceInfo.ShowIds = append(sourceInfo.ShowIds, showId)
		}
	}
}

func (m *StreamManager) rmShow(cmd *message.Cmd) {
	showId, err := uuid.Parse(cmd.Metadata["show id"])
	if err != nil {
		return
	}
	if info, ok := m.showInfo[showId]; ok {
		info.Cancel()
		delete(m.showInfo, showId)
	}

	for _, sourceInfo := range m.sourceInfo {
		list := sourceInfo.ShowIds
		tmp := list[:0]
		for i := range list {
			if list[i] != showId {
				tmp = append(tmp, list[i])
			}
		}
		sourceInfo.ShowIds = tmp
	}
}

func (m *StreamManager) rmAllShows(*message.Cmd) {
	for _, info := range m.showInfo {
		info.Cancel()
	}

	m.showInfo = make(map[uuid.UUID]ShowInfo)
	for _, sourceInfo := range m.sourceInfo {
		sourceInfo.ShowIds = nil
	}
}

func (m *StreamManager) showCmd(cmd *message.Cmd) {
	showId, err := uuid.Parse(cmd.Metadata["show id"])
	if err != nil {
		return
	}
	info, ok := m.showInfo[showId]
	if !ok {
		return
	}

	cmd.Command = cmd.Metadata["show cmd"]
	delete(cmd.Metadata, "show id")
	delete(cmd.Metadata, "show cmd")
	if err := info.Show.Execute(cmd); err != nil {
		log.Println(err)
	}
}

func (m *StreamManager) pubAllShows(*message.Cmd) {
	for _, info := range m.showInfo {
		info.Show.UpdateFrameCount()
	}
}

func (m *StreamManager) listAllSources(*message.Cmd) {
	for source, sourceInfo := range m.sourceInfo {
		m.listSource(source, sourceInfo)
	}
}

func (m *StreamManager) listSource(source string, sourceInfo *SourceInfo) {
	msg := message.NewMsg(message.SourceAnnounce)
	msg.Metadata["stream"] = m.Name
	msg.Metadata["source"] = source

	compat := make([]string, len(sourceInfo.CompatShows))
	for i, showType := range sourceInfo.CompatShows {
		compat[i] = showType.String()
	}
	msg.Metadata["compat shows"] = strings.Join(compat, ", ")
	msg.Metadata["type"] = sourceInfo.Type.String()

	m.publish(msg)
}

var RunDateFormat = "2006_Jan2_15_04_05_UTC"

// startRun records the calibrated events to <url>/<date>.proio until the
// run is stopped. The remaining command metadata is stored as file
// metadata.
func (m *StreamManager) startRun(cmd *message.Cmd) {
	m.stopRun(cmd)

	urlString := cmd.Metadata["url"] + "/" + time.Now().UTC().Format(RunDateFormat) + ".proio"
	thisUrl, err := url.Parse(urlString)
	if err != nil {
		log.Println(err)
		return
	}
	writer, err := data.GetWriter(m.ctx, urlString, cmd.Metadata["credentials"])
	if err != nil {
		log.Println(err)
		return
	}
	filename := strings.TrimLeft(thisUrl.Path, "/")
	log.Printf("starting run %v://%v/%v", thisUrl.Scheme, thisUrl.Host, filename)

	writer.SetCompression(proio.LZ4)
	delete(cmd.Metadata, "credentials")
	delete(cmd.Metadata, "url")
	for key, value := range cmd.Metadata {
		writer.PushMetadata(key, []byte(value))
	}

	m.pubStatus("Run", filename)

	runChannel := make(chan *proio.Event, 10000)
	m.runChannel = runChannel
	ctx, cancel := context.WithCancel(m.ctx)
	m.runCancel = cancel

	go func() {
		start := time.Now()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				msg := message.NewMsg(message.StreamStatus)
				msg.Metadata["stream"] = m.Name
				msg.Metadata["Run Time"] = fmt.Sprintf("%v", time.Since(start).Truncate(100*time.Millisecond))
				m.publish(msg)
			}
		}
	}()

	go func() {
		defer writer.Close()
		defer log.Printf("stopped run %v://%v/%v", thisUrl.Scheme, thisUrl.Host, filename)

		for event := range runChannel {
			if err := writer.Push(event); err != nil {
				log.Println(err)
			}
		}
	}()
}

func (m *StreamManager) stopRun(*message.Cmd) {
	if m.runChannel == nil {
		return
	}
	log.Println("stopping run")
	close(m.runChannel)
	m.runChannel = nil
	m.runCancel()
	m.pubStatus("Run", "")
}
