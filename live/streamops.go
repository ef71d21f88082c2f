// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package live

import (
	"math"

	"github.com/sst1m/digicampipe/calib"
	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/geometry"
	"github.com/sst1m/digicampipe/live/shows"

	"github.com/go-redis/redis"
)

// Monitor is the calibration shared by every stream a monitor serves.
// Each stream gets its own pipeline state.
type Monitor struct {
	Camera   *geometry.Camera
	Params   *calib.Parameters
	Pipeline *calib.PipelineConfig
	Dark     []float64
	Statuses *Statuses
}

func (mon *Monitor) status(stream string) *Status {
	if mon.Statuses == nil {
		return &Status{}
	}
	return mon.Statuses.Stream(stream)
}

// BuildPlayer is BuildOpArray paced by the camera clock.
func BuildPlayer(namespace, stream string, client *redis.Client, addr string, mon *Monitor, speed float64) (data.OpArray, error) {
	ops, err := BuildOpArray(namespace, stream, client, addr, mon)
	if err != nil {
		return nil, err
	}
	player := &data.Player{Speed: speed}
	return append(
		data.OpArray{
			data.StreamOp{
				Description:     "play at camera clock pace",
				StreamProcessor: player.Play,
			},
		},
		ops...,
	), nil
}

// BuildOpArray is the calibration pipeline followed by the stream manager
// publishing the live sources.
func BuildOpArray(namespace, stream string, client *redis.Client, addr string, mon *Monitor) (data.OpArray, error) {
	ops, _, err := calib.BuildPipeline(mon.Camera, mon.Params, mon.Pipeline, mon.Dark)
	if err != nil {
		return nil, err
	}

	sources := &DigicamSources{}
	streamManager := &StreamManager{
		Namespace:       namespace,
		Name:            stream,
		Redis:           client,
		Addr:            addr,
		GenerateSources: sources.Generate,
		InitShows:       InitDigicamShows,
		CleanupRunData: []data.EventProcessor{
			data.StripWaveforms,
		},
		Status: mon.status(stream),
	}

	return append(ops, data.StreamOp{
		Description:     "publish live sources",
		StreamProcessor: streamManager.Manage,
		MaxEventBuf:     1000,
	}), nil
}

// Source names
const (
	BaselineSource    = "Baseline"
	NSBRateSource     = "NSB Rate"
	EventRateSource   = "Event Rate"
	ShowerSizeSource  = "Shower Size"
	WidthLengthSource = "Width vs Length"
	CoGSource         = "Shower CoG"
)

// InitDigicamShows lists the sources before the first event arrives.
func InitDigicamShows(m *StreamManager) {
	for _, name := range []string{BaselineSource, NSBRateSource, EventRateSource, ShowerSizeSource} {
		m.register(m.GetSourceInfo(name), Normal, Trend)
	}
	for _, name := range []string{WidthLengthSource, CoGSource} {
		m.register(m.GetSourceInfo(name), Normal, Hist2D)
	}
}

// DigicamSources derives the live sources of a calibrated event stream.
// The event rate is counted over RateWindow ns of camera clock.
type DigicamSources struct {
	RateWindow int64

	rateStart int64
	rateCount int
	started   bool
}

const DefaultRateWindow = 1e9

func pixelMean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func (s *DigicamSources) Generate(m *StreamManager, e *data.Event) {
	if s.RateWindow <= 0 {
		s.RateWindow = DefaultRateWindow
	}
	t := float64(e.LocalClock) / 1e9

	if !s.started || e.LocalClock < s.rateStart {
		s.started = true
		s.rateStart = e.LocalClock
		s.rateCount = 0
	}
	s.rateCount++
	if dt := e.LocalClock - s.rateStart; dt >= s.RateWindow {
		rate := float64(s.rateCount) / (float64(dt) / 1e9)
		m.HandleXY(m.GetSourceInfo(EventRateSource), Normal, t, rate)
		s.rateStart = e.LocalClock
		s.rateCount = 0
	}

	if e.R0.BaselineReady {
		m.HandleXY(m.GetSourceInfo(BaselineSource), Normal, t, pixelMean(e.R0.BaselineMean))
	}
	if e.Level >= data.LevelR1 {
		m.HandleXY(m.GetSourceInfo(NSBRateSource), Normal, t, pixelMean(e.R1.NSBRate))
	}
	if e.Level >= data.LevelDL2 && e.DL2.Shower.Valid {
		shower := e.DL2.Shower
		m.HandleXY(m.GetSourceInfo(ShowerSizeSource), Normal, t, shower.Size)
		m.HandleXYW(m.GetSourceInfo(WidthLengthSource), Normal, shower.Length, shower.Width, 1)
		m.HandleXYW(m.GetSourceInfo(CoGSource), Normal, shower.CenX, shower.CenY, 1)
	}
}

// ShowTypes are the shows a client can create.
var ShowTypes = []string{shows.TrendType, shows.Hist2DType}
