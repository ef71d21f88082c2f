// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package shows renders the live plots a monitor client subscribes to.
package shows

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sst1m/digicampipe/live/message"
)

// Show type names as requested by clients
const (
	TrendType  = "Trend"
	Hist2DType = "Histogram 2D"
)

type Show interface {
	message.Executer

	Frame() (*message.Msg, uint64)
	UpdateFrame()
	UpdateFrameCount()
	AddSample(interface{})
}

// New returns an initialized show of the named type, or nil.
func New(showType string, period time.Duration) Show {
	switch showType {
	case TrendType:
		s := &Trend{}
		s.FramePeriod = period
		s.InitPlot()
		return s
	case Hist2DType:
		s := &Hist2D{}
		s.FramePeriod = period
		s.InitPlot()
		return s
	}
	return nil
}

// framer holds the last rendered frame. A new frame is rendered on the
// first sample after FramePeriod has elapsed since the previous one.
type framer struct {
	FramePeriod time.Duration

	frame        *message.Msg
	frameCount   uint64
	frameExpired bool

	sync.RWMutex
}

func (f *framer) Frame() (*message.Msg, uint64) {
	f.RLock()
	defer f.RUnlock()

	return f.frame, f.frameCount
}

func (f *framer) UpdateFrameCount() {
	f.Lock()
	defer f.Unlock()
	f.frameCount++
}

// setFrame must be called with the lock held.
func (f *framer) setFrame(frame *message.Msg) {
	f.frame = frame
	f.frameCount++

	go func() {
		time.Sleep(f.FramePeriod)
		f.Lock()
		defer f.Unlock()
		f.frameExpired = true
	}()
}

// takeExpired must be called with the lock held.
func (f *framer) takeExpired() bool {
	if f.frameExpired {
		f.frameExpired = false
		return true
	}
	return false
}

func parseBool(value string) bool {
	return strings.ToLower(value) != "false"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
