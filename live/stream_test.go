// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package live

import (
	"encoding/json"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sst1m/digicampipe/data"
	"github.com/sst1m/digicampipe/hillas"
	"github.com/sst1m/digicampipe/live/message"
	"github.com/sst1m/digicampipe/live/shows"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	return s, client
}

func subscribe(t *testing.T, client *redis.Client, channel string) <-chan *redis.Message {
	t.Helper()
	sub := client.Subscribe(channel)
	_, err := sub.Receive()
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })
	return sub.Channel()
}

// nextMsg returns the next message of the given type.
func nextMsg(t *testing.T, msgs <-chan *redis.Message, msgType string) *message.Msg {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case m := <-msgs:
			msg := &message.Msg{}
			require.NoError(t, json.Unmarshal([]byte(m.Payload), msg))
			if msg.Type == msgType {
				return msg
			}
		case <-timeout:
			t.Fatalf("no %q message", msgType)
			return nil
		}
	}
}

// ====================================================================
// StreamManager
// ====================================================================

func TestStreamManager_Shows(t *testing.T) {
	t.Parallel()
	s, client := testRedis(t)
	msgs := subscribe(t, client, message.StreamChannel("test", "cam"))

	m := &StreamManager{Namespace: "test", Name: "cam", Redis: client, Addr: s.Addr()}
	m.init()

	baseline := m.GetSourceInfo(BaselineSource)
	m.HandleXY(baseline, Normal, 0, 1)
	announce := nextMsg(t, msgs, message.SourceAnnounce)
	assert.Equal(t, BaselineSource, announce.Metadata["source"])
	assert.Equal(t, shows.TrendType, announce.Metadata["compat shows"])
	assert.Equal(t, "Normal", announce.Metadata["type"])

	m.execute(&message.Cmd{
		Command:  "new show",
		Metadata: map[string]string{"type": shows.TrendType, "source": BaselineSource, "period": "10000000"},
	})
	require.Len(t, m.showInfo, 1)
	require.Len(t, baseline.ShowIds, 1)
	trend := m.showInfo[baseline.ShowIds[0]].Show.(*shows.Trend)

	// the first frame is pushed as soon as the show starts
	frame := nextMsg(t, msgs, message.ShowFrame)
	assert.Equal(t, baseline.ShowIds[0].String(), frame.Metadata["show id"])
	assert.Equal(t, "cam", frame.Metadata["stream name"])

	for i := 1; i <= 3; i++ {
		m.HandleXY(baseline, Normal, float64(i), 100)
	}
	require.Eventually(t, func() bool {
		return len(trend.Points(BaselineSource)) == 3
	}, 5*time.Second, 10*time.Millisecond)

	// histogram samples do not reach a trend
	m.HandleXYW(baseline, Normal, 1, 1, 1)

	m.execute(&message.Cmd{
		Command:  "rm show",
		Metadata: map[string]string{"show id": baseline.ShowIds[0].String()},
	})
	assert.Empty(t, m.showInfo)
	assert.Empty(t, baseline.ShowIds)
	nextMsg(t, msgs, message.ShowClose)
}

func TestStreamManager_UnknownShow(t *testing.T) {
	t.Parallel()
	_, client := testRedis(t)

	m := &StreamManager{Namespace: "test", Name: "cam", Redis: client}
	m.init()
	m.execute(&message.Cmd{Command: "new show", Metadata: map[string]string{"type": "Projection", "source": "x"}})
	assert.Empty(t, m.showInfo)

	// mapping to an unknown show is a no-op
	m.execute(&message.Cmd{Command: "map source", Metadata: map[string]string{"source": "x", "show id": "nope"}})
	assert.Empty(t, m.GetSourceInfo("x").ShowIds)
}

func TestStreamManager_Manage(t *testing.T) {
	t.Parallel()
	s, client := testRedis(t)
	broadcast := subscribe(t, client, message.BroadcastChannel("test"))

	status := &Status{}
	m := &StreamManager{
		Namespace:       "test",
		Name:            "cam",
		Redis:           client,
		Addr:            s.Addr(),
		GenerateSources: (&DigicamSources{}).Generate,
		InitShows:       InitDigicamShows,
		Status:          status,
	}

	events := make([]*data.Event, 5)
	for i := range events {
		events[i] = data.NewEvent(uint64(i), 2, 4)
	}
	op := data.StreamOp{StreamProcessor: m.Manage}
	out := data.Collect(op.Run(data.Slice(events...)))
	require.Len(t, out, 5)

	assert.Equal(t, "cam", nextMsg(t, broadcast, message.StreamAnnounce).Metadata["name"])
	assert.Equal(t, "cam", nextMsg(t, broadcast, message.StreamClose).Metadata["name"])
	assert.Equal(t, "5", status.Get("Events"))

	for _, name := range []string{BaselineSource, NSBRateSource, EventRateSource, ShowerSizeSource} {
		assert.Equal(t, []ShowType{Trend}, m.GetSourceInfo(name).CompatShows, name)
	}
	assert.Equal(t, []ShowType{Hist2D}, m.GetSourceInfo(CoGSource).CompatShows)
}

// ====================================================================
// Sources
// ====================================================================

// mapRecorder maps a show with a buffered sample channel the test reads
// directly.
func mapRecorder(m *StreamManager, source string, show shows.Show) chan interface{} {
	ch := make(chan interface{}, 100)
	id := uuid.New()
	m.showInfo[id] = ShowInfo{Show: show, Cancel: func() {}, SampleChannel: ch}
	info := m.GetSourceInfo(source)
	info.ShowIds = append(info.ShowIds, id)
	return ch
}

func TestDigicamSources(t *testing.T) {
	t.Parallel()
	_, client := testRedis(t)

	m := &StreamManager{Namespace: "test", Name: "cam", Redis: client}
	m.init()
	rate := mapRecorder(m, EventRateSource, &shows.Trend{})
	nsb := mapRecorder(m, NSBRateSource, &shows.Trend{})
	cog := mapRecorder(m, CoGSource, &shows.Hist2D{})

	sources := &DigicamSources{RateWindow: 1e9}
	for i := 0; i <= 10; i++ {
		e := data.NewEvent(uint64(i), 2, 4)
		e.LocalClock = int64(i) * 1e8
		e.Level = data.LevelDL2
		e.R1.NSBRate = []float64{0.1, math.NaN()}
		e.DL2 = data.DL2{Computed: true, Shower: hillas.Moments{Valid: true, Size: 50, CenX: 3, CenY: -2}}
		sources.Generate(m, e)
	}

	require.Len(t, rate, 1)
	sample := (<-rate).(*shows.TrendSample)
	assert.Equal(t, EventRateSource, sample.LineName)
	assert.Equal(t, 1.0, sample.T)
	assert.InDelta(t, 11.0, sample.Y, 1e-9)

	require.Len(t, nsb, 11)
	assert.Equal(t, 0.1, (<-nsb).(*shows.TrendSample).Y)

	require.Len(t, cog, 11)
	assert.Equal(t, &shows.Hist2DSample{X: 3, Y: -2, Weight: 1}, <-cog)
}

// ====================================================================
// Status
// ====================================================================

func TestStatuses_ServeHTTP(t *testing.T) {
	t.Parallel()

	statuses := &Statuses{}
	st := statuses.Stream("cam")
	st.SetString("Events", "1")
	st.SetString("Run", "a.proio")
	st.SetString("Events", "2")
	assert.Same(t, st, statuses.Stream("cam"))

	w := httptest.NewRecorder()
	statuses.ServeHTTP(w, httptest.NewRequest("GET", "/cam", nil))
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `[{"Key":"Events","Value":"2"},{"Key":"Run","Value":"a.proio"}]`, w.Body.String())

	w = httptest.NewRecorder()
	statuses.ServeHTTP(w, httptest.NewRequest("GET", "/other", nil))
	assert.Equal(t, 404, w.Code)
}
