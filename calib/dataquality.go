// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"io"
	"math"

	"github.com/sst1m/digicampipe/data"

	"github.com/astrogo/fitsio"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Data quality defaults
const (
	DefaultTimeStep          = 5e9 // ns
	DefaultThresholdSamplePE = 20
	DefaultBurstEvents       = 100
	DefaultBurstThreshold    = 5 // LSB
	nBaselineBins            = 4096
)

// QualityWindow summarizes the events of one time window.
type QualityWindow struct {
	Time        float64 `fits:"time" json:"time"`                 // ns, center of the window
	TriggerRate float64 `fits:"trigger_rate" json:"trigger_rate"` // Hz
	ShowerRate  float64 `fits:"shower_rate" json:"shower_rate"`   // Hz
	Baseline    float64 `fits:"baseline" json:"baseline"`         // LSB, camera average
	NSBRate     float64 `fits:"nsb_rate" json:"nsb_rate"`         // GHz, camera average
	Burst       bool    `fits:"burst" json:"burst"`
}

// DataQuality tags bursts and showers and averages trigger rate, shower
// rate, baseline and background rate over time windows.
type DataQuality struct {
	TimeStep          float64 // ns
	ThresholdSamplePE float64
	BurstEvents       int
	BurstThreshold    float64 // LSB

	Params *Parameters
	// DarkBaseline selects the baseline shift method of the noise model.
	DarkBaseline []float64

	// OnWindow is called for every completed window.
	OnWindow func(QualityWindow)

	Windows   []QualityWindow
	Baselines *hbook.H1D

	noise    *NoiseModel
	previous []float64 // ring of camera average baselines
	iPrev    int

	initTime        int64
	count, nShowers int
	baselineSum     float64
	nEvents         int
}

func (dq *DataQuality) setDefaults() {
	if dq.TimeStep <= 0 {
		dq.TimeStep = DefaultTimeStep
	}
	if dq.ThresholdSamplePE <= 0 {
		dq.ThresholdSamplePE = DefaultThresholdSamplePE
	}
	if dq.BurstEvents <= 0 {
		dq.BurstEvents = DefaultBurstEvents
	}
	if dq.BurstThreshold <= 0 {
		dq.BurstThreshold = DefaultBurstThreshold
	}
	if dq.Baselines == nil {
		dq.Baselines = hbook.NewH1D(nBaselineBins, 0, nBaselineBins)
	}
	if dq.Params != nil {
		dq.noise = dq.Params.NoiseModel()
	}
}

func eventBaseline(e *data.Event) []float64 {
	if len(e.R0.DigicamBaseline) == e.NPixels() && e.NPixels() > 0 {
		return e.R0.DigicamBaseline
	}
	if len(e.R0.BaselineMean) == e.NPixels() {
		return e.R0.BaselineMean
	}
	return nil
}

// Tag sets the burst and shower flags of one event and returns its
// camera averaged baseline and background rate.
func (dq *DataQuality) Tag(e *data.Event) (baseline, nsb float64) {
	nsb = math.NaN()
	baselines := eventBaseline(e)
	if baselines == nil {
		return math.NaN(), nsb
	}
	baseline = stat.Mean(baselines, nil)

	// burst: baseline above the moving average of the previous events
	if len(dq.previous) == dq.BurstEvents {
		e.Burst = baseline-stat.Mean(dq.previous, nil) > dq.BurstThreshold
		dq.previous[dq.iPrev] = baseline
		dq.iPrev = (dq.iPrev + 1) % dq.BurstEvents
	} else {
		dq.previous = append(dq.previous, baseline)
	}

	if dq.noise == nil || len(dq.noise.Gain) != len(baselines) {
		return baseline, nsb
	}

	var rate, drop []float64
	switch {
	case dq.DarkBaseline != nil && len(dq.DarkBaseline) == len(baselines):
		rate, drop = dq.noise.FromDark(baselines, dq.DarkBaseline)
	case len(e.R0.BaselineStd) == len(baselines):
		rate, drop = dq.noise.FromStd(e.R0.BaselineStd)
	}
	if rate != nil {
		nsb = nanMean(rate)
	}

	// shower: any sample above threshold in p.e.
	for i, row := range e.R0.Samples {
		gain := dq.noise.Gain[i]
		if drop != nil && !math.IsNaN(drop[i]) {
			gain *= drop[i]
		}
		limit := baselines[i] + dq.ThresholdSamplePE*gain
		for _, adc := range row {
			if float64(adc) > limit {
				e.Shower = true
				break
			}
		}
		if e.Shower {
			break
		}
	}
	return baseline, nsb
}

func nanMean(x []float64) float64 {
	var sum float64
	n := 0
	for _, v := range x {
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

// Process is a data.StreamProcessor.
func (dq *DataQuality) Process(input <-chan *data.Event, output chan<- *data.Event) {
	dq.setDefaults()

	for event := range input {
		dq.Add(event)
		output <- event
	}
}

// Add tags one event and accounts for it in the current window.
func (dq *DataQuality) Add(e *data.Event) {
	if dq.Baselines == nil {
		dq.setDefaults()
	}

	baseline, nsb := dq.Tag(e)
	for _, b := range eventBaseline(e) {
		dq.Baselines.Fill(b, 1)
	}

	if dq.initTime == 0 {
		dq.initTime = e.LocalClock
	}
	dq.count++
	if !math.IsNaN(baseline) {
		dq.baselineSum += baseline
	}
	if e.Shower {
		dq.nShowers++
	}

	diff := float64(e.LocalClock - dq.initTime)
	if diff > dq.TimeStep && dq.nEvents > 0 {
		w := QualityWindow{
			Time:        float64(e.LocalClock+dq.initTime) / 2,
			TriggerRate: float64(dq.count) / diff * 1e9,
			ShowerRate:  float64(dq.nShowers) / diff * 1e9,
			Baseline:    dq.baselineSum / float64(dq.count),
			NSBRate:     nsb,
			Burst:       e.Burst,
		}
		dq.Windows = append(dq.Windows, w)
		if dq.OnWindow != nil {
			dq.OnWindow(w)
		}

		dq.initTime = 0
		dq.count = 0
		dq.nShowers = 0
		dq.baselineSum = 0
	}
	dq.nEvents++
}

// SaveQuality writes the baseline histogram as primary image followed by
// a binary table of the windows.
func SaveQuality(w io.Writer, windows []QualityWindow, baselines *hbook.H1D) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	counts := make([]float64, nBaselineBins)
	if baselines != nil {
		for i := 0; i < baselines.Len() && i < len(counts); i++ {
			_, counts[i] = baselines.XY(i)
		}
	}
	img := fitsio.NewImage(-64, []int{len(counts)})
	defer img.Close()
	if err := img.Write(&counts); err != nil {
		return fmt.Errorf("writing baseline histogram: %v", err)
	}
	if err := f.Write(img); err != nil {
		return err
	}

	tbl, err := fitsio.NewTableFrom("DATA_QUALITY", QualityWindow{}, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()
	for i := range windows {
		if err := tbl.Write(&windows[i]); err != nil {
			return fmt.Errorf("writing window %d: %v", i, err)
		}
	}
	return f.Write(tbl)
}

// LoadQuality reads back what SaveQuality wrote.
func LoadQuality(r io.Reader) (windows []QualityWindow, baselineCounts []float64, err error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	if len(f.HDUs()) < 2 {
		return nil, nil, fmt.Errorf("data quality file has %d HDUs", len(f.HDUs()))
	}

	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, nil, fmt.Errorf("first HDU is not an image")
	}
	n := 0
	if axes := img.Header().Axes(); len(axes) == 1 {
		n = axes[0]
	}
	baselineCounts = make([]float64, n)
	if err := img.Read(&baselineCounts); err != nil {
		return nil, nil, err
	}

	tbl, ok := f.HDU(1).(*fitsio.Table)
	if !ok {
		return nil, nil, fmt.Errorf("second HDU is not a table")
	}
	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var w QualityWindow
		if err := rows.Scan(&w); err != nil {
			return nil, nil, err
		}
		windows = append(windows, w)
	}
	return windows, baselineCounts, rows.Err()
}

// BaselineMode is the most populated baseline bin.
func BaselineMode(counts []float64) float64 {
	if len(counts) == 0 {
		return math.NaN()
	}
	return float64(floats.MaxIdx(counts)) + 0.5
}
