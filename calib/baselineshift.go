// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package calib

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/sst1m/digicampipe/data"

	"gopkg.in/yaml.v2"
)

// LevelsError reports a number of DC levels that does not match the
// number of input files.
type LevelsError struct {
	Levels, Files int
}

func (e *LevelsError) Error() string {
	return fmt.Sprintf("%d DC levels for %d files", e.Levels, e.Files)
}

func CheckLevels(levels []int, files []string) error {
	if len(levels) != len(files) {
		return &LevelsError{Levels: len(levels), Files: len(files)}
	}
	return nil
}

// ShiftResults holds the baseline per LED DC level, indexed
// [level][pixel].
type ShiftResults struct {
	DCLevels      []int       `yaml:"dc_levels"`
	BaselineMean  [][]float64 `yaml:"baseline_mean"`
	BaselineStd   [][]float64 `yaml:"baseline_std"`
	BaselineShift [][]float64 `yaml:"baseline_shift,omitempty"`
	NSBRate       [][]float64 `yaml:"nsb_rate,omitempty"`
}

// AccumulateBaseline averages the on board baseline of every event of
// the stream, or the random trigger baseline for events without one.
func AccumulateBaseline(events <-chan *data.Event) *Stats {
	stats := &Stats{}
	for e := range events {
		if b := eventBaseline(e); b != nil {
			stats.Add(b)
		}
	}
	return stats
}

// Add appends one DC level.
func (r *ShiftResults) Add(level int, stats *Stats) error {
	if stats.N() == 0 {
		return fmt.Errorf("DC level %d: no event with a baseline", level)
	}
	r.DCLevels = append(r.DCLevels, level)
	r.BaselineMean = append(r.BaselineMean, stats.Mean())
	r.BaselineStd = append(r.BaselineStd, stats.Std())
	return nil
}

// Fit converts the shift of each level with respect to the first one into
// a background rate.
func (r *ShiftResults) Fit(gain, templateArea, crosstalk float64) error {
	if len(r.BaselineMean) == 0 {
		return fmt.Errorf("no DC level to fit")
	}

	ref := r.BaselineMean[0]
	r.BaselineShift = make([][]float64, len(r.BaselineMean))
	r.NSBRate = make([][]float64, len(r.BaselineMean))
	for i, mean := range r.BaselineMean {
		if len(mean) != len(ref) {
			return fmt.Errorf("DC level %d has %d pixels, first level %d", i, len(mean), len(ref))
		}
		shift := make([]float64, len(mean))
		rate := make([]float64, len(mean))
		for j := range mean {
			shift[j] = mean[j] - ref[j]
			rate[j] = shift[j] / gain / templateArea * (1 - crosstalk)
		}
		r.BaselineShift[i] = shift
		r.NSBRate[i] = rate
	}
	return nil
}

func (r *ShiftResults) Save(w io.Writer) error {
	b, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func LoadShiftResults(r io.Reader) (*ShiftResults, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	results := &ShiftResults{}
	if err := yaml.Unmarshal(b, results); err != nil {
		return nil, fmt.Errorf("baseline shift results: %v", err)
	}
	return results, nil
}

// PixelAverage is the mean over pixels of each level of values.
func PixelAverage(values [][]float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = nanMean(v)
	}
	return out
}
