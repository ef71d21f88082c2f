// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package pulse holds the normalised pulse template: the mean photo
// electron waveform of the camera, built from amplitude versus time
// histograms and stored as a plain text table.
package pulse

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/sst1m/digicampipe/hist2d"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// DefaultMinEntriesRatio is the fraction of the most populated time bin a
// bin needs to enter a template built from a histogram.
const DefaultMinEntriesRatio = 0.1

// Template is normalised so that its extremum is 1: the maximum, or the
// minimum for negative pulses.
type Template struct {
	Time         []float64 // ns
	Amplitude    []float64
	AmplitudeStd []float64

	amplitude, std *spline
}

// New normalises amplitude and std. A nil std means zero.
func New(time, amplitude, std []float64) (*Template, error) {
	if len(time) != len(amplitude) {
		return nil, fmt.Errorf("pulse template: %d times for %d amplitudes", len(time), len(amplitude))
	}
	if std == nil {
		std = make([]float64, len(amplitude))
	}
	if len(std) != len(amplitude) {
		return nil, fmt.Errorf("pulse template: %d stds for %d amplitudes", len(std), len(amplitude))
	}
	if len(time) < 2 {
		return nil, fmt.Errorf("pulse template: need at least 2 points, got %d", len(time))
	}
	for i := 1; i < len(time); i++ {
		if !(time[i] > time[i-1]) {
			return nil, fmt.Errorf("pulse template: times are not increasing at row %d", i)
		}
	}

	norm := floats.Max(amplitude)
	if min := floats.Min(amplitude); math.Abs(min) > math.Abs(norm) {
		norm = min
	}
	if norm == 0 || math.IsNaN(norm) {
		return nil, fmt.Errorf("pulse template: cannot normalise by %v", norm)
	}

	t := &Template{
		Time:         append([]float64(nil), time...),
		Amplitude:    make([]float64, len(amplitude)),
		AmplitudeStd: make([]float64, len(std)),
	}
	for i := range amplitude {
		t.Amplitude[i] = amplitude[i] / norm
		t.AmplitudeStd[i] = std[i] / math.Abs(norm)
	}

	t.amplitude = newSpline(t.Time, t.Amplitude, 0)
	t.std = newSpline(t.Time, t.AmplitudeStd, math.Inf(1))
	return t, nil
}

// Eval interpolates the template at time; it is zero outside the table.
func (t *Template) Eval(time float64) float64 {
	return t.amplitude.at(time)
}

// Std interpolates the amplitude spread; it is +Inf outside the table.
func (t *Template) Std(time float64) float64 {
	return t.std.at(time)
}

// Pulse is the template scaled by amplitude, shifted by t0 and on top of
// baseline.
func (t *Template) Pulse(time, amplitude, t0, baseline float64) float64 {
	return amplitude*t.Eval(time-t0) + baseline
}

// Integral is the area of the template in ns.
func (t *Template) Integral() float64 {
	return integrate.Trapezoidal(t.Time, t.Amplitude)
}

// SquaredIntegral is the area of the squared template in ns.
func (t *Template) SquaredIntegral() float64 {
	sq := make([]float64, len(t.Amplitude))
	floats.MulTo(sq, t.Amplitude, t.Amplitude)
	return integrate.Trapezoidal(t.Time, sq)
}

// ChargeAmplitudeRatio converts a charge integrated over integralWidth
// samples of dtSampling ns into a pulse amplitude. The template step must
// divide dtSampling.
func (t *Template) ChargeAmplitudeRatio(integralWidth int, dtSampling float64) (float64, error) {
	dt := t.Time[1] - t.Time[0]
	ratio := dtSampling / dt
	step := int(math.Round(ratio))
	if step < 1 || math.Abs(ratio-float64(step)) > 1e-9*ratio {
		return 0, fmt.Errorf("pulse template: cannot sample a %v ns template every %v ns", dt, dtSampling)
	}
	if integralWidth < 1 {
		return 0, fmt.Errorf("pulse template: bad integration width %d", integralWidth)
	}

	var y []float64
	for i := 0; i < len(t.Amplitude); i += step {
		y = append(y, t.Amplitude[i])
	}

	// full convolution with a box of integralWidth ones
	max := math.Inf(-1)
	for k := 0; k < len(y)+integralWidth-1; k++ {
		var sum float64
		for j := k - integralWidth + 1; j <= k; j++ {
			if j >= 0 && j < len(y) {
				sum += y[j]
			}
		}
		max = math.Max(max, sum)
	}
	return 1 / max, nil
}

// Save writes "time amplitude std" rows.
func (t *Template) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := range t.Time {
		if _, err := fmt.Fprintf(bw, "%.18e %.18e %.18e\n", t.Time[i], t.Amplitude[i], t.AmplitudeStd[i]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (t *Template) SaveFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := t.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ColumnsError reports a template table that is neither "time amplitude"
// nor "time amplitude std".
type ColumnsError struct {
	Line    int
	Columns int
}

func (e *ColumnsError) Error() string {
	return fmt.Sprintf("pulse template line %d: %d columns, expected 2 or 3", e.Line, e.Columns)
}

// Load reads a table of 2 or 3 whitespace separated columns. Lines
// starting with # are skipped.
func Load(r io.Reader) (*Template, error) {
	var time, amplitude, std []float64
	columns := 0

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if len(text) == 0 || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if columns == 0 {
			columns = len(fields)
		}
		if len(fields) != columns || columns < 2 || columns > 3 {
			return nil, &ColumnsError{Line: line, Columns: len(fields)}
		}

		values := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("pulse template line %d: %v", line, err)
			}
			values[i] = v
		}
		time = append(time, values[0])
		amplitude = append(amplitude, values[1])
		if columns == 3 {
			std = append(std, values[2])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return New(time, amplitude, std)
}

func LoadFile(filename string) (*Template, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

// FromStack fits the y profile of a stacked amplitude versus time
// histogram. Time bins with fewer than max(2, minEntriesRatio times the
// most populated bin) entries are left out.
func FromStack(s *hist2d.Stack, minEntriesRatio float64) (*Template, error) {
	minEntries := math.Max(2, minEntriesRatio*float64(s.MaxXEntries()))
	p := s.FitY(minEntries)
	return New(p.X, p.Mean, p.Std)
}

func FromHistogram(h *hist2d.Histogram2D, minEntriesRatio float64) (*Template, error) {
	return FromStack(h.StackAll(), minEntriesRatio)
}

// FromHistogramFiles stacks every histogram file before fitting. Counts
// are summed in 64 bits.
func FromHistogramFiles(filenames []string, minEntriesRatio float64) (*Template, error) {
	var sum *hist2d.Stack
	for _, filename := range filenames {
		h, err := hist2d.LoadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", filename, err)
		}
		if sum == nil {
			sum = h.StackAll()
			continue
		}
		if err := sum.Add(h.StackAll()); err != nil {
			return nil, fmt.Errorf("%s: %v", filename, err)
		}
	}
	if sum == nil {
		return nil, fmt.Errorf("pulse template: no histogram files")
	}
	return FromStack(sum, minEntriesRatio)
}
