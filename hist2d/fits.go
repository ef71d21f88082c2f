// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package hist2d

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/astrogo/fitsio"
)

// Save writes four image HDUs: the counts (NAXIS ny, nx, channels), the
// 2x2 range (NaN when the edges came from the data), the x edges and the
// y edges.
func (h *Histogram2D) Save(w io.Writer) error {
	if h.xEdges == nil {
		return fmt.Errorf("hist2d: cannot save a histogram without edges")
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	err = h.writeHDUs(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (h *Histogram2D) writeHDUs(f *fitsio.File) error {
	counts := make([]int32, len(h.counts))
	for i, v := range h.counts {
		counts[i] = int32(v)
	}
	if err := writeImage(f, 32, []int{h.ny, h.nx, h.nChannels}, &counts); err != nil {
		return fmt.Errorf("hist2d: writing counts: %v", err)
	}

	nan := math.NaN()
	rng := []float64{nan, nan, nan, nan}
	if h.rng != nil {
		rng = []float64{h.rng[0][0], h.rng[0][1], h.rng[1][0], h.rng[1][1]}
	}
	if err := writeImage(f, -64, []int{2, 2}, &rng); err != nil {
		return fmt.Errorf("hist2d: writing range: %v", err)
	}

	xEdges := append([]float64(nil), h.xEdges...)
	if err := writeImage(f, -64, []int{len(xEdges)}, &xEdges); err != nil {
		return fmt.Errorf("hist2d: writing x edges: %v", err)
	}
	yEdges := append([]float64(nil), h.yEdges...)
	if err := writeImage(f, -64, []int{len(yEdges)}, &yEdges); err != nil {
		return fmt.Errorf("hist2d: writing y edges: %v", err)
	}
	return nil
}

func writeImage(f *fitsio.File, bitpix int, axes []int, data interface{}) error {
	img := fitsio.NewImage(bitpix, axes)
	defer img.Close()

	if err := img.Write(data); err != nil {
		return err
	}
	return f.Write(img)
}

func (h *Histogram2D) SaveFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := h.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a histogram written by Save.
func Load(r io.Reader) (*Histogram2D, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if n := len(f.HDUs()); n != 4 {
		return nil, fmt.Errorf("hist2d: expected 4 HDUs, found %d", n)
	}

	counts, axes, err := readInt32(f, 0)
	if err != nil {
		return nil, fmt.Errorf("hist2d: reading counts: %v", err)
	}
	if len(axes) != 3 {
		return nil, fmt.Errorf("hist2d: counts have %d axes, expected 3", len(axes))
	}
	ny, nx, nChannels := axes[0], axes[1], axes[2]
	if nChannels <= 0 || nx <= 0 || ny <= 0 || len(counts) != nChannels*nx*ny {
		return nil, fmt.Errorf("hist2d: bad counts shape %v", axes)
	}

	rng, err := readFloat64(f, 1)
	if err != nil {
		return nil, fmt.Errorf("hist2d: reading range: %v", err)
	}
	if len(rng) != 4 {
		return nil, fmt.Errorf("hist2d: range has %d values, expected 4", len(rng))
	}
	xEdges, err := readFloat64(f, 2)
	if err != nil {
		return nil, fmt.Errorf("hist2d: reading x edges: %v", err)
	}
	yEdges, err := readFloat64(f, 3)
	if err != nil {
		return nil, fmt.Errorf("hist2d: reading y edges: %v", err)
	}
	if len(xEdges) != nx+1 {
		return nil, &ShapeError{What: "x edges", Got: len(xEdges), Want: nx + 1}
	}
	if len(yEdges) != ny+1 {
		return nil, &ShapeError{What: "y edges", Got: len(yEdges), Want: ny + 1}
	}

	h := New(nChannels, nx, ny, nil)
	for i, v := range counts {
		h.counts[i] = uint16(v)
	}
	if !math.IsNaN(rng[0]) {
		h.rng = &Range{{rng[0], rng[1]}, {rng[2], rng[3]}}
	}
	h.xEdges = xEdges
	h.yEdges = yEdges
	return h, nil
}

func LoadFile(filename string) (*Histogram2D, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

func image(f *fitsio.File, i int) (fitsio.Image, error) {
	img, ok := f.HDU(i).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("HDU %d is not an image", i)
	}
	return img, nil
}

// nPixels is the number of values of an image. fitsio reads into a slice
// of at least that capacity.
func nPixels(img fitsio.Image) int {
	axes := img.Header().Axes()
	if len(axes) == 0 {
		return 0
	}
	n := 1
	for _, dim := range axes {
		n *= dim
	}
	return n
}

func readInt32(f *fitsio.File, i int) ([]int32, []int, error) {
	img, err := image(f, i)
	if err != nil {
		return nil, nil, err
	}
	if bitpix := img.Header().Bitpix(); bitpix != 32 {
		return nil, nil, fmt.Errorf("BITPIX=%d, expected 32", bitpix)
	}
	v := make([]int32, nPixels(img))
	if err := img.Read(&v); err != nil {
		return nil, nil, err
	}
	return v, img.Header().Axes(), nil
}

func readFloat64(f *fitsio.File, i int) ([]float64, error) {
	img, err := image(f, i)
	if err != nil {
		return nil, err
	}
	if bitpix := img.Header().Bitpix(); bitpix != -64 {
		return nil, fmt.Errorf("BITPIX=%d, expected -64", bitpix)
	}
	v := make([]float64, nPixels(img))
	if err := img.Read(&v); err != nil {
		return nil, err
	}
	return v, nil
}
