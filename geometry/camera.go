// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

package geometry

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// DigiCam pixel pitch in mm
const DigiCamPitch = 24.3

// Camera is the fixed per-pixel position map used by the image stages.
// Positions are in mm in the camera frame.
type Camera struct {
	PixelID []int
	X, Y    []float64
}

func (c *Camera) NPixels() int {
	return len(c.X)
}

// Within returns a mask of pixels strictly closer than distance to (x, y).
// A NaN center selects nothing.
func (c *Camera) Within(x, y, distance float64) []bool {
	mask := make([]bool, len(c.X))
	for i := range c.X {
		d := math.Hypot(c.X[i]-x, c.Y[i]-y)
		mask[i] = d < distance
	}
	return mask
}

// WithinOfMax is Within centered on the pixel holding the largest image
// value.
func (c *Camera) WithinOfMax(image []float64, distance float64) []bool {
	iMax := -1
	for i, v := range image {
		if iMax < 0 || v > image[iMax] {
			iMax = i
		}
	}
	if iMax < 0 {
		return make([]bool, len(c.X))
	}
	return c.Within(c.X[iMax], c.Y[iMax], distance)
}

// Load reads a whitespace separated table of "pixel_id x y" rows. Empty
// lines and lines starting with # are skipped.
func Load(r io.Reader) (*Camera, error) {
	cam := &Camera{}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if len(text) == 0 || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("geometry line %d: expected 3 columns, got %d", line, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("geometry line %d: %v", line, err)
		}
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("geometry line %d: %v", line, err)
		}
		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("geometry line %d: %v", line, err)
		}

		cam.PixelID = append(cam.PixelID, id)
		cam.X = append(cam.X, x)
		cam.Y = append(cam.Y, y)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if cam.NPixels() == 0 {
		return nil, fmt.Errorf("geometry table is empty")
	}
	return cam, nil
}

func LoadFile(filename string) (*Camera, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}

var hexDirections = [6][2]int{{1, 0}, {0, 1}, {-1, 1}, {-1, 0}, {0, -1}, {1, -1}}

// Hexagonal lays out n pixels on a hexagonal lattice spiralling out of the
// origin. Pixel 0 sits at (0, 0).
func Hexagonal(n int, pitch float64) *Camera {
	cam := &Camera{
		PixelID: make([]int, 0, n),
		X:       make([]float64, 0, n),
		Y:       make([]float64, 0, n),
	}

	add := func(q, r int) {
		if len(cam.X) >= n {
			return
		}
		cam.PixelID = append(cam.PixelID, len(cam.X))
		cam.X = append(cam.X, pitch*(float64(q)+float64(r)/2))
		cam.Y = append(cam.Y, pitch*float64(r)*math.Sqrt(3)/2)
	}

	add(0, 0)
	for ring := 1; len(cam.X) < n; ring++ {
		q, r := 0, -ring
		for _, dir := range hexDirections {
			for step := 0; step < ring; step++ {
				add(q, r)
				q += dir[0]
				r += dir[1]
			}
		}
	}

	return cam
}

// NeighborDistance is slightly more than the smallest pixel spacing.
func NeighborDistance(c *Camera) float64 {
	if c.NPixels() < 2 {
		return 0
	}
	min := math.Inf(1)
	for i := range c.X {
		for j := i + 1; j < len(c.X); j++ {
			d := math.Hypot(c.X[i]-c.X[j], c.Y[i]-c.Y[j])
			if d > 0 && d < min {
				min = d
			}
		}
	}
	return 1.1 * min
}

// Neighbors lists for every pixel the other pixels closer than distance.
func (c *Camera) Neighbors(distance float64) [][]int {
	neighbors := make([][]int, len(c.X))
	for i := range c.X {
		for j := i + 1; j < len(c.X); j++ {
			if math.Hypot(c.X[i]-c.X[j], c.Y[i]-c.Y[j]) < distance {
				neighbors[i] = append(neighbors[i], j)
				neighbors[j] = append(neighbors[j], i)
			}
		}
	}
	return neighbors
}
