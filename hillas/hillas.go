// Copyright 2019 The digicampipe Authors
// Use of this source code is governed by the BSD 3-clause
// license that can be found in the LICENSE file.

// Package hillas computes second moment (Hillas) parameters of a cleaned
// camera image.
//
// For further reference on Hillas parameters see
// http://adsabs.harvard.edu/abs/1993ApJ...404..206R
package hillas

import (
	"fmt"
	"math"

	"github.com/sst1m/digicampipe/geometry"

	"gonum.org/v1/gonum/mat"
)

// MinPixels is the number of pixels with positive charge needed to form
// the second moments.
const MinPixels = 2

// Moments is the per-event shower description. When Valid is false the
// image could not be parameterized: every numeric field is NaN and Size,
// Skewness and Kurtosis are unavailable.
type Moments struct {
	Valid bool

	Size     float64
	CenX     float64
	CenY     float64
	Length   float64
	Width    float64
	R        float64
	Phi      float64
	Psi      float64
	Alpha    float64
	Miss     float64
	Skewness float64
	Kurtosis float64
}

// Failed is the record returned for images that cannot be parameterized.
func Failed() Moments {
	nan := math.NaN()
	return Moments{
		Size:     nan,
		CenX:     nan,
		CenY:     nan,
		Length:   nan,
		Width:    nan,
		R:        nan,
		Phi:      nan,
		Psi:      nan,
		Alpha:    nan,
		Miss:     nan,
		Skewness: nan,
		Kurtosis: nan,
	}
}

type ParameterizationError struct {
	Reason string
}

func (e *ParameterizationError) Error() string {
	return "hillas parameterization: " + e.Reason
}

// Source is the position, in the camera frame, that r, phi, alpha and
// miss are measured from.
type Source struct {
	X, Y float64
}

// Compute returns the moments of image or a *ParameterizationError
// together with the Failed record.
func Compute(cam *geometry.Camera, image []float64, src Source) (Moments, error) {
	if len(image) != cam.NPixels() {
		return Failed(), &ParameterizationError{
			Reason: fmt.Sprintf("image has %d pixels, geometry has %d", len(image), cam.NPixels()),
		}
	}

	var size float64
	nPositive := 0
	for _, q := range image {
		size += q
		if q > 0 {
			nPositive++
		}
	}
	if !(size > 0) {
		return Failed(), &ParameterizationError{Reason: fmt.Sprintf("size=%g", size)}
	}
	if nPositive < MinPixels {
		return Failed(), &ParameterizationError{
			Reason: fmt.Sprintf("%d pixels with signal, need %d", nPositive, MinPixels),
		}
	}

	var sumX, sumY float64
	for i, q := range image {
		sumX += q * cam.X[i]
		sumY += q * cam.Y[i]
	}
	cenX := sumX / size
	cenY := sumY / size

	var sxx, syy, sxy float64
	for i, q := range image {
		dx := cam.X[i] - cenX
		dy := cam.Y[i] - cenY
		sxx += q * dx * dx
		syy += q * dy * dy
		sxy += q * dx * dy
	}
	sxx /= size
	syy /= size
	sxy /= size

	var eig mat.EigenSym
	if ok := eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), true); !ok {
		return Failed(), &ParameterizationError{Reason: "covariance eigen decomposition failed"}
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	vecs.EigenvectorsSym(&eig)

	// eigenvalues come in ascending order
	width := math.Sqrt(math.Max(vals[0], 0))
	length := math.Sqrt(math.Max(vals[1], 0))
	if length == 0 {
		return Failed(), &ParameterizationError{Reason: "zero length"}
	}
	psi := math.Atan(vecs.At(1, 1) / vecs.At(0, 1))

	cosPsi, sinPsi := math.Cos(psi), math.Sin(psi)
	var m3, m4 float64
	for i, q := range image {
		l := (cam.X[i]-cenX)*cosPsi + (cam.Y[i]-cenY)*sinPsi
		l2 := l * l
		m3 += q * l2 * l
		m4 += q * l2 * l2
	}
	m3 /= size
	m4 /= size

	x := cenX - src.X
	y := cenY - src.Y
	r := math.Hypot(x, y)
	phi := math.Atan2(y, x)
	if r <= 1e-9*length {
		// centroid on the source: the direction is undefined, take the axis
		phi = psi
	}
	alpha := Alpha(phi, psi)

	return Moments{
		Valid:    true,
		Size:     size,
		CenX:     cenX,
		CenY:     cenY,
		Length:   length,
		Width:    width,
		R:        r,
		Phi:      phi,
		Psi:      psi,
		Alpha:    alpha,
		Miss:     Miss(r, alpha),
		Skewness: m3 / (length * length * length),
		Kurtosis: m4 / (length * length * length * length),
	}, nil
}

// Parameters is Compute with parameterization failures folded into the
// Failed record. It never returns an error.
func Parameters(cam *geometry.Camera, image []float64, src Source) Moments {
	m, err := Compute(cam, image, src)
	if err != nil {
		return Failed()
	}
	return m
}

// Alpha is the angle between the shower major axis and the line joining
// the centroid to the source, folded into [0, pi/2].
func Alpha(phi, psi float64) float64 {
	alpha := math.Mod(phi-psi, math.Pi)
	if alpha < 0 {
		alpha += math.Pi
	}
	return math.Min(math.Pi-alpha, alpha)
}

// Miss is the distance of the major axis to the source.
func Miss(r, alpha float64) float64 {
	return r * math.Sin(alpha)
}

// Arrival estimates source positions along the major axis with the
// Lessard disp method, one per xi (deg), using a plate scale of mmPerDeg.
func Arrival(m Moments, xis []float64, mmPerDeg float64) (x, y []float64) {
	x = make([]float64, len(xis))
	y = make([]float64, len(xis))
	elongation := 1 - m.Width/m.Length
	sign := 1.0
	if m.Skewness > 0 {
		sign = -1
	} else if m.Skewness == 0 || math.IsNaN(m.Skewness) {
		sign = 0
	}
	for i, xi := range xis {
		disp := sign * mmPerDeg * xi * elongation
		x[i] = m.CenX + disp*math.Cos(m.Psi)
		y[i] = m.CenY + disp*math.Sin(m.Psi)
	}
	return x, y
}
