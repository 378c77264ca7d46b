// Copyright the m2converter authors, 2026. All rights reserved.

// Package types defines the data structures shared between the imzML reader,
// the conversion driver, and the CLI.
package types

import "fmt"

// SpectrumType is the spectral representation an imzML file declares for its
// spectra.
type SpectrumType string

const (
	// SpectrumProfile marks continuous profile spectra.
	SpectrumProfile SpectrumType = "profile"

	// SpectrumCentroid marks peak-picked spectra reduced to discrete
	// (m/z, intensity) pairs.
	SpectrumCentroid SpectrumType = "centroid"

	// SpectrumUnknown is reported when the file declares neither representation.
	SpectrumUnknown SpectrumType = "unknown"
)

// IsCentroid reports whether the representation is peak-picked. Only centroid
// files carry a usable m/z axis for automatic target selection.
func (s SpectrumType) IsCentroid() bool {
	return s == SpectrumCentroid
}

// Image is a single-channel 2D ion intensity map in row-major order,
// Pix[y*Width+x]. Intensities are 32-bit floats, matching the on-disk
// precision of every output format.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// NewImage returns a zero-filled image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// At returns the intensity at pixel (x, y).
func (im *Image) At(x, y int) float32 {
	return im.Pix[y*im.Width+x]
}

// Set stores the intensity at pixel (x, y).
func (im *Image) Set(x, y int, v float32) {
	im.Pix[y*im.Width+x] = v
}

// Bounds returns the image dimensions as a printable string.
func (im *Image) Bounds() string {
	return fmt.Sprintf("%dx%d", im.Width, im.Height)
}
