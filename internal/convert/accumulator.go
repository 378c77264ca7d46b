// Copyright the m2converter authors, 2026. All rights reserved.

package convert

import (
	"fmt"

	"github.com/m2aia/m2converter/pkg/types"
)

// Accumulator collects ion images into one dense float32 block laid out in C
// order for the shape [height, width, targets]. The flattened 2D view
// [height*width, targets] is the same buffer under a different shape, so a
// reshape never copies.
type Accumulator struct {
	Width   int
	Height  int
	Targets int
	Data    []float32
}

// NewAccumulator returns a zero-filled accumulator. Targets that never get a
// slice written keep their zero fill at their own index.
func NewAccumulator(width, height, targets int) *Accumulator {
	return &Accumulator{
		Width:   width,
		Height:  height,
		Targets: targets,
		Data:    make([]float32, width*height*targets),
	}
}

// SetSlice copies img into the slice for target index t. The image must match
// the dimensions the accumulator was allocated with.
func (a *Accumulator) SetSlice(t int, img *types.Image) error {
	if t < 0 || t >= a.Targets {
		return fmt.Errorf("target index %d out of range [0, %d)", t, a.Targets)
	}
	if img.Width != a.Width || img.Height != a.Height {
		return fmt.Errorf("image is %s, accumulator expects %dx%d",
			img.Bounds(), a.Width, a.Height)
	}
	for p, v := range img.Pix {
		a.Data[p*a.Targets+t] = v
	}
	return nil
}

// At returns the stored intensity for pixel (x, y) and target index t.
func (a *Accumulator) At(x, y, t int) float32 {
	return a.Data[(y*a.Width+x)*a.Targets+t]
}

// SpatialShape is the 3D [height, width, targets] shape.
func (a *Accumulator) SpatialShape() []int {
	return []int{a.Height, a.Width, a.Targets}
}

// ListShape is the flattened 2D [pixels, targets] shape.
func (a *Accumulator) ListShape() []int {
	return []int{a.Height * a.Width, a.Targets}
}

// SizeMB is the buffer size in megabytes, for run reports.
func (a *Accumulator) SizeMB() float64 {
	return float64(len(a.Data)*4) / (1024 * 1024)
}
