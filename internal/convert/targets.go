// Copyright the m2converter authors, 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"io"
)

// ErrEmptyTargetList is returned when target resolution yields zero values,
// whatever the source.
var ErrEmptyTargetList = errors.New("no target m/z values found")

// ResolveTargets determines the m/z values to extract. An explicit list wins
// and is used verbatim at 32-bit precision; otherwise the source must be in
// centroid representation and its own axis is used. Progress goes to out.
func ResolveTargets(src Source, explicit []float64, out io.Writer) ([]float32, error) {
	var values []float64

	if len(explicit) > 0 {
		values = explicit
		fmt.Fprintf(out, "Using %d provided centroid values\n", len(values))
	} else {
		st := src.SpectrumType()
		if !st.IsCentroid() {
			return nil, fmt.Errorf("file is not in centroid format (%s): provide target values with --centroids", st)
		}
		axis, err := src.CentroidAxis()
		if err != nil {
			return nil, fmt.Errorf("extracting centroids from file (provide them with --centroids): %w", err)
		}
		values = axis
		fmt.Fprintf(out, "Using %d centroids from centroid imzML file\n", len(values))
	}

	if len(values) == 0 {
		return nil, ErrEmptyTargetList
	}

	targets := make([]float32, len(values))
	for i, v := range values {
		targets[i] = float32(v)
	}
	return targets, nil
}
