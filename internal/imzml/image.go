// Copyright the m2converter authors, 2026. All rights reserved.

package imzml

import (
	"fmt"
	"sort"

	"github.com/m2aia/m2converter/pkg/types"
)

// Image extracts the ion image for one target m/z value. Each pixel is the
// sum of that spectrum's intensities within the ppm window around mz. A
// non-positive tolerance falls back to the value set with SetTolerance.
// Pixels without a recorded spectrum, and spectra with no peaks inside the
// window, stay at zero.
func (r *Reader) Image(mz, tolerancePPM float64) (*types.Image, error) {
	if mz <= 0 {
		return nil, fmt.Errorf("target m/z must be positive, got %g", mz)
	}
	if tolerancePPM <= 0 {
		tolerancePPM = r.tolerancePPM
	}

	window := mz * tolerancePPM * 1e-6
	lo, hi := mz-window, mz+window

	img := types.NewImage(r.width, r.height)
	for i := range r.spectra {
		s := &r.spectra[i]

		mzs, err := r.mzAxis(s)
		if err != nil {
			return nil, fmt.Errorf("pixel (%d, %d): %w", s.x+1, s.y+1, err)
		}

		// m/z axes are stored in ascending order; locate the window
		// bounds by binary search.
		first := sort.SearchFloat64s(mzs, lo)
		if first == len(mzs) || mzs[first] > hi {
			continue
		}

		ints, err := r.readArray(s.intensity)
		if err != nil {
			return nil, fmt.Errorf("pixel (%d, %d): %w", s.x+1, s.y+1, err)
		}
		if len(ints) != len(mzs) {
			return nil, fmt.Errorf("pixel (%d, %d): %d intensities for %d m/z values",
				s.x+1, s.y+1, len(ints), len(mzs))
		}

		var sum float64
		for j := first; j < len(mzs) && mzs[j] <= hi; j++ {
			sum += ints[j]
		}
		img.Set(s.x, s.y, float32(sum))
	}
	return img, nil
}

// mzAxis returns a spectrum's m/z array, serving the cached shared axis in
// continuous mode.
func (r *Reader) mzAxis(s *spectrum) ([]float64, error) {
	if r.continuous && r.sharedMZ != nil {
		return r.sharedMZ, nil
	}
	mzs, err := r.readArray(s.mz)
	if err != nil {
		return nil, err
	}
	if r.continuous {
		r.sharedMZ = mzs
	}
	return mzs, nil
}

// CentroidAxis returns the file's own peak list, usable as a target list for
// conversion. Only centroid files carry one.
func (r *Reader) CentroidAxis() ([]float64, error) {
	if !r.spectrumType.IsCentroid() {
		return nil, fmt.Errorf("file is not in centroid format (%s)", r.spectrumType)
	}
	mzs, err := r.mzAxis(&r.spectra[0])
	if err != nil {
		return nil, fmt.Errorf("extracting centroid axis: %w", err)
	}
	return mzs, nil
}

// MZRange returns the lowest and highest m/z recorded in the file.
func (r *Reader) MZRange() (lo, hi float64, err error) {
	for i := range r.spectra {
		mzs, err := r.mzAxis(&r.spectra[i])
		if err != nil {
			return 0, 0, err
		}
		if len(mzs) == 0 {
			continue
		}
		if lo == 0 && hi == 0 {
			lo, hi = mzs[0], mzs[len(mzs)-1]
			continue
		}
		if mzs[0] < lo {
			lo = mzs[0]
		}
		if mzs[len(mzs)-1] > hi {
			hi = mzs[len(mzs)-1]
		}
	}
	return lo, hi, nil
}

// TICs returns the total ion current of every spectrum, in file order.
func (r *Reader) TICs() ([]float64, error) {
	tics := make([]float64, len(r.spectra))
	for i := range r.spectra {
		ints, err := r.readArray(r.spectra[i].intensity)
		if err != nil {
			return nil, fmt.Errorf("spectrum %d: %w", i, err)
		}
		var sum float64
		for _, v := range ints {
			sum += v
		}
		tics[i] = sum
	}
	return tics, nil
}
