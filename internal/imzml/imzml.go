// Copyright the m2converter authors, 2026. All rights reserved.

// Package imzml reads imaging mass spectrometry data in the imzML format: an
// mzML-derived XML header describing per-pixel spectra, paired with a binary
// .ibd file holding the m/z and intensity arrays. The reader exposes the
// surface the conversion driver needs: the declared spectrum representation,
// the file's own centroid axis, and per-m/z ion image extraction within a
// ppm tolerance window.
package imzml

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/m2aia/m2converter/pkg/types"
)

// Controlled-vocabulary accessions from the PSI-MS and imaging MS ontologies.
const (
	accCentroidSpectrum = "MS:1000127"
	accProfileSpectrum  = "MS:1000128"
	accMZArray          = "MS:1000514"
	accIntensityArray   = "MS:1000515"
	accFloat32          = "MS:1000521"
	accInt32            = "MS:1000519"
	accInt64            = "MS:1000522"
	accFloat64          = "MS:1000523"
	accZlib             = "MS:1000574"
	accNoCompression    = "MS:1000576"

	accContinuous     = "IMS:1000030"
	accProcessed      = "IMS:1000031"
	accUUID           = "IMS:1000080"
	accMaxPixelsX     = "IMS:1000042"
	accMaxPixelsY     = "IMS:1000043"
	accPositionX      = "IMS:1000050"
	accPositionY      = "IMS:1000051"
	accExternalOffset = "IMS:1000102"
	accExternalLength = "IMS:1000103"
	accEncodedLength  = "IMS:1000104"
)

// ibdUUIDSize is the fixed-length identifier at the start of every .ibd file.
const ibdUUIDSize = 16

// Reader provides access to one imzML/ibd file pair. It is not safe for
// concurrent use; the conversion pipeline is strictly sequential.
type Reader struct {
	path    string
	ibdPath string
	ibd     *os.File

	spectrumType types.SpectrumType
	continuous   bool
	width        int
	height       int

	tolerancePPM float64

	spectra []spectrum

	// sharedMZ caches the m/z axis in continuous mode, where every
	// spectrum references the same array.
	sharedMZ []float64
}

// spectrum is one pixel's pair of external binary arrays. Positions are
// zero-based.
type spectrum struct {
	x, y      int
	mz        arrayRef
	intensity arrayRef
}

// Open parses the imzML header at path and opens the paired .ibd file. The
// binary file is located by replacing the input extension with .ibd.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening imzML file: %w", err)
	}
	defer f.Close()

	var doc xmlMzML
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing imzML header: %w", err)
	}

	r := &Reader{
		path:         path,
		ibdPath:      ibdPathFor(path),
		tolerancePPM: types.DefaultTolerancePPM,
	}

	if err := r.fromDocument(&doc); err != nil {
		return nil, err
	}

	ibd, err := os.Open(r.ibdPath)
	if err != nil {
		return nil, fmt.Errorf("opening ibd file: %w", err)
	}

	if declared := doc.fileContentValue(accUUID); declared != "" {
		if err := checkUUID(ibd, declared); err != nil {
			ibd.Close()
			return nil, err
		}
	}

	r.ibd = ibd
	return r, nil
}

// ibdPathFor swaps the input extension for .ibd, the convention pairing the
// two halves of an imzML dataset.
func ibdPathFor(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".ibd"
}

// checkUUID compares the identifier declared in the XML header against the
// first 16 bytes of the ibd file. A mismatch means the pair is inconsistent.
func checkUUID(ibd *os.File, declared string) error {
	buf := make([]byte, ibdUUIDSize)
	if _, err := ibd.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("reading ibd identifier: %w", err)
	}

	norm := strings.ToLower(declared)
	norm = strings.NewReplacer("{", "", "}", "", "-", "").Replace(norm)
	if norm != hex.EncodeToString(buf) {
		return fmt.Errorf("ibd identifier %s does not match declared %s",
			hex.EncodeToString(buf), declared)
	}
	return nil
}

// fromDocument populates the reader from the parsed XML header.
func (r *Reader) fromDocument(doc *xmlMzML) error {
	fc := doc.FileDescription.FileContent.CVParams

	switch {
	case hasParam(fc, accCentroidSpectrum):
		r.spectrumType = types.SpectrumCentroid
	case hasParam(fc, accProfileSpectrum):
		r.spectrumType = types.SpectrumProfile
	default:
		r.spectrumType = types.SpectrumUnknown
	}

	switch {
	case hasParam(fc, accContinuous):
		r.continuous = true
	case hasParam(fc, accProcessed):
		r.continuous = false
	default:
		return fmt.Errorf("file declares neither continuous nor processed binary mode")
	}

	for _, ss := range doc.ScanSettings {
		if v := paramValue(ss.CVParams, accMaxPixelsX); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parsing max count of pixels x: %w", err)
			}
			r.width = n
		}
		if v := paramValue(ss.CVParams, accMaxPixelsY); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parsing max count of pixels y: %w", err)
			}
			r.height = n
		}
	}

	groups := make(map[string][]xmlCVParam, len(doc.RefParamGroups))
	for _, g := range doc.RefParamGroups {
		groups[g.ID] = g.CVParams
	}

	if len(doc.Spectra) == 0 {
		return fmt.Errorf("file contains no spectra")
	}

	r.spectra = make([]spectrum, 0, len(doc.Spectra))
	for i, xs := range doc.Spectra {
		s, err := parseSpectrum(&xs, groups)
		if err != nil {
			return fmt.Errorf("spectrum %d: %w", i, err)
		}
		r.spectra = append(r.spectra, s)
	}

	// Acquisition geometry may be absent from scan settings; fall back to
	// the maximum recorded position.
	if r.width == 0 || r.height == 0 {
		for _, s := range r.spectra {
			if s.x+1 > r.width {
				r.width = s.x + 1
			}
			if s.y+1 > r.height {
				r.height = s.y + 1
			}
		}
	}

	for i, s := range r.spectra {
		if s.x < 0 || s.x >= r.width || s.y < 0 || s.y >= r.height {
			return fmt.Errorf("spectrum %d: position (%d, %d) outside %dx%d grid",
				i, s.x+1, s.y+1, r.width, r.height)
		}
	}
	return nil
}

// parseSpectrum extracts the pixel position and the two external array
// references from one <spectrum> element.
func parseSpectrum(xs *xmlSpectrum, groups map[string][]xmlCVParam) (spectrum, error) {
	s := spectrum{x: -1, y: -1}

	for _, scan := range xs.Scans {
		if v := paramValue(scan.CVParams, accPositionX); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return s, fmt.Errorf("parsing position x: %w", err)
			}
			s.x = n - 1 // positions are 1-based
		}
		if v := paramValue(scan.CVParams, accPositionY); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return s, fmt.Errorf("parsing position y: %w", err)
			}
			s.y = n - 1
		}
	}
	if s.x < 0 || s.y < 0 {
		return s, fmt.Errorf("missing pixel position")
	}

	var haveMZ, haveIntensity bool
	for _, arr := range xs.Arrays {
		merged := mergedParams(&arr, groups)
		ref, err := parseArrayRef(merged)
		if err != nil {
			return s, err
		}
		switch {
		case hasParam(merged, accMZArray):
			s.mz = ref
			haveMZ = true
		case hasParam(merged, accIntensityArray):
			s.intensity = ref
			haveIntensity = true
		}
	}
	if !haveMZ || !haveIntensity {
		return s, fmt.Errorf("missing m/z or intensity array")
	}
	return s, nil
}

// mergedParams combines an array's inline cvParams with those of any
// referenced param groups, the usual imzML layout.
func mergedParams(arr *xmlBinaryArray, groups map[string][]xmlCVParam) []xmlCVParam {
	merged := make([]xmlCVParam, 0, len(arr.CVParams)+4)
	for _, ref := range arr.RefGroups {
		merged = append(merged, groups[ref.Ref]...)
	}
	merged = append(merged, arr.CVParams...)
	return merged
}

// SpectrumType returns the representation declared in the file header.
func (r *Reader) SpectrumType() types.SpectrumType {
	return r.spectrumType
}

// Continuous reports whether all spectra share one m/z axis.
func (r *Reader) Continuous() bool {
	return r.continuous
}

// Size returns the pixel grid dimensions.
func (r *Reader) Size() (width, height int) {
	return r.width, r.height
}

// SpectrumCount returns the number of recorded spectra (acquired pixels).
func (r *Reader) SpectrumCount() int {
	return len(r.spectra)
}

// SetTolerance configures the default ppm matching window used when Image is
// called with a non-positive tolerance.
func (r *Reader) SetTolerance(ppm float64) {
	if ppm > 0 {
		r.tolerancePPM = ppm
	}
}

// Path returns the imzML file path the reader was opened from.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the ibd file handle.
func (r *Reader) Close() error {
	if r.ibd == nil {
		return nil
	}
	err := r.ibd.Close()
	r.ibd = nil
	return err
}
