// Copyright the m2converter authors, 2026. All rights reserved.

package imzml

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m2aia/m2converter/pkg/types"
)

// fixtureUUID is the identifier shared by the test XML headers and ibd files.
var fixtureUUID = [16]byte{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
}

// pixelSpec is one synthetic spectrum: a 1-based position with its peak list.
type pixelSpec struct {
	x, y int
	mzs  []float64
	ints []float32
}

// fixtureOpts controls how the synthetic imzML/ibd pair is written.
type fixtureOpts struct {
	profile          bool // default: centroid
	processed        bool // default: continuous
	compress         bool // zlib-compress the external arrays
	omitUUID         bool
	omitScanSettings bool
	ibdUUID          [16]byte
	gridW, gridH     int
}

// fourPixels is the standard 2x2 grid: target 100 yields [1 2; 3 4] and
// target 200 yields [10 20; 30 40].
func fourPixels() []pixelSpec {
	return []pixelSpec{
		{x: 1, y: 1, mzs: []float64{100, 200}, ints: []float32{1, 10}},
		{x: 2, y: 1, mzs: []float64{100, 200}, ints: []float32{2, 20}},
		{x: 1, y: 2, mzs: []float64{100, 200}, ints: []float32{3, 30}},
		{x: 2, y: 2, mzs: []float64{100, 200}, ints: []float32{4, 40}},
	}
}

func defaultOpts() fixtureOpts {
	return fixtureOpts{ibdUUID: fixtureUUID, gridW: 2, gridH: 2}
}

// arrayLoc records where one external array landed in the ibd buffer.
type arrayLoc struct {
	offset  int64
	length  int
	encoded int64
}

// writeFixture writes a paired <stem>.imzML and <stem>.ibd under dir and
// returns the imzML path.
func writeFixture(t *testing.T, dir, stem string, opts fixtureOpts, pixels []pixelSpec) string {
	t.Helper()

	var ibd bytes.Buffer
	ibd.Write(opts.ibdUUID[:])

	add := func(raw []byte, length int) arrayLoc {
		data := raw
		if opts.compress {
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			zw.Write(raw)
			zw.Close()
			data = z.Bytes()
		}
		loc := arrayLoc{offset: int64(ibd.Len()), length: length, encoded: int64(len(data))}
		ibd.Write(data)
		return loc
	}
	addF64 := func(vals []float64) arrayLoc {
		var raw bytes.Buffer
		binary.Write(&raw, binary.LittleEndian, vals)
		return add(raw.Bytes(), len(vals))
	}
	addF32 := func(vals []float32) arrayLoc {
		var raw bytes.Buffer
		binary.Write(&raw, binary.LittleEndian, vals)
		return add(raw.Bytes(), len(vals))
	}

	mzLocs := make([]arrayLoc, len(pixels))
	intLocs := make([]arrayLoc, len(pixels))
	var shared *arrayLoc
	for i, p := range pixels {
		if !opts.processed {
			if shared == nil {
				loc := addF64(p.mzs)
				shared = &loc
			}
			mzLocs[i] = *shared
		} else {
			mzLocs[i] = addF64(p.mzs)
		}
		intLocs[i] = addF32(p.ints)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n")
	b.WriteString(`<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1">` + "\n")

	b.WriteString("<fileDescription><fileContent>\n")
	if opts.profile {
		b.WriteString(`<cvParam cvRef="MS" accession="MS:1000128" name="profile spectrum"/>` + "\n")
	} else {
		b.WriteString(`<cvParam cvRef="MS" accession="MS:1000127" name="centroid spectrum"/>` + "\n")
	}
	if opts.processed {
		b.WriteString(`<cvParam cvRef="IMS" accession="IMS:1000031" name="processed"/>` + "\n")
	} else {
		b.WriteString(`<cvParam cvRef="IMS" accession="IMS:1000030" name="continuous"/>` + "\n")
	}
	if !opts.omitUUID {
		u := fixtureUUID
		fmt.Fprintf(&b, `<cvParam cvRef="IMS" accession="IMS:1000080" name="universally unique identifier" value="{%x-%x-%x-%x-%x}"/>`+"\n",
			u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
	}
	b.WriteString("</fileContent></fileDescription>\n")

	compression := `<cvParam cvRef="MS" accession="MS:1000576" name="no compression"/>`
	if opts.compress {
		compression = `<cvParam cvRef="MS" accession="MS:1000574" name="zlib compression"/>`
	}
	fmt.Fprintf(&b, `<referenceableParamGroupList count="2">
<referenceableParamGroup id="mzArray">
<cvParam cvRef="MS" accession="MS:1000514" name="m/z array"/>
<cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>
%s
</referenceableParamGroup>
<referenceableParamGroup id="intensityArray">
<cvParam cvRef="MS" accession="MS:1000515" name="intensity array"/>
<cvParam cvRef="MS" accession="MS:1000521" name="32-bit float"/>
%s
</referenceableParamGroup>
</referenceableParamGroupList>
`, compression, compression)

	if !opts.omitScanSettings {
		fmt.Fprintf(&b, `<scanSettingsList count="1"><scanSettings id="scan1">
<cvParam cvRef="IMS" accession="IMS:1000042" name="max count of pixels x" value="%d"/>
<cvParam cvRef="IMS" accession="IMS:1000043" name="max count of pixels y" value="%d"/>
</scanSettings></scanSettingsList>
`, opts.gridW, opts.gridH)
	}

	fmt.Fprintf(&b, `<run id="run1"><spectrumList count="%d">`+"\n", len(pixels))
	for i, p := range pixels {
		fmt.Fprintf(&b, `<spectrum index="%d" id="spectrum=%d" defaultArrayLength="%d">
<scanList count="1"><scan>
<cvParam cvRef="IMS" accession="IMS:1000050" name="position x" value="%d"/>
<cvParam cvRef="IMS" accession="IMS:1000051" name="position y" value="%d"/>
</scan></scanList>
<binaryDataArrayList count="2">
<binaryDataArray encodedLength="0">
<referenceableParamGroupRef ref="mzArray"/>
<cvParam cvRef="IMS" accession="IMS:1000103" name="external array length" value="%d"/>
<cvParam cvRef="IMS" accession="IMS:1000104" name="external encoded length" value="%d"/>
<cvParam cvRef="IMS" accession="IMS:1000102" name="external offset" value="%d"/>
<binary/>
</binaryDataArray>
<binaryDataArray encodedLength="0">
<referenceableParamGroupRef ref="intensityArray"/>
<cvParam cvRef="IMS" accession="IMS:1000103" name="external array length" value="%d"/>
<cvParam cvRef="IMS" accession="IMS:1000104" name="external encoded length" value="%d"/>
<cvParam cvRef="IMS" accession="IMS:1000102" name="external offset" value="%d"/>
<binary/>
</binaryDataArray>
</binaryDataArrayList>
</spectrum>
`, i, i+1, len(p.mzs), p.x, p.y,
			mzLocs[i].length, mzLocs[i].encoded, mzLocs[i].offset,
			intLocs[i].length, intLocs[i].encoded, intLocs[i].offset)
	}
	b.WriteString("</spectrumList></run>\n</mzML>\n")

	imzmlPath := filepath.Join(dir, stem+".imzML")
	if err := os.WriteFile(imzmlPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".ibd"), ibd.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return imzmlPath
}

func openFixture(t *testing.T, opts fixtureOpts, pixels []pixelSpec) *Reader {
	t.Helper()
	path := writeFixture(t, t.TempDir(), "sample", opts, pixels)
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOpenContinuousCentroid(t *testing.T) {
	r := openFixture(t, defaultOpts(), fourPixels())

	if got := r.SpectrumType(); got != types.SpectrumCentroid {
		t.Errorf("SpectrumType = %s, want centroid", got)
	}
	if !r.Continuous() {
		t.Error("Continuous = false, want true")
	}
	w, h := r.Size()
	if w != 2 || h != 2 {
		t.Errorf("Size = %dx%d, want 2x2", w, h)
	}
	if got := r.SpectrumCount(); got != 4 {
		t.Errorf("SpectrumCount = %d, want 4", got)
	}
}

func TestCentroidAxis(t *testing.T) {
	r := openFixture(t, defaultOpts(), fourPixels())

	axis, err := r.CentroidAxis()
	if err != nil {
		t.Fatal(err)
	}
	if len(axis) != 2 || axis[0] != 100 || axis[1] != 200 {
		t.Errorf("CentroidAxis = %v, want [100 200]", axis)
	}
}

func TestCentroidAxisProfileFile(t *testing.T) {
	opts := defaultOpts()
	opts.profile = true
	r := openFixture(t, opts, fourPixels())

	if _, err := r.CentroidAxis(); err == nil {
		t.Error("expected error extracting centroid axis from profile file")
	}
}

func TestImage(t *testing.T) {
	r := openFixture(t, defaultOpts(), fourPixels())

	tests := []struct {
		name string
		mz   float64
		tol  float64
		want [4]float32 // (0,0) (1,0) (0,1) (1,1)
	}{
		{name: "first peak", mz: 100, tol: 75, want: [4]float32{1, 2, 3, 4}},
		{name: "second peak", mz: 200, tol: 75, want: [4]float32{10, 20, 30, 40}},
		{name: "between peaks", mz: 150, tol: 75, want: [4]float32{0, 0, 0, 0}},
		{name: "near miss within window", mz: 100.001, tol: 75, want: [4]float32{1, 2, 3, 4}},
		{name: "near miss outside window", mz: 100.1, tol: 75, want: [4]float32{0, 0, 0, 0}},
		{name: "wide window sums both peaks", mz: 150, tol: 400000, want: [4]float32{11, 22, 33, 44}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.Image(tt.mz, tt.tol)
			if err != nil {
				t.Fatal(err)
			}
			got := [4]float32{img.At(0, 0), img.At(1, 0), img.At(0, 1), img.At(1, 1)}
			if got != tt.want {
				t.Errorf("Image(%g, %g) = %v, want %v", tt.mz, tt.tol, got, tt.want)
			}
		})
	}
}

func TestImageProcessedMode(t *testing.T) {
	opts := defaultOpts()
	opts.processed = true
	r := openFixture(t, opts, fourPixels())

	img, err := r.Image(100, 75)
	if err != nil {
		t.Fatal(err)
	}
	want := [4]float32{1, 2, 3, 4}
	got := [4]float32{img.At(0, 0), img.At(1, 0), img.At(0, 1), img.At(1, 1)}
	if got != want {
		t.Errorf("Image(100) = %v, want %v", got, want)
	}
}

func TestImageZlibCompressed(t *testing.T) {
	opts := defaultOpts()
	opts.compress = true
	r := openFixture(t, opts, fourPixels())

	img, err := r.Image(200, 75)
	if err != nil {
		t.Fatal(err)
	}
	want := [4]float32{10, 20, 30, 40}
	got := [4]float32{img.At(0, 0), img.At(1, 0), img.At(0, 1), img.At(1, 1)}
	if got != want {
		t.Errorf("Image(200) = %v, want %v", got, want)
	}
}

func TestImageRejectsNonPositiveMZ(t *testing.T) {
	r := openFixture(t, defaultOpts(), fourPixels())
	if _, err := r.Image(0, 75); err == nil {
		t.Error("expected error for non-positive m/z")
	}
}

func TestImageUsesConfiguredToleranceFallback(t *testing.T) {
	r := openFixture(t, defaultOpts(), fourPixels())

	// At the default 75 ppm, 100.015 misses the peak at 100.
	img, err := r.Image(100.015, 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.At(0, 0) != 0 {
		t.Fatalf("expected miss at default tolerance, got %g", img.At(0, 0))
	}

	r.SetTolerance(2000)
	img, err = r.Image(100.015, 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.At(0, 0) != 1 {
		t.Errorf("expected hit at 2000 ppm, got %g", img.At(0, 0))
	}
}

func TestGridDerivedFromPositions(t *testing.T) {
	opts := defaultOpts()
	opts.omitScanSettings = true
	r := openFixture(t, opts, fourPixels())

	w, h := r.Size()
	if w != 2 || h != 2 {
		t.Errorf("Size = %dx%d, want 2x2 derived from positions", w, h)
	}
}

func TestSparseGridLeavesMissingPixelsZero(t *testing.T) {
	pixels := []pixelSpec{
		{x: 1, y: 1, mzs: []float64{100}, ints: []float32{5}},
		{x: 2, y: 2, mzs: []float64{100}, ints: []float32{7}},
	}
	opts := defaultOpts()
	opts.processed = true
	r := openFixture(t, opts, pixels)

	img, err := r.Image(100, 75)
	if err != nil {
		t.Fatal(err)
	}
	got := [4]float32{img.At(0, 0), img.At(1, 0), img.At(0, 1), img.At(1, 1)}
	want := [4]float32{5, 0, 0, 7}
	if got != want {
		t.Errorf("Image = %v, want %v", got, want)
	}
}

func TestMZRangeAndTICs(t *testing.T) {
	r := openFixture(t, defaultOpts(), fourPixels())

	lo, hi, err := r.MZRange()
	if err != nil {
		t.Fatal(err)
	}
	if lo != 100 || hi != 200 {
		t.Errorf("MZRange = [%g %g], want [100 200]", lo, hi)
	}

	tics, err := r.TICs()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{11, 22, 33, 44}
	for i := range want {
		if tics[i] != want[i] {
			t.Errorf("TICs[%d] = %g, want %g", i, tics[i], want[i])
		}
	}
}

func TestOpenMissingIbd(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "sample", defaultOpts(), fourPixels())
	if err := os.Remove(filepath.Join(dir, "sample.ibd")); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected error for missing ibd file")
	}
}

func TestOpenUUIDMismatch(t *testing.T) {
	opts := defaultOpts()
	opts.ibdUUID = [16]byte{0xff, 0xfe, 0xfd}
	path := writeFixture(t, t.TempDir(), "sample", opts, fourPixels())

	if _, err := Open(path); err == nil {
		t.Error("expected error for mismatched ibd identifier")
	}
}

func TestOpenCorruptHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.imzML")
	if err := os.WriteFile(path, []byte("not xml at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected error for corrupt header")
	}
}

func TestOpenNonexistent(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.imzML")); err == nil {
		t.Error("expected error for missing file")
	}
}
