// Copyright the m2converter authors, 2026. All rights reserved.

// Package convert implements the conversion driver: it resolves a target m/z
// list against an opened imzML source, extracts ion images sequentially with
// warn-and-continue per-target failure handling, and writes the requested
// NRRD, numpy, and sidecar outputs.
package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/m2aia/m2converter/internal/npy"
	"github.com/m2aia/m2converter/internal/nrrd"
	"github.com/m2aia/m2converter/pkg/types"
)

// progressEvery is the extraction-loop reporting interval; the final item is
// always reported.
const progressEvery = 10

// Source is the reader surface the driver consumes. *imzml.Reader implements
// it; tests substitute fakes.
type Source interface {
	// SpectrumType returns the declared spectral representation.
	SpectrumType() types.SpectrumType

	// CentroidAxis returns the file's own peak list.
	CentroidAxis() ([]float64, error)

	// SetTolerance configures the default ppm matching window.
	SetTolerance(ppm float64)

	// Image extracts the ion image for one target at the given tolerance.
	Image(mz, tolerancePPM float64) (*types.Image, error)
}

// manifest is the human-readable YAML record written alongside array outputs.
type manifest struct {
	types.Metadata `yaml:",inline"`
	Outputs        []string `yaml:"outputs"`
	CreatedAt      string   `yaml:"created_at"`
}

// Convert runs the driver against an already-opened source. Progress goes to
// out, warnings to errw. Per-target extraction failures are reported and
// skipped; the returned error is non-nil only for fatal conditions (unusable
// target list, output directory or final write failures).
func Convert(src Source, opts types.ConvertOptions, out, errw io.Writer) (*types.ConvertResult, error) {
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(opts.InputPath)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(opts.InputPath), filepath.Ext(opts.InputPath))
	base := opts.BaseName
	if base == "" {
		base = stem + "_data"
	}

	targets, err := ResolveTargets(src, opts.Centroids, out)
	if err != nil {
		return nil, err
	}

	tolerance := opts.TolerancePPM
	if tolerance <= 0 {
		tolerance = types.DefaultTolerancePPM
	}
	src.SetTolerance(tolerance)

	fmt.Fprintf(out, "Tolerance: %g ppm\n", tolerance)
	fmt.Fprintf(out, "Processing %d peaks...\n", len(targets))

	result := &types.ConvertResult{Targets: targets, TolerancePPM: tolerance}
	sourceName := filepath.Base(opts.InputPath)

	var acc *Accumulator
	for i, mz := range targets {
		img, err := src.Image(float64(mz), tolerance)
		if err != nil {
			fmt.Fprintf(errw, "Warning: failed to process m/z %.4f: %v\n", mz, err)
			result.Failed++
			continue
		}

		// The first successful image fixes the grid dimensions for the
		// rest of the run.
		if opts.WantsArrays() && acc == nil {
			acc = NewAccumulator(img.Width, img.Height, len(targets))
			fmt.Fprintf(out, "Allocated data matrix: [%d %d %d] (height, width, targets)\n",
				acc.Height, acc.Width, acc.Targets)
		}

		if acc != nil {
			if err := acc.SetSlice(i, img); err != nil {
				fmt.Fprintf(errw, "Warning: failed to process m/z %.4f: %v\n", mz, err)
				result.Failed++
				continue
			}
		}

		if opts.SaveNRRD {
			name := fmt.Sprintf("%s_mz_%.4f.nrrd", stem, mz)
			path := filepath.Join(outDir, name)
			meta := map[string]string{
				"mz_value":      fmt.Sprintf("%g", mz),
				"tolerance_ppm": fmt.Sprintf("%g", tolerance),
				"source_file":   sourceName,
			}
			if err := nrrd.Write(path, img, meta); err != nil {
				fmt.Fprintf(errw, "Warning: failed to write %s: %v\n", name, err)
			} else {
				result.NRRDFiles = append(result.NRRDFiles, path)
			}
		}

		result.Processed++
		if (i+1)%progressEvery == 0 || i+1 == len(targets) {
			fmt.Fprintf(out, "  Processed %d/%d: m/z = %.4f\n", i+1, len(targets), mz)
		}
	}

	if acc != nil {
		result.Width = acc.Width
		result.Height = acc.Height
	}

	if opts.WantsArrays() {
		if err := writeArrays(acc, targets, tolerance, sourceName, outDir, base, opts, result, out, errw); err != nil {
			return nil, err
		}
	}

	if opts.SaveNRRD {
		fmt.Fprintf(out, "\nNRRD files saved to: %s\n", outDir)
	}
	fmt.Fprintf(out, "\nConversion complete!\n")
	return result, nil
}

// writeArrays persists the requested array outputs, the metadata sidecar, and
// the run manifest. The sidecar and manifest are written even when no target
// succeeded; the array files require an allocated accumulator.
func writeArrays(acc *Accumulator, targets []float32, tolerance float64,
	sourceName, outDir, base string, opts types.ConvertOptions,
	result *types.ConvertResult, out, errw io.Writer) error {

	if acc == nil {
		fmt.Fprintf(errw, "Warning: no target produced an image; array files skipped\n")
	}

	if opts.SaveSpatial && acc != nil {
		path := filepath.Join(outDir, base+"_spatial.npy")
		if err := npy.WriteFloat32(path, acc.SpatialShape(), acc.Data); err != nil {
			return fmt.Errorf("saving spatial array: %w", err)
		}
		result.SpatialPath = path
		fmt.Fprintf(out, "\nSpatial numpy array saved: %s\n", path)
		fmt.Fprintf(out, "  Shape: [%d %d %d] (height, width, targets)\n",
			acc.Height, acc.Width, acc.Targets)
		fmt.Fprintf(out, "  Size: %.2f MB\n", acc.SizeMB())
	}

	if opts.SaveList && acc != nil {
		path := filepath.Join(outDir, base+"_list.npy")
		if err := npy.WriteFloat32(path, acc.ListShape(), acc.Data); err != nil {
			return fmt.Errorf("saving list array: %w", err)
		}
		result.ListPath = path
		fmt.Fprintf(out, "\nList numpy array saved: %s\n", path)
		fmt.Fprintf(out, "  Shape: [%d %d] (pixels, targets)\n",
			acc.Height*acc.Width, acc.Targets)
		fmt.Fprintf(out, "  Size: %.2f MB\n", acc.SizeMB())
	}

	md := types.Metadata{
		MZValues:     targets,
		TolerancePPM: tolerance,
		SourceFile:   sourceName,
	}
	if acc != nil {
		md.ImageWidth = acc.Width
		md.ImageHeight = acc.Height
	}

	metaPath := filepath.Join(outDir, base+"_metadata.npz")
	if err := npy.WriteMetadata(metaPath, md); err != nil {
		return fmt.Errorf("saving metadata sidecar: %w", err)
	}
	result.MetadataPath = metaPath
	fmt.Fprintf(out, "\nMetadata saved: %s\n", metaPath)

	outputs := make([]string, 0, 3)
	for _, p := range []string{result.SpatialPath, result.ListPath, result.MetadataPath} {
		if p != "" {
			outputs = append(outputs, filepath.Base(p))
		}
	}
	m := manifest{
		Metadata:  md,
		Outputs:   outputs,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding run manifest: %w", err)
	}
	manifestPath := filepath.Join(outDir, base+"_manifest.yaml")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("saving run manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return nil
}
