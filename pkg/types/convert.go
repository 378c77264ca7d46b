// Copyright the m2converter authors, 2026. All rights reserved.

package types

// DefaultTolerancePPM is the m/z matching window applied when the caller does
// not configure one explicitly.
const DefaultTolerancePPM = 75

// ConvertOptions configures a single conversion run.
type ConvertOptions struct {
	// InputPath is the source imzML file.
	InputPath string

	// OutputDir receives every output artifact. Empty means the input
	// file's own directory.
	OutputDir string

	// Centroids is an explicit list of target m/z values. When nil the
	// targets are taken from the file's own centroid axis.
	Centroids []float64

	// TolerancePPM is the matching window applied uniformly to every
	// target, in parts-per-million of the target value.
	TolerancePPM float64

	// SaveNRRD emits one compressed NRRD image per target.
	SaveNRRD bool

	// SaveSpatial emits the 3D [height, width, targets] array as .npy.
	SaveSpatial bool

	// SaveList emits the flattened 2D [pixels, targets] array as .npy.
	SaveList bool

	// BaseName is the base filename for array outputs. Empty means
	// "<input stem>_data".
	BaseName string
}

// WantsArrays reports whether any array output mode is enabled.
func (o ConvertOptions) WantsArrays() bool {
	return o.SaveSpatial || o.SaveList
}

// Metadata is the sidecar record persisted alongside array outputs. Width and
// height are zero when no target produced an image.
type Metadata struct {
	MZValues     []float32 `yaml:"mz_values"`
	TolerancePPM float64   `yaml:"tolerance_ppm"`
	ImageWidth   int       `yaml:"image_width"`
	ImageHeight  int       `yaml:"image_height"`
	SourceFile   string    `yaml:"source_file"`
}

// ConvertResult summarizes a completed run.
type ConvertResult struct {
	// Targets is the resolved target list, in processing order.
	Targets []float32

	// TolerancePPM is the matching window the run actually used, after
	// defaulting.
	TolerancePPM float64

	// Width and Height are the ion image dimensions, zero if no target
	// succeeded.
	Width  int
	Height int

	// Processed counts targets that yielded an image; Failed counts
	// targets that were warned about and skipped.
	Processed int
	Failed    int

	// NRRDFiles lists the per-target image files written.
	NRRDFiles []string

	// SpatialPath, ListPath, MetadataPath, and ManifestPath are the array
	// output locations, empty when the corresponding mode was off.
	SpatialPath  string
	ListPath     string
	MetadataPath string
	ManifestPath string
}
