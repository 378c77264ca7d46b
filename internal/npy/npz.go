// Copyright the m2converter authors, 2026. All rights reserved.

package npy

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/m2aia/m2converter/pkg/types"
)

// WriteMetadata writes the sidecar .npz bundle for a conversion run. Members
// mirror the keyword arguments numpy.savez would receive: mz_values,
// tolerance_ppm, image_width, image_height, source_file.
//
// Members are stored uncompressed with zeroed timestamps, so identical runs
// produce byte-identical sidecars.
func WriteMetadata(path string, md types.Metadata) error {
	values, err := EncodeFloat32([]int{len(md.MZValues)}, md.MZValues)
	if err != nil {
		return fmt.Errorf("encoding mz_values: %w", err)
	}

	members := []struct {
		name string
		data []byte
	}{
		{"mz_values.npy", values},
		{"tolerance_ppm.npy", EncodeFloat64Scalar(md.TolerancePPM)},
		{"image_width.npy", EncodeInt64Scalar(int64(md.ImageWidth))},
		{"image_height.npy", EncodeInt64Scalar(int64(md.ImageHeight))},
		{"source_file.npy", EncodeStringScalar(md.SourceFile)},
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sidecar: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   m.name,
			Method: zip.Store,
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("adding %s: %w", m.name, err)
		}
		if _, err := w.Write(m.data); err != nil {
			zw.Close()
			return fmt.Errorf("writing %s: %w", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing sidecar: %w", err)
	}
	return f.Close()
}
