// Copyright the m2converter authors, 2026. All rights reserved.

// Package nrrd writes 2D float images as NRRD files with gzip-compressed
// raster data and per-file key/value metadata.
package nrrd

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/m2aia/m2converter/pkg/types"
)

// Write persists img to path as a detached-header-free NRRD0004 file. The
// raster is little-endian float32, x-fastest, gzip encoded. Extra key/value
// pairs (m/z value, tolerance, source file) are emitted in sorted key order so
// identical inputs produce identical files.
func Write(path string, img *types.Image, keyValues map[string]string) error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("invalid image dimensions %s", img.Bounds())
	}
	if len(img.Pix) != img.Width*img.Height {
		return fmt.Errorf("pixel buffer length %d does not match %s", len(img.Pix), img.Bounds())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating NRRD file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "NRRD0004")
	fmt.Fprintln(w, "# written by m2converter")
	fmt.Fprintln(w, "type: float")
	fmt.Fprintln(w, "dimension: 2")
	fmt.Fprintf(w, "sizes: %d %d\n", img.Width, img.Height)
	fmt.Fprintln(w, "endian: little")
	fmt.Fprintln(w, "encoding: gzip")

	keys := make([]string, 0, len(keyValues))
	for k := range keyValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:=%s\n", k, keyValues[k])
	}

	// Blank line separates the header from the data section.
	fmt.Fprintln(w)

	zw := gzip.NewWriter(w)
	if err := binary.Write(zw, binary.LittleEndian, img.Pix); err != nil {
		return fmt.Errorf("writing raster data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing raster data: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing NRRD file: %w", err)
	}
	return f.Close()
}
