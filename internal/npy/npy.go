// Copyright the m2converter authors, 2026. All rights reserved.

// Package npy serializes arrays in the NumPy .npy format (version 1.0) and
// bundles of arrays in the .npz container, so array outputs load directly
// with numpy.load on the analysis side.
package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

const magic = "\x93NUMPY"

// headerAlign is the boundary the format requires the data section to start
// on, counting from the beginning of the file.
const headerAlign = 64

// shapeTuple renders a shape in Python tuple syntax: (), (5,), (2, 3, 4).
func shapeTuple(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return fmt.Sprintf("(%d,)", shape[0])
	default:
		parts := make([]string, len(shape))
		for i, n := range shape {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

// encodeHeader builds the magic, version, and padded header dict for an array
// of the given dtype and shape.
func encodeHeader(descr string, shape []int) []byte {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }",
		descr, shapeTuple(shape))

	// Pad with spaces so magic+version+length+dict+newline is a multiple
	// of the alignment boundary.
	unpadded := len(magic) + 2 + 2 + len(dict) + 1
	pad := (headerAlign - unpadded%headerAlign) % headerAlign
	dict += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(1)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	return buf.Bytes()
}

func elemCount(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// EncodeFloat32 serializes a float32 array of the given shape in C order.
func EncodeFloat32(shape []int, data []float32) ([]byte, error) {
	if got, want := len(data), elemCount(shape); got != want {
		return nil, fmt.Errorf("shape %v requires %d elements, got %d", shape, want, got)
	}
	var buf bytes.Buffer
	buf.Write(encodeHeader("<f4", shape))
	binary.Write(&buf, binary.LittleEndian, data)
	return buf.Bytes(), nil
}

// EncodeFloat64Scalar serializes a 0-dimensional float64 array.
func EncodeFloat64Scalar(v float64) []byte {
	var buf bytes.Buffer
	buf.Write(encodeHeader("<f8", nil))
	binary.Write(&buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// EncodeInt64Scalar serializes a 0-dimensional int64 array.
func EncodeInt64Scalar(v int64) []byte {
	var buf bytes.Buffer
	buf.Write(encodeHeader("<i8", nil))
	binary.Write(&buf, binary.LittleEndian, v)
	return buf.Bytes()
}

// EncodeStringScalar serializes a 0-dimensional unicode string array, the
// dtype numpy.savez assigns to plain Python strings. Each code point is
// stored as little-endian UTF-32.
func EncodeStringScalar(s string) []byte {
	runes := []rune(s)
	n := len(runes)
	if n == 0 {
		// numpy represents the empty string as '<U1' with one NUL code point.
		n = 1
		runes = []rune{0}
	}
	var buf bytes.Buffer
	buf.Write(encodeHeader(fmt.Sprintf("<U%d", n), nil))
	for _, r := range runes {
		binary.Write(&buf, binary.LittleEndian, uint32(r))
	}
	return buf.Bytes()
}

// WriteFloat32 writes a float32 array of the given shape to path.
func WriteFloat32(path string, shape []int, data []float32) error {
	b, err := EncodeFloat32(shape, data)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing array: %w", err)
	}
	return nil
}
