// Copyright the m2converter authors, 2026. All rights reserved.

package imzml

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// dataType is the binary encoding of one external array.
type dataType int

const (
	typeFloat32 dataType = iota
	typeFloat64
	typeInt32
	typeInt64
)

// size returns the per-value byte width.
func (t dataType) size() int64 {
	switch t {
	case typeFloat32, typeInt32:
		return 4
	default:
		return 8
	}
}

// arrayRef locates one external array inside the ibd file.
type arrayRef struct {
	offset  int64 // byte offset into the ibd file
	length  int64 // number of values
	encoded int64 // byte length as stored (differs from length*size when compressed)
	dtype   dataType
	zlib    bool
}

// parseArrayRef reads the external-array cvParams of one binaryDataArray.
func parseArrayRef(params []xmlCVParam) (arrayRef, error) {
	var ref arrayRef

	switch {
	case hasParam(params, accFloat32):
		ref.dtype = typeFloat32
	case hasParam(params, accFloat64):
		ref.dtype = typeFloat64
	case hasParam(params, accInt32):
		ref.dtype = typeInt32
	case hasParam(params, accInt64):
		ref.dtype = typeInt64
	default:
		return ref, fmt.Errorf("array declares no supported binary data type")
	}

	switch {
	case hasParam(params, accZlib):
		ref.zlib = true
	case hasParam(params, accNoCompression):
		ref.zlib = false
	default:
		// Compression cvParam is formally required but often omitted for
		// uncompressed data.
		ref.zlib = false
	}

	var err error
	if ref.offset, err = paramInt(params, accExternalOffset); err != nil {
		return ref, err
	}
	if ref.length, err = paramInt(params, accExternalLength); err != nil {
		return ref, err
	}
	if ref.encoded, err = paramInt(params, accEncodedLength); err != nil {
		return ref, err
	}
	if ref.offset < ibdUUIDSize {
		return ref, fmt.Errorf("external offset %d overlaps the ibd identifier", ref.offset)
	}
	return ref, nil
}

func paramInt(params []xmlCVParam, accession string) (int64, error) {
	v := paramValue(params, accession)
	if v == "" {
		return 0, fmt.Errorf("missing required cvParam %s", accession)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing cvParam %s: %w", accession, err)
	}
	return n, nil
}

// readArray loads one external array from the ibd file, decompressing and
// widening to float64 as needed.
func (r *Reader) readArray(ref arrayRef) ([]float64, error) {
	if r.ibd == nil {
		return nil, fmt.Errorf("reader is closed")
	}

	raw := make([]byte, ref.encoded)
	if _, err := r.ibd.ReadAt(raw, ref.offset); err != nil {
		return nil, fmt.Errorf("reading ibd at offset %d: %w", ref.offset, err)
	}

	if ref.zlib {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("opening zlib stream at offset %d: %w", ref.offset, err)
		}
		defer zr.Close()
		decoded := make([]byte, ref.length*ref.dtype.size())
		if _, err := io.ReadFull(zr, decoded); err != nil {
			return nil, fmt.Errorf("decompressing array at offset %d: %w", ref.offset, err)
		}
		raw = decoded
	} else if want := ref.length * ref.dtype.size(); int64(len(raw)) != want {
		return nil, fmt.Errorf("array at offset %d: encoded length %d does not match %d values",
			ref.offset, ref.encoded, ref.length)
	}

	values := make([]float64, ref.length)
	for i := range values {
		chunk := raw[int64(i)*ref.dtype.size():]
		switch ref.dtype {
		case typeFloat32:
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case typeFloat64:
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		case typeInt32:
			values[i] = float64(int32(binary.LittleEndian.Uint32(chunk)))
		case typeInt64:
			values[i] = float64(int64(binary.LittleEndian.Uint64(chunk)))
		}
	}
	return values, nil
}
