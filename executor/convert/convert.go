// Package convert packs encoded states to and from the little-endian byte
// layout stored in training parquet files.
package convert

import (
	"encoding/binary"
	"fmt"
	"math"
)

const BytesPerFloat = 4

// PutFloats writes src into dst, which must hold len(src)*4 bytes.
func PutFloats(dst []byte, src []float32) {
	for i, f := range src {
		binary.LittleEndian.PutUint32(dst[i*BytesPerFloat:], math.Float32bits(f))
	}
}

// FloatsToBytes returns a freshly allocated copy of src as bytes. Rows keep
// the result, so it does not come from the pool.
func FloatsToBytes(src []float32) []byte {
	out := make([]byte, len(src)*BytesPerFloat)
	PutFloats(out, src)
	return out
}

// BytesToFloats decodes b into dst, growing dst when needed.
func BytesToFloats(dst []float32, b []byte) ([]float32, error) {
	if len(b)%BytesPerFloat != 0 {
		return nil, fmt.Errorf("convert: %d bytes is not a whole number of float32s", len(b))
	}
	n := len(b) / BytesPerFloat
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*BytesPerFloat:]))
	}
	return dst, nil
}
