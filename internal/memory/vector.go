package memory

import (
	"encoding/binary"
	"math"
)

// encodeVector packs a float32 embedding into the little-endian byte blob
// sqlite-vec's vec0 virtual tables expect for a FLOAT[N] column.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
