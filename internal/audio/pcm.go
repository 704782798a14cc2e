package audio

import (
	"encoding/binary"
	"math"
)

// BytesPerSample is the size of one float32 PCM frame on the device.
const BytesPerSample = 4

// PutFloat32LE writes as many samples as fit into dst as little-endian
// float32 and returns the number of samples written.
func PutFloat32LE(dst []byte, samples []float32) int {
	n := min(len(dst)/BytesPerSample, len(samples))
	for i := range n {
		binary.LittleEndian.PutUint32(dst[i*BytesPerSample:], math.Float32bits(samples[i]))
	}

	return n
}
