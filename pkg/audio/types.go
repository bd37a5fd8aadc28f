// ABOUTME: Audio type definitions
// ABOUTME: Defines the deck's sample format and conversions to and from 16-bit PCM
package audio

import (
	"encoding/binary"
	"math"
)

// Channels is the fixed output channel count of the deck.
const Channels = 2

// BytesPerFrame is the size of one interleaved 16-bit stereo frame.
const BytesPerFrame = 2 * Channels

// Format describes a PCM stream
type Format struct {
	SampleRate int
	Channels   int
}

// SampleFromInt16 converts a 16-bit sample to float32 in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleToInt16 converts a float32 sample to 16-bit with clipping
func SampleToInt16(sample float32) int16 {
	v := math.Round(float64(sample) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Deinterleave splits little-endian 16-bit stereo frames into two float32
// channels. It converts min(len(src)/BytesPerFrame, len(left), len(right))
// frames and returns that count.
func Deinterleave(src []byte, left, right []float32) int {
	n := len(src) / BytesPerFrame
	if n > len(left) {
		n = len(left)
	}
	if n > len(right) {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		off := i * BytesPerFrame
		left[i] = SampleFromInt16(int16(binary.LittleEndian.Uint16(src[off:])))
		right[i] = SampleFromInt16(int16(binary.LittleEndian.Uint16(src[off+2:])))
	}
	return n
}

// InterleaveFloat32LE writes left/right as interleaved little-endian float32
// into dst and returns the number of bytes written. dst must hold
// 8 bytes per frame.
func InterleaveFloat32LE(dst []byte, left, right []float32) int {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	if max := len(dst) / 8; n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*8:], math.Float32bits(left[i]))
		binary.LittleEndian.PutUint32(dst[i*8+4:], math.Float32bits(right[i]))
	}
	return n * 8
}
