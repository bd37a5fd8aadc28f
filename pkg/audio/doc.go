// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and sample conversion functions
// Package audio provides the sample formats shared by the decoder and the
// realtime output drivers.
//
// The deck moves audio as non-interleaved float32 channels. The codec
// produces interleaved 16-bit stereo, and some drivers want interleaved
// float32 bytes:
//
//	n := audio.Deinterleave(pcm, left, right)
//	audio.InterleaveFloat32LE(out, left[:n], right[:n])
package audio
