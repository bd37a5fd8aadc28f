// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for streaming codecs feeding the deck
package decode

import "io"

// Decoder reads a compressed stream and yields interleaved little-endian
// 16-bit stereo PCM. Mono sources are duplicated to both channels.
type Decoder interface {
	io.Reader

	// SampleRate returns the sample rate of the decoded stream
	SampleRate() int
}

// Factory opens a Decoder over a compressed byte stream
type Factory func(r io.Reader) (Decoder, error)
