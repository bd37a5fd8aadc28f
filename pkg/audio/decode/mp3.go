// ABOUTME: MP3 audio decoder
// ABOUTME: Streams MPEG audio frames through go-mp3 to 16-bit stereo PCM
package decode

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3 decodes an MPEG audio stream with go-mp3
type MP3 struct {
	decoder *mp3.Decoder
}

// NewMP3 creates a decoder reading frames from r. The first frame is
// consumed immediately to learn the sample rate. r should not implement
// io.Seeker unless the caller wants go-mp3 to scan the whole stream.
func NewMP3(r io.Reader) (Decoder, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	return &MP3{decoder: decoder}, nil
}

// Read fills p with interleaved 16-bit stereo PCM
func (d *MP3) Read(p []byte) (int, error) {
	return d.decoder.Read(p)
}

// SampleRate returns the stream sample rate
func (d *MP3) SampleRate() int {
	return d.decoder.SampleRate()
}
