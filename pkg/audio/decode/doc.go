// ABOUTME: Audio decoder package for streaming codecs
// ABOUTME: Provides the Decoder interface and the go-mp3 implementation
// Package decode provides streaming audio decoders.
//
// A Decoder is an io.Reader of interleaved 16-bit stereo PCM. The deck's
// decode engine feeds it validated MPEG frames one at a time:
//
//	dec, err := decode.NewMP3(frames)
//	n, err := io.ReadFull(dec, pcm)
package decode
