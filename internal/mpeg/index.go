// ABOUTME: Track index mapping time offsets to byte offsets
// ABOUTME: Learns framing from the first decoded header and computes duration
package mpeg

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
)

var (
	ErrUnknownFraming = errors.New("mpeg: framing not yet known")
	ErrOutOfRange     = errors.New("mpeg: cue point out of range")
)

// SeekPoint is where decoding starts for a requested cue point.
type SeekPoint struct {
	Offset   int64   // absolute byte offset in the file
	Frame    int64   // frame index from the start of the audio
	Position float64 // seconds, quantized to a frame boundary
}

// Index describes where the audio of one file lives and how it is framed.
// Start and End are fixed at Scan time; the framing fields are filled in
// once by the decode task and read by anyone.
type Index struct {
	start int64
	end   int64

	mu         sync.RWMutex
	sampleRate int
	bitrate    int
	frameSize  float64
	vbr        bool
}

// Scan builds an index for a file of the given size, skipping tags.
func Scan(r io.ReaderAt, size int64) *Index {
	start, end := Bounds(r, size)
	return &Index{start: start, end: end}
}

// Start is the first byte of compressed audio.
func (x *Index) Start() int64 { return x.start }

// End is one past the last byte of compressed audio.
func (x *Index) End() int64 { return x.end }

// Learn records framing from a decoded header. The first call fixes the
// sample rate, bitrate and mean frame size and returns true. Later calls
// only note a bitrate change, reported through the returned vbr flag the
// first time it happens.
func (x *Index) Learn(h Header) (first bool, vbrChanged bool, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.sampleRate == 0 {
		x.sampleRate = h.SampleRate
		x.bitrate = h.Bitrate
		// Padding is amortised: the mean length of a frame.
		x.frameSize = 144 * float64(h.Bitrate) / float64(h.SampleRate)
		return true, false, nil
	}

	if h.SampleRate != x.sampleRate {
		return false, false, fmt.Errorf("sample rate changed from %d to %d", x.sampleRate, h.SampleRate)
	}
	if h.Bitrate != x.bitrate && !x.vbr {
		x.vbr = true
		return false, true, nil
	}
	return false, false, nil
}

// Known reports whether framing has been learned.
func (x *Index) Known() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sampleRate != 0
}

// SampleRate returns the learned sample rate, or 0.
func (x *Index) SampleRate() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sampleRate
}

// Bitrate returns the bitrate of the first frame, or 0.
func (x *Index) Bitrate() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.bitrate
}

// FrameSize returns the mean frame size in bytes, or 0.
func (x *Index) FrameSize() float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.frameSize
}

// VBR reports whether the bitrate has changed since the first frame.
func (x *Index) VBR() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.vbr
}

// Duration returns the track length in seconds, or 0 while framing is unknown.
func (x *Index) Duration() float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.durationLocked()
}

func (x *Index) durationLocked() float64 {
	if x.sampleRate == 0 || x.frameSize == 0 {
		return 0
	}
	frames := float64(x.end-x.start) / x.frameSize
	return SamplesPerFrame * frames / float64(x.sampleRate)
}

// Seek maps a cue point to the start of the frame containing it.
//
// While framing is unknown only the start of the audio can be reached:
// the returned point is the audio start, with ErrUnknownFraming when a
// non-zero cue was asked for.
func (x *Index) Seek(cue float64) (SeekPoint, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if cue < 0 || math.IsNaN(cue) {
		return SeekPoint{}, ErrOutOfRange
	}
	if x.sampleRate == 0 {
		p := SeekPoint{Offset: x.start}
		if cue != 0 {
			return p, ErrUnknownFraming
		}
		return p, nil
	}
	if cue >= x.durationLocked() {
		return SeekPoint{}, ErrOutOfRange
	}

	frame := int64(math.Floor(cue * float64(x.sampleRate) / SamplesPerFrame))
	offset := x.start + frame*144*int64(x.bitrate)/int64(x.sampleRate)
	if offset > x.end {
		offset = x.end
	}
	return SeekPoint{
		Offset:   offset,
		Frame:    frame,
		Position: float64(SamplesPerFrame*frame) / float64(x.sampleRate),
	}, nil
}
