// ABOUTME: Adapts device buffers of any size to whole callback quanta
// ABOUTME: Backends whose drivers pick their own period size read through this
package output

import (
	"github.com/Sendspin/sendspin-deck/pkg/audio"
)

// bytesPerFloatFrame is one interleaved stereo float32 frame.
const bytesPerFloatFrame = 4 * audio.Channels

// quantizer holds one quantum produced by the callback and hands it out
// in whatever slices the device asks for. It is used from a single
// device thread.
type quantizer struct {
	cb          Callback
	left, right []float32
	pos         int
}

func newQuantizer(cb Callback, quantum int) *quantizer {
	if quantum < 1 {
		quantum = 1
	}
	return &quantizer{
		cb:    cb,
		left:  make([]float32, quantum),
		right: make([]float32, quantum),
		pos:   quantum,
	}
}

// take returns up to n frames, running the callback when the current
// quantum is used up.
func (q *quantizer) take(n int) (left, right []float32) {
	if q.pos == len(q.left) {
		q.cb.Process(q.left, q.right)
		q.pos = 0
	}
	end := q.pos + n
	if end > len(q.left) {
		end = len(q.left)
	}
	left, right = q.left[q.pos:end], q.right[q.pos:end]
	q.pos = end
	return left, right
}

// readFloat32LE fills p with whole interleaved float32 frames and returns
// the number of bytes written.
func (q *quantizer) readFloat32LE(p []byte) int {
	frames := len(p) / bytesPerFloatFrame
	off := 0
	for frames > 0 {
		l, r := q.take(frames)
		off += audio.InterleaveFloat32LE(p[off:], l, r)
		frames -= len(l)
	}
	return off
}

// readInterleaved fills out with interleaved stereo samples and returns
// the number of samples written.
func (q *quantizer) readInterleaved(out []float32) int {
	frames := len(out) / audio.Channels
	i := 0
	for frames > 0 {
		l, r := q.take(frames)
		for k := range l {
			out[i] = l[k]
			out[i+1] = r[k]
			i += 2
		}
		frames -= len(l)
	}
	return i
}

// readPairs fills out with stereo frames as float64 pairs.
func (q *quantizer) readPairs(out [][2]float64) {
	i := 0
	for i < len(out) {
		l, r := q.take(len(out) - i)
		for k := range l {
			out[i][0] = float64(l[k])
			out[i][1] = float64(r[k])
			i++
		}
	}
}
