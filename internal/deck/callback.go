// ABOUTME: Realtime playback callback draining the rings into output buffers
// ABOUTME: Never locks, blocks or allocates; raises signals for the control loop
package deck

import (
	"math"
)

// Process fills one quantum of output. left and right must have the same
// length. Safe to call from a realtime audio thread.
func (d *Deck) Process(left, right []float32) {
	d.inflight.Add(1)
	defer d.inflight.Add(-1)

	if d.current() != Playing || d.signal.Load() != signalNone {
		silence(left)
		silence(right)
		return
	}

	// Sample the task's liveness before the rings so that a task finishing
	// in between is seen as still decoding, never as a false end of track.
	decoding := d.sup.Decoding()

	want := len(left)
	n := want
	if a := d.left.ReadSpace(); a < n {
		n = a
	}
	if a := d.right.ReadSpace(); a < n {
		n = a
	}

	d.left.Read(left[:n])
	d.right.Read(right[:n])

	if n < want {
		silence(left[n:])
		silence(right[n:])
		switch {
		case !decoding:
			d.signal.CompareAndSwap(signalNone, signalEndOfTrack)
		case d.sup.Decoding():
			d.signal.CompareAndSwap(signalNone, signalUnderrun)
		}
		return
	}

	pos := math.Float64frombits(d.position.Load())
	d.position.Store(math.Float64bits(pos + float64(want)/float64(d.cfg.SampleRate)))
}

func silence(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
