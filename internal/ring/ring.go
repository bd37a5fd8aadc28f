// ABOUTME: Lock-free single-producer/single-consumer sample ring
// ABOUTME: Carries decoded audio from the decode task to the realtime callback
package ring

import (
	"sync/atomic"
)

// Ring is a fixed-capacity SPSC queue of float32 samples.
//
// Exactly one goroutine may call Write and exactly one may call Read.
// Both sides only touch their own counter, so neither ever blocks or
// allocates. The counters grow monotonically; the slot index is the
// counter modulo capacity.
type Ring struct {
	buf []float32

	// written is advanced by the producer after the samples are stored,
	// read by the consumer after the samples are copied out.
	written atomic.Uint64
	read    atomic.Uint64
}

// New creates a ring holding up to capacity samples.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]float32, capacity)}
}

// Cap returns the capacity in samples.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// ReadSpace returns the number of samples available to the consumer.
func (r *Ring) ReadSpace() int {
	return int(r.written.Load() - r.read.Load())
}

// WriteSpace returns the number of samples the producer may write
// without overwriting unread data.
func (r *Ring) WriteSpace() int {
	return len(r.buf) - r.ReadSpace()
}

// Write copies as many samples from p as fit and returns the count.
// It never overwrites unread samples.
func (r *Ring) Write(p []float32) int {
	w := r.written.Load()
	free := len(r.buf) - int(w-r.read.Load())
	n := len(p)
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	start := int(w % uint64(len(r.buf)))
	first := copy(r.buf[start:], p[:n])
	copy(r.buf, p[first:n])

	r.written.Store(w + uint64(n))
	return n
}

// Read copies up to len(p) samples into p and returns the count.
// A short count means the ring ran dry; the rest of p is untouched.
func (r *Ring) Read(p []float32) int {
	rd := r.read.Load()
	avail := int(r.written.Load() - rd)
	n := len(p)
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := int(rd % uint64(len(r.buf)))
	first := copy(p[:n], r.buf[start:])
	copy(p[first:n], r.buf)

	r.read.Store(rd + uint64(n))
	return n
}

// Reset discards all unread samples. It must only be called while no
// producer is running; a concurrent consumer just observes an empty ring.
func (r *Ring) Reset() {
	r.read.Store(r.written.Load())
}
