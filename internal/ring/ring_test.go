// ABOUTME: Tests for the SPSC sample ring
// ABOUTME: Covers wrap-around, capacity limits, and concurrent producer/consumer ordering
package ring

import (
	"math/rand"
	"sync"
	"testing"
)

func TestNewRing(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"normal", 16, 16},
		{"one", 1, 1},
		{"zero clamps to one", 0, 1},
		{"negative clamps to one", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.capacity)
			if r.Cap() != tt.want {
				t.Errorf("expected capacity %d, got %d", tt.want, r.Cap())
			}
			if r.ReadSpace() != 0 {
				t.Errorf("expected empty ring, got %d readable", r.ReadSpace())
			}
			if r.WriteSpace() != tt.want {
				t.Errorf("expected %d writable, got %d", tt.want, r.WriteSpace())
			}
		})
	}
}

func TestWriteNeverOverwrites(t *testing.T) {
	r := New(4)

	n := r.Write([]float32{1, 2, 3, 4, 5, 6})
	if n != 4 {
		t.Fatalf("expected 4 written, got %d", n)
	}
	if r.WriteSpace() != 0 {
		t.Errorf("expected full ring, got %d free", r.WriteSpace())
	}
	if n := r.Write([]float32{7}); n != 0 {
		t.Errorf("expected write to full ring to return 0, got %d", n)
	}

	out := make([]float32, 4)
	if n := r.Read(out); n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if out[i] != want {
			t.Errorf("sample %d: expected %v, got %v", i, want, out[i])
		}
	}
}

func TestShortRead(t *testing.T) {
	r := New(8)
	r.Write([]float32{0.5, 0.25})

	out := []float32{9, 9, 9, 9}
	n := r.Read(out)
	if n != 2 {
		t.Fatalf("expected short read of 2, got %d", n)
	}
	if out[0] != 0.5 || out[1] != 0.25 {
		t.Errorf("unexpected samples: %v", out[:2])
	}
	if out[2] != 9 || out[3] != 9 {
		t.Errorf("read touched samples beyond the short count: %v", out)
	}
}

func TestWrapAround(t *testing.T) {
	r := New(5)
	out := make([]float32, 5)

	next := float32(0)
	expect := float32(0)
	for round := 0; round < 20; round++ {
		in := make([]float32, 3)
		for i := range in {
			in[i] = next
			next++
		}
		if n := r.Write(in); n != 3 {
			t.Fatalf("round %d: expected 3 written, got %d", round, n)
		}
		n := r.Read(out[:3])
		if n != 3 {
			t.Fatalf("round %d: expected 3 read, got %d", round, n)
		}
		for i := 0; i < n; i++ {
			if out[i] != expect {
				t.Fatalf("round %d: expected %v, got %v", round, expect, out[i])
			}
			expect++
		}
	}
}

func TestReset(t *testing.T) {
	r := New(4)
	r.Write([]float32{1, 2, 3})
	r.Reset()

	if r.ReadSpace() != 0 {
		t.Errorf("expected empty ring after reset, got %d", r.ReadSpace())
	}
	if r.WriteSpace() != 4 {
		t.Errorf("expected 4 free after reset, got %d", r.WriteSpace())
	}

	r.Write([]float32{7})
	out := make([]float32, 1)
	if n := r.Read(out); n != 1 || out[0] != 7 {
		t.Errorf("expected to read 7 after reset, got n=%d v=%v", n, out[0])
	}
}

// TestRandomizedPushPop interleaves random-sized pushes and pops and checks
// that nothing is lost, duplicated, or reordered.
func TestRandomizedPushPop(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		capacity := 1 + rng.Intn(64)
		r := New(capacity)

		var pushed, popped uint64
		var next, expect float32

		for step := 0; step < 500; step++ {
			if rng.Intn(2) == 0 {
				in := make([]float32, rng.Intn(capacity*2+1))
				for i := range in {
					in[i] = next + float32(i)
				}
				free := r.WriteSpace()
				n := r.Write(in)
				want := len(in)
				if want > free {
					want = free
				}
				if n != want {
					t.Fatalf("trial %d: wrote %d, expected %d (free %d)", trial, n, want, free)
				}
				next += float32(n)
				pushed += uint64(n)
			} else {
				out := make([]float32, rng.Intn(capacity*2+1))
				n := r.Read(out)
				for i := 0; i < n; i++ {
					if out[i] != expect {
						t.Fatalf("trial %d: expected %v, got %v", trial, expect, out[i])
					}
					expect++
				}
				popped += uint64(n)
			}

			if popped > pushed {
				t.Fatalf("trial %d: popped %d > pushed %d", trial, popped, pushed)
			}
			if int(pushed-popped) != r.ReadSpace() {
				t.Fatalf("trial %d: fill %d, ring reports %d", trial, pushed-popped, r.ReadSpace())
			}
			if r.ReadSpace() > capacity {
				t.Fatalf("trial %d: fill %d exceeds capacity %d", trial, r.ReadSpace(), capacity)
			}
		}
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const total = 200000
	r := New(257)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]float32, 37)
		var next float32
		sent := 0
		for sent < total {
			n := len(buf)
			if total-sent < n {
				n = total - sent
			}
			for i := 0; i < n; i++ {
				buf[i] = next + float32(i)
			}
			w := r.Write(buf[:n])
			next += float32(w)
			sent += w
		}
	}()

	out := make([]float32, 64)
	var expect float32
	received := 0
	for received < total {
		n := r.Read(out)
		for i := 0; i < n; i++ {
			if out[i] != expect {
				t.Fatalf("sample %d: expected %v, got %v", received+i, expect, out[i])
			}
			expect++
		}
		received += n
	}
	wg.Wait()

	if r.ReadSpace() != 0 {
		t.Errorf("expected drained ring, got %d left", r.ReadSpace())
	}
}
