// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion functions
package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"half", 16384, 0.5},
		{"negative half", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"clip high", 1.5, 32767},
		{"clip low", -2, -32768},
		{"full scale", 1, 32767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestDeinterleave(t *testing.T) {
	src := make([]byte, 3*BytesPerFrame)
	values := []int16{100, -100, 16384, -16384, 0, 32767}
	for i, v := range values {
		binary.LittleEndian.PutUint16(src[i*2:], uint16(v))
	}

	left := make([]float32, 3)
	right := make([]float32, 3)
	n := Deinterleave(src, left, right)
	if n != 3 {
		t.Fatalf("expected 3 frames, got %d", n)
	}
	for i := 0; i < 3; i++ {
		if left[i] != SampleFromInt16(values[i*2]) {
			t.Errorf("left %d: got %v", i, left[i])
		}
		if right[i] != SampleFromInt16(values[i*2+1]) {
			t.Errorf("right %d: got %v", i, right[i])
		}
	}

	// Destination shorter than source limits the count.
	if n := Deinterleave(src, left[:1], right); n != 1 {
		t.Errorf("expected 1 frame into short destination, got %d", n)
	}
	// A trailing partial frame is ignored.
	if n := Deinterleave(src[:5], left, right); n != 1 {
		t.Errorf("expected partial frame to be dropped, got %d", n)
	}
}

func TestInterleaveFloat32LE(t *testing.T) {
	left := []float32{0.25, -1}
	right := []float32{0.5, 1}
	dst := make([]byte, 16)

	if n := InterleaveFloat32LE(dst, left, right); n != 16 {
		t.Fatalf("expected 16 bytes, got %d", n)
	}
	want := []float32{0.25, 0.5, -1, 1}
	for i, w := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(dst[i*4:]))
		if got != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, got)
		}
	}

	if n := InterleaveFloat32LE(dst[:8], left, right); n != 8 {
		t.Errorf("expected output limited to 8 bytes, got %d", n)
	}
}
