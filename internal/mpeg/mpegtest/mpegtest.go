// ABOUTME: Synthetic MPEG-1 Layer III fixtures for tests
// ABOUTME: Builds silent frame streams and ID3 tags without binary test data
package mpegtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Sendspin/sendspin-deck/internal/mpeg"
)

// Options describes a synthetic stream. Zero values pick 128 kbps,
// 44100 Hz, stereo, no CRC.
type Options struct {
	Frames     int
	Bitrate    int // kbps
	SampleRate int
	Mono       bool
	Protected  bool
}

func (o Options) withDefaults() Options {
	if o.Bitrate == 0 {
		o.Bitrate = 128
	}
	if o.SampleRate == 0 {
		o.SampleRate = 44100
	}
	return o
}

// FramesFor returns how many frames cover the given duration.
func FramesFor(seconds float64, sampleRate int) int {
	n := int(seconds * float64(sampleRate) / mpeg.SamplesPerFrame)
	if float64(n*mpeg.SamplesPerFrame) < seconds*float64(sampleRate) {
		n++
	}
	return n
}

// Frames builds a stream of silent frames. Padding is spread the way an
// encoder spreads it, so frame i starts at floor(i * 144 * bitrate / rate).
func Frames(opt Options) []byte {
	opt = opt.withDefaults()
	bps := int64(opt.Bitrate) * 1000
	rate := int64(opt.SampleRate)

	var out []byte
	for i := int64(0); i < int64(opt.Frames); i++ {
		begin := i * 144 * bps / rate
		end := (i + 1) * 144 * bps / rate
		padded := end-begin > 144*bps/rate
		out = append(out, Frame(opt, padded)...)
	}
	return out
}

// Frame builds one silent frame.
func Frame(opt Options, padded bool) []byte {
	opt = opt.withDefaults()

	b1 := byte(0xFB)
	if opt.Protected {
		b1 = 0xFA
	}
	b2 := bitrateIndex(opt.Bitrate)<<4 | rateIndex(opt.SampleRate)<<2
	if padded {
		b2 |= 0x02
	}
	var b3 byte
	if opt.Mono {
		b3 = 0xC0
	}

	hdr := []byte{0xFF, b1, b2, b3}
	h, err := mpeg.ParseHeader(hdr)
	if err != nil {
		panic(err)
	}

	frame := make([]byte, h.FrameLen())
	copy(frame, hdr)
	if opt.Protected {
		crc := mpeg.FrameCRC(h, frame)
		frame[4] = byte(crc >> 8)
		frame[5] = byte(crc)
	}
	return frame
}

// ID3v2 builds a leading tag with a body of n zero bytes.
func ID3v2(n int, footer bool) []byte {
	size := syncsafe(n)
	flags := byte(0)
	if footer {
		flags = 0x10
	}
	tag := append([]byte{'I', 'D', '3', 4, 0, flags}, size...)
	tag = append(tag, make([]byte, n)...)
	if footer {
		tag = append(tag, '3', 'D', 'I', 4, 0, flags)
		tag = append(tag, size...)
	}
	return tag
}

// ID3v1 builds a 128-byte trailing tag.
func ID3v1() []byte {
	tag := make([]byte, 128)
	copy(tag, "TAG")
	copy(tag[3:], "Silence")
	return tag
}

// WriteFile concatenates parts into a file under dir and returns its path.
func WriteFile(t testing.TB, dir, name string, parts ...[]byte) string {
	t.Helper()

	var data []byte
	for _, p := range parts {
		data = append(data, p...)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func syncsafe(n int) []byte {
	return []byte{
		byte(n>>21) & 0x7F,
		byte(n>>14) & 0x7F,
		byte(n>>7) & 0x7F,
		byte(n) & 0x7F,
	}
}

func bitrateIndex(kbps int) byte {
	for i, v := range []int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320} {
		if v == kbps {
			return byte(i)
		}
	}
	panic("mpegtest: unsupported bitrate")
}

func rateIndex(rate int) byte {
	switch rate {
	case 44100:
		return 0
	case 48000:
		return 1
	case 32000:
		return 2
	}
	panic("mpegtest: unsupported sample rate")
}
