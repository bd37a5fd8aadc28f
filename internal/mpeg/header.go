// ABOUTME: MPEG audio frame header parsing and CRC verification
// ABOUTME: Recognises MPEG-1 Layer III frames, the only framing the deck indexes
package mpeg

import (
	"errors"
	"fmt"
)

// SamplesPerFrame is the number of PCM samples per channel in one
// MPEG-1 Layer III frame.
const SamplesPerFrame = 1152

// HeaderLen is the size of a frame header in bytes.
const HeaderLen = 4

var (
	ErrNoSync      = errors.New("mpeg: no frame sync")
	ErrBadHeader   = errors.New("mpeg: invalid frame header")
	ErrUnsupported = errors.New("mpeg: unsupported version or layer")
	ErrBadCRC      = errors.New("mpeg: frame CRC mismatch")
)

// ChannelMode is the two-bit channel mode field.
type ChannelMode int

const (
	Stereo ChannelMode = iota
	JointStereo
	DualChannel
	Mono
)

var bitratesKbps = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1}

var sampleRates = [4]int{44100, 48000, 32000, -1}

// Header is a decoded MPEG-1 Layer III frame header.
type Header struct {
	Bitrate    int // bits per second
	SampleRate int
	Padding    bool
	Protected  bool // a CRC-16 follows the header
	Mode       ChannelMode
}

// ParseHeader decodes the four header bytes at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrNoSync
	}
	if b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return Header{}, ErrNoSync
	}

	version := (b[1] >> 3) & 0x03
	layer := (b[1] >> 1) & 0x03
	if version == 0x01 || layer == 0x00 {
		return Header{}, ErrBadHeader
	}
	if version != 0x03 || layer != 0x01 {
		return Header{}, ErrUnsupported
	}

	brIndex := b[2] >> 4
	srIndex := (b[2] >> 2) & 0x03
	kbps := bitratesKbps[brIndex]
	rate := sampleRates[srIndex]
	// Free-format streams have no computable frame length.
	if kbps <= 0 || rate < 0 {
		return Header{}, ErrBadHeader
	}

	return Header{
		Bitrate:    kbps * 1000,
		SampleRate: rate,
		Padding:    b[2]&0x02 != 0,
		Protected:  b[1]&0x01 == 0,
		Mode:       ChannelMode(b[3] >> 6),
	}, nil
}

// Channels returns 1 for mono frames, 2 otherwise.
func (h Header) Channels() int {
	if h.Mode == Mono {
		return 1
	}
	return 2
}

// FrameLen returns the full frame length in bytes, header included.
func (h Header) FrameLen() int {
	n := 144 * h.Bitrate / h.SampleRate
	if h.Padding {
		n++
	}
	return n
}

// SideInfoLen returns the size of the side information block.
func (h Header) SideInfoLen() int {
	if h.Mode == Mono {
		return 17
	}
	return 32
}

func (h Header) String() string {
	return fmt.Sprintf("%d kbps, %d Hz, %d ch", h.Bitrate/1000, h.SampleRate, h.Channels())
}

// CheckCRC verifies the CRC-16 of a protected frame. Unprotected frames
// always pass. frame must hold at least the header, CRC and side info.
func CheckCRC(h Header, frame []byte) error {
	if !h.Protected {
		return nil
	}
	end := HeaderLen + 2 + h.SideInfoLen()
	if len(frame) < end {
		return ErrBadCRC
	}

	want := uint16(frame[4])<<8 | uint16(frame[5])
	if FrameCRC(h, frame) != want {
		return ErrBadCRC
	}
	return nil
}

// FrameCRC computes the CRC-16 protecting a frame's header and side info.
func FrameCRC(h Header, frame []byte) uint16 {
	crc := crc16(0xFFFF, frame[2:4])
	return crc16(crc, frame[6:HeaderLen+2+h.SideInfoLen()])
}

// crc16 is CRC-16 with polynomial 0x8005, MSB first, as used by MPEG audio.
func crc16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
