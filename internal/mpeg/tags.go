// ABOUTME: ID3 tag detection at the head and tail of an MPEG file
// ABOUTME: Finds the byte range holding compressed audio
package mpeg

import (
	"bytes"
	"io"
)

const (
	id3v2HeaderLen = 10
	id3v2FooterLen = 10
	id3v1Len       = 128
)

// syncsafe decodes a 4-byte base-128 integer.
func syncsafe(b []byte) int64 {
	var n int64
	for _, c := range b[:4] {
		n = n<<7 | int64(c&0x7F)
	}
	return n
}

// LeadingTagLen returns the size of an ID3v2 tag at the start of b,
// header and optional footer included, or 0 when b does not start with one.
func LeadingTagLen(b []byte) int64 {
	if len(b) < id3v2HeaderLen || !bytes.Equal(b[:3], []byte("ID3")) {
		return 0
	}
	n := syncsafe(b[6:10]) + id3v2HeaderLen
	if b[5]&0x10 != 0 {
		n += id3v2FooterLen
	}
	return n
}

// appendedTagLen returns the size of an ID3v2 tag whose footer ends at the
// end of b, or 0.
func appendedTagLen(b []byte) int64 {
	if len(b) < id3v2FooterLen {
		return 0
	}
	f := b[len(b)-id3v2FooterLen:]
	if !bytes.Equal(f[:3], []byte("3DI")) {
		return 0
	}
	return syncsafe(f[6:10]) + id3v2HeaderLen + id3v2FooterLen
}

// Bounds locates the compressed audio inside a file of the given size.
// Missing or unreadable tags leave the corresponding bound at the file edge.
func Bounds(r io.ReaderAt, size int64) (start, end int64) {
	end = size

	head := make([]byte, id3v2HeaderLen)
	if n, _ := r.ReadAt(head, 0); n == len(head) {
		start = LeadingTagLen(head)
	}

	tailLen := int64(id3v1Len + id3v2FooterLen)
	if tailLen > size {
		tailLen = size
	}
	tail := make([]byte, tailLen)
	if n, _ := r.ReadAt(tail, size-tailLen); int64(n) == tailLen {
		rest := tail
		if len(rest) >= id3v1Len && bytes.Equal(rest[len(rest)-id3v1Len:][:3], []byte("TAG")) {
			end -= id3v1Len
			rest = rest[:len(rest)-id3v1Len]
		}
		end -= appendedTagLen(rest)
	}

	if start > size {
		start = size
	}
	if end < start {
		end = start
	}
	return start, end
}
