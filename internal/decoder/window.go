// ABOUTME: Sliding read window and MPEG frame splitter for the decode task
// ABOUTME: Refills from the file, resynchronises on garbage, and feeds whole frames to the codec
package decoder

import (
	"context"
	"errors"
	"io"

	"github.com/Sendspin/sendspin-deck/internal/mpeg"
)

// ReadBufferSize is the size of the input window. It holds at least one
// maximum-size MPEG-1 Layer III frame (1441 bytes).
const ReadBufferSize = 2048

// window is a bounded byte buffer over the track. Bytes before next have
// been handed out; bytes in [next, used) are pending.
type window struct {
	src  io.Reader
	buf  []byte
	used int
	next int
	eof  bool
}

func newWindow(src io.Reader) *window {
	return &window{src: src, buf: make([]byte, ReadBufferSize)}
}

// pending returns the bytes not yet consumed.
func (w *window) pending() []byte {
	return w.buf[w.next:w.used]
}

// refill moves the pending tail to the start of the buffer and tops it up
// from the source.
func (w *window) refill() error {
	if w.next > 0 {
		w.used = copy(w.buf, w.buf[w.next:w.used])
		w.next = 0
	}
	if w.eof || w.used == len(w.buf) {
		return nil
	}

	n, err := io.ReadFull(w.src, w.buf[w.used:])
	w.used += n
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		w.eof = true
		return nil
	default:
		return err
	}
}

// frameHandler sees every frame before the codec does. Returning an error
// stops the stream.
type frameHandler func(h mpeg.Header, frame []byte) error

// splitter cuts the window into validated frames.
type splitter struct {
	win     *window
	onFrame frameHandler
	onSync  func(skipped int)

	skipped int
}

// next returns the next frame. The slice is only valid until the next call.
func (s *splitter) next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := s.win.pending()
		if len(p) < mpeg.HeaderLen {
			if s.win.eof {
				return nil, io.EOF
			}
			if err := s.win.refill(); err != nil {
				return nil, err
			}
			continue
		}

		h, err := mpeg.ParseHeader(p)
		if err != nil {
			// Lost sync: slide forward one byte and try again.
			s.win.next++
			s.skipped++
			continue
		}

		n := h.FrameLen()
		if len(p) < n {
			if s.win.eof {
				// Truncated last frame.
				return nil, io.EOF
			}
			if err := s.win.refill(); err != nil {
				return nil, err
			}
			continue
		}

		if s.skipped > 0 {
			if s.onSync != nil {
				s.onSync(s.skipped)
			}
			s.skipped = 0
		}

		frame := p[:n]
		s.win.next += n
		if s.onFrame != nil {
			if err := s.onFrame(h, frame); err != nil {
				return nil, err
			}
		}
		return frame, nil
	}
}

// frameFeed presents the splitter's frames to the codec as a plain reader.
// It deliberately does not implement io.Seeker.
type frameFeed struct {
	ctx    context.Context
	split  *splitter
	cur    []byte
	frames int
	err    error // first non-EOF error, kept for the engine
}

func (f *frameFeed) Read(p []byte) (int, error) {
	for len(f.cur) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		frame, err := f.split.next(f.ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				f.err = err
			}
			return 0, err
		}
		f.cur = frame
		f.frames++
	}
	n := copy(p, f.cur)
	f.cur = f.cur[n:]
	return n, nil
}
