// ABOUTME: Per-track decode task: input window, header checks, codec, ring output
// ABOUTME: Reports readiness and fatal errors to the deck through events
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/mpeg"
	"github.com/Sendspin/sendspin-deck/internal/ring"
	"github.com/Sendspin/sendspin-deck/pkg/audio"
	"github.com/Sendspin/sendspin-deck/pkg/audio/decode"
	"github.com/rs/zerolog"
)

var (
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	ErrNoAudio            = errors.New("got to end of input file before putting any audio in the ringbuffer")
	ErrUnderrun           = errors.New("audio ringbuffer underrun")
)

// EventKind identifies what a decode task is reporting.
type EventKind int

const (
	// EventReady means enough audio is buffered to start playback.
	EventReady EventKind = iota + 1
	// EventFailed means the task hit an unrecoverable error and exited.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is posted by a decode task. Run identifies the task so the
// receiver can ignore events from a task it has since replaced.
type Event struct {
	Kind EventKind
	Run  uint64
	Err  error
}

// Config holds decode engine configuration
type Config struct {
	SampleRate   int        // rate of the realtime output; files must match
	Left, Right  *ring.Ring // one ring per output channel
	NewDecoder   decode.Factory
	PollInterval time.Duration // sleep while the rings are full
	Logger       zerolog.Logger
}

// Job describes one decode run.
type Job struct {
	Source io.ReadSeeker
	Index  *mpeg.Index
	Offset int64 // absolute byte offset to start decoding from
}

// engine is the body of one decode task.
type engine struct {
	cfg    Config
	run    uint64
	job    Job
	events chan<- Event
	stats  *stats
	log    zerolog.Logger

	readySent bool
	failed    bool
}

func (e *engine) send(ctx context.Context, ev Event) {
	ev.Run = e.run
	select {
	case e.events <- ev:
	case <-ctx.Done():
	}
}

func (e *engine) ready(ctx context.Context) {
	if e.readySent {
		return
	}
	e.readySent = true
	e.log.Debug().Int("buffered", e.cfg.Left.ReadSpace()).Msg("Ringbuffer primed, deck ready")
	e.send(ctx, Event{Kind: EventReady})
}

func (e *engine) fail(ctx context.Context, err error) {
	if e.failed || ctx.Err() != nil {
		return
	}
	e.failed = true
	e.log.Error().Err(err).Msg("Decoding failed")
	e.send(ctx, Event{Kind: EventFailed, Err: err})
}

// header is called for every frame before it reaches the codec.
func (e *engine) header(h mpeg.Header, frame []byte) error {
	if h.SampleRate != e.cfg.SampleRate {
		return fmt.Errorf("%w: input file is %d Hz, output is %d Hz",
			ErrSampleRateMismatch, h.SampleRate, e.cfg.SampleRate)
	}

	first, vbr, err := e.job.Index.Learn(h)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSampleRateMismatch, err)
	}
	if first {
		e.log.Debug().
			Int("bitrate_kbps", h.Bitrate/1000).
			Int("sample_rate", h.SampleRate).
			Float64("duration", e.job.Index.Duration()).
			Msg("Learned stream framing")
	}
	if vbr {
		e.log.Warn().Msg("Bitrate changed during decoding, VBR is not recommended")
	}

	if err := mpeg.CheckCRC(h, frame); err != nil {
		e.stats.badCRC.Add(1)
		e.log.Debug().Err(err).Msg("Recoverable decoding error")
	}

	e.stats.bitrate.Store(int64(h.Bitrate))
	e.stats.frames.Add(1)
	return nil
}

// push writes one block of samples to both rings, waiting for space.
// It returns false if the task was cancelled while waiting.
func (e *engine) push(ctx context.Context, left, right []float32) bool {
	for len(left) > 0 {
		n := e.cfg.Left.WriteSpace()
		if r := e.cfg.Right.WriteSpace(); r < n {
			n = r
		}
		if n == 0 {
			if ctx.Err() != nil {
				return false
			}
			// Rings full while still loading: playback can start.
			e.ready(ctx)
			time.Sleep(e.cfg.PollInterval)
			continue
		}
		if n > len(left) {
			n = len(left)
		}
		e.cfg.Left.Write(left[:n])
		e.cfg.Right.Write(right[:n])
		left, right = left[n:], right[n:]
	}
	return true
}

func (e *engine) runTask(ctx context.Context) {
	if _, err := e.job.Source.Seek(e.job.Offset, io.SeekStart); err != nil {
		e.fail(ctx, fmt.Errorf("failed to seek to byte %d: %w", e.job.Offset, err))
		return
	}

	limit := e.job.Index.End() - e.job.Offset
	if limit < 0 {
		limit = 0
	}
	split := &splitter{
		win:     newWindow(io.LimitReader(e.job.Source, limit)),
		onFrame: e.header,
		onSync: func(skipped int) {
			e.stats.lostSync.Add(1)
			e.log.Debug().Int("skipped_bytes", skipped).Msg("Recoverable decoding error: lost sync")
		},
	}
	feed := &frameFeed{ctx: ctx, split: split}

	codec, err := e.cfg.NewDecoder(feed)
	if err != nil {
		switch {
		case ctx.Err() != nil:
		case feed.err != nil:
			e.fail(ctx, feed.err)
		case feed.frames == 0:
			e.fail(ctx, ErrNoAudio)
		default:
			e.fail(ctx, err)
		}
		return
	}

	pcm := make([]byte, mpeg.SamplesPerFrame*audio.BytesPerFrame)
	left := make([]float32, mpeg.SamplesPerFrame)
	right := make([]float32, mpeg.SamplesPerFrame)

	for {
		n, err := io.ReadFull(codec, pcm)
		if n > 0 {
			frames := audio.Deinterleave(pcm[:n], left, right)
			if !e.push(ctx, left[:frames], right[:frames]) {
				return
			}
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if feed.err != nil {
			e.fail(ctx, feed.err)
			return
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		e.fail(ctx, fmt.Errorf("codec error: %w", err))
		return
	}

	// End of input before the rings filled up.
	if !e.readySent {
		if e.cfg.Left.ReadSpace() == 0 {
			e.fail(ctx, ErrNoAudio)
			return
		}
		e.ready(ctx)
	}
}
