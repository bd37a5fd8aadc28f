// ABOUTME: Owns the single decode task: start, cancel-and-join, run ids
// ABOUTME: Exposes lock-free liveness and stream statistics to other goroutines
package decoder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/sendspin-deck/pkg/audio/decode"
	"github.com/rs/zerolog"
)

// eventBuffer is large enough that a task never blocks on send while the
// deck is busy with one operation.
const eventBuffer = 16

type stats struct {
	frames   atomic.Uint64
	lostSync atomic.Uint64
	badCRC   atomic.Uint64
	bitrate  atomic.Int64
}

func (s *stats) reset() {
	s.frames.Store(0)
	s.lostSync.Store(0)
	s.badCRC.Store(0)
	s.bitrate.Store(0)
}

// Stats is a snapshot of the current task's stream statistics.
type Stats struct {
	Frames   uint64 `json:"frames"`
	LostSync uint64 `json:"lost_sync"`
	BadCRC   uint64 `json:"bad_crc"`
	Bitrate  int    `json:"bitrate"`
	Alive    bool   `json:"alive"`
	Decoding bool   `json:"decoding"`
}

// Supervisor runs at most one decode task at a time.
type Supervisor struct {
	cfg Config
	log zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	run    atomic.Uint64

	alive    atomic.Bool
	decoding atomic.Bool

	events chan Event
	stats  stats
}

// NewSupervisor creates a supervisor. A nil NewDecoder selects the MP3
// codec and a zero PollInterval selects one millisecond.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.NewDecoder == nil {
		cfg.NewDecoder = decode.NewMP3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	return &Supervisor{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "decoder").Logger(),
		events: make(chan Event, eventBuffer),
	}
}

// Start stops any running task, empties both rings and starts a new task
// for job. It returns the new task's run id.
func (s *Supervisor) Start(job Job) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	s.cfg.Left.Reset()
	s.cfg.Right.Reset()
	s.stats.reset()

	run := s.run.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	e := &engine{
		cfg:    s.cfg,
		run:    run,
		job:    job,
		events: s.events,
		stats:  &s.stats,
		log:    s.log.With().Uint64("run", run).Logger(),
	}

	s.alive.Store(true)
	s.decoding.Store(true)
	go func() {
		defer close(done)
		defer s.decoding.Store(false)
		e.log.Debug().Int64("offset", job.Offset).Msg("Decoder task started")
		e.runTask(ctx)
		e.log.Debug().Msg("Decoder task exiting")
	}()
	return run
}

// Stop cancels the running task, if any, and waits for it to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.alive.Store(false)

	if s.decoding.Load() {
		panic("decoder: task still decoding after it was stopped")
	}
}

// Decoding reports whether a task is still producing audio. It is false
// once the task has reached end of input, failed, or been stopped. Safe
// to call from the realtime callback.
func (s *Supervisor) Decoding() bool {
	return s.decoding.Load()
}

// Alive reports whether a task has been started and not yet stopped.
func (s *Supervisor) Alive() bool {
	return s.alive.Load()
}

// Run returns the id of the most recently started task.
func (s *Supervisor) Run() uint64 {
	return s.run.Load()
}

// Events returns the channel tasks report on.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Stats returns a snapshot of the current task's statistics.
func (s *Supervisor) Stats() Stats {
	return Stats{
		Frames:   s.stats.frames.Load(),
		LostSync: s.stats.lostSync.Load(),
		BadCRC:   s.stats.badCRC.Load(),
		Bitrate:  int(s.stats.bitrate.Load()),
		Alive:    s.Alive(),
		Decoding: s.Decoding(),
	}
}
