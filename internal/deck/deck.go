// ABOUTME: Deck controller: the serialized state machine behind every control surface
// ABOUTME: Owns the track, the rings and the decoder supervisor
package deck

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/decoder"
	"github.com/Sendspin/sendspin-deck/internal/mpeg"
	"github.com/Sendspin/sendspin-deck/internal/ring"
	"github.com/Sendspin/sendspin-deck/pkg/audio/decode"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNoTrack           = errors.New("no track loaded")
	ErrCueOutOfRange     = errors.New("cue point out of range")
	ErrQuit              = errors.New("deck has quit")
)

// Config holds deck configuration
type Config struct {
	SampleRate  int     // output sample rate, reported by the audio driver
	RingSeconds float64 // ring capacity per channel
	RootDir     string  // relative load paths are resolved against this

	NewDecoder   decode.Factory // nil selects MP3
	PollInterval time.Duration  // decode task ring-full sleep
	SignalPoll   time.Duration  // control loop check of realtime signals

	Logger zerolog.Logger
}

// Status is a snapshot of everything a control surface shows.
type Status struct {
	State      State   `json:"state"`
	Position   float64 `json:"position"`
	Duration   float64 `json:"duration"`
	Cuepoint   float64 `json:"cuepoint"`
	Filepath   string  `json:"filepath"`
	Filename   string  `json:"filename"`
	Error      string  `json:"error,omitempty"`
	SampleRate int     `json:"sample_rate"`
	Bitrate    int     `json:"bitrate"`
	VBR        bool    `json:"vbr"`
	Buffered   float64 `json:"buffered"`
	Framed     bool    `json:"framed"`     // framing learned from the first header
	TrackRate  int     `json:"track_rate"` // sample rate of the file
	FrameSize  float64 `json:"frame_size"` // mean bytes per frame

	Decoder decoder.Stats `json:"decoder"`
}

// realtime signals raised by the callback
const (
	signalNone int32 = iota
	signalEndOfTrack
	signalUnderrun
)

// Deck is the single playback unit. All operations are safe for
// concurrent use; they are serialized by one mutex. The realtime
// callback (Process) never takes that mutex.
type Deck struct {
	cfg Config
	log zerolog.Logger

	mu            sync.Mutex
	playWhenReady bool
	lastError     string
	track         *Track

	left, right *ring.Ring
	sup         *decoder.Supervisor

	// read by the realtime callback
	state    atomic.Int32
	position atomic.Uint64 // float64 bits, seconds
	signal   atomic.Int32
	inflight atomic.Int32

	watchMu  sync.Mutex
	watchers map[chan State]struct{}

	done     chan struct{}
	quitOnce sync.Once
}

// New creates a deck in the Starting state.
func New(cfg Config) *Deck {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.RingSeconds <= 0 {
		cfg.RingSeconds = 2.0
	}
	if cfg.SignalPoll <= 0 {
		cfg.SignalPoll = 5 * time.Millisecond
	}

	capacity := int(float64(cfg.SampleRate) * cfg.RingSeconds)
	d := &Deck{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "deck").Logger(),
		left:     ring.New(capacity),
		right:    ring.New(capacity),
		watchers: make(map[chan State]struct{}),
		done:     make(chan struct{}),
	}
	d.sup = decoder.NewSupervisor(decoder.Config{
		SampleRate:   cfg.SampleRate,
		Left:         d.left,
		Right:        d.right,
		NewDecoder:   cfg.NewDecoder,
		PollInterval: cfg.PollInterval,
		Logger:       cfg.Logger,
	})
	d.state.Store(int32(Starting))
	return d
}

// SampleRate is the output rate the deck was configured with.
func (d *Deck) SampleRate() int {
	return d.cfg.SampleRate
}

// Done is closed once the deck has quit.
func (d *Deck) Done() <-chan struct{} {
	return d.done
}

// Watch returns a channel that receives the latest state after every
// transition. Slow readers only see the most recent state. Call the
// returned function to stop watching.
func (d *Deck) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)
	d.watchMu.Lock()
	d.watchers[ch] = struct{}{}
	d.watchMu.Unlock()

	return ch, func() {
		d.watchMu.Lock()
		delete(d.watchers, ch)
		d.watchMu.Unlock()
	}
}

func (d *Deck) notify(s State) {
	d.watchMu.Lock()
	defer d.watchMu.Unlock()
	for ch := range d.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// setState must be called with mu held.
func (d *Deck) setState(s State) {
	old := State(d.state.Swap(int32(s)))
	if old == s {
		return
	}
	if old == Playing {
		// Wait out any callback that saw Playing, then drop what it raised.
		d.quiesce()
		d.signal.Store(signalNone)
	}
	d.log.Debug().Stringer("from", old).Stringer("to", s).Msg("State change")
	d.notify(s)
}

// quiesce waits until no realtime callback is in progress.
func (d *Deck) quiesce() {
	for d.inflight.Load() != 0 {
		runtime.Gosched()
	}
}

func (d *Deck) current() State {
	return State(d.state.Load())
}

func (d *Deck) setPosition(p float64) {
	d.position.Store(math.Float64bits(p))
}

func (d *Deck) reject(op string, err error) error {
	d.log.Warn().Str("op", op).Stringer("state", d.current()).Err(err).Msg("Command rejected")
	return fmt.Errorf("%s: %w", op, err)
}

func (d *Deck) invalid(op string) error {
	return d.reject(op, fmt.Errorf("%w from %s", ErrInvalidTransition, d.current()))
}

// Load ejects any current track, opens path and cues it to zero.
func (d *Deck) Load(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Str("path", path).Msg("load")

	switch d.current() {
	case Quit:
		return d.reject("load", ErrQuit)
	case Loading:
		return d.invalid("load")
	}

	if d.track != nil {
		d.ejectLocked()
	}

	resolved := resolvePath(d.cfg.RootDir, path)
	t, err := openTrack(path, resolved)
	if err != nil {
		d.lastError = err.Error()
		d.setState(Empty)
		d.log.Error().Err(err).Str("path", resolved).Msg("Failed to open file")
		return fmt.Errorf("load: %w", err)
	}
	d.track = t
	d.log.Info().
		Str("file", resolved).
		Int64("audio_start", t.index.Start()).
		Int64("audio_end", t.index.End()).
		Msg("Loaded track")

	d.setPosition(0)
	d.setState(Loading)
	return d.cueLocked(0)
}

// Cue stores point as the cue point and restarts decoding from it.
func (d *Deck) Cue(point float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Float64("cuepoint", point).Msg("cue")

	if err := d.cueable("cue"); err != nil {
		return err
	}
	if d.current() == Ready && point == d.track.cued {
		return nil
	}
	if err := d.setCuepointLocked("cue", point); err != nil {
		return err
	}
	return d.cueLocked(point)
}

// Recue restarts decoding from the stored cue point.
func (d *Deck) Recue() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Msg("cue")

	if err := d.cueable("cue"); err != nil {
		return err
	}
	if d.current() == Ready && d.track.cued == d.track.cuepoint {
		return nil
	}
	return d.cueLocked(d.track.cuepoint)
}

// SetCuepoint stores point without seeking.
func (d *Deck) SetCuepoint(point float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Float64("cuepoint", point).Msg("set_cuepoint")

	if d.track == nil {
		return d.reject("set_cuepoint", ErrNoTrack)
	}
	return d.setCuepointLocked("set_cuepoint", point)
}

// SetCuepointHere stores the current position as the cue point.
func (d *Deck) SetCuepointHere() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.track == nil {
		return d.reject("set_cuepoint", ErrNoTrack)
	}
	return d.setCuepointLocked("set_cuepoint", d.Position())
}

func (d *Deck) cueable(op string) error {
	switch {
	case d.current() == Quit:
		return d.reject(op, ErrQuit)
	case d.track == nil:
		return d.reject(op, ErrNoTrack)
	case d.current() == Error:
		return d.invalid(op)
	}
	return nil
}

func (d *Deck) setCuepointLocked(op string, point float64) error {
	duration := d.track.index.Duration()
	if math.IsNaN(point) || point < 0 || (duration > 0 && point >= duration) {
		return d.reject(op, fmt.Errorf("%w: %.3f not in [0, %.3f)", ErrCueOutOfRange, point, duration))
	}
	d.track.cuepoint = point
	return nil
}

func (d *Deck) cueLocked(point float64) error {
	if s := d.current(); s == Playing || s == Paused {
		d.stopLocked()
	}

	p, err := d.track.index.Seek(point)
	cued := point
	switch {
	case errors.Is(err, mpeg.ErrUnknownFraming):
		d.log.Warn().Float64("cuepoint", point).Msg("Duration not known yet, cueing to the start")
		// The point was not reached; a later cue to it must seek.
		cued = math.NaN()
	case err != nil:
		return d.reject("cue", fmt.Errorf("%w: %v", ErrCueOutOfRange, err))
	}

	d.quiesce()
	d.signal.Store(signalNone)
	d.setPosition(p.Position)
	d.track.cued = cued

	run := d.sup.Start(decoder.Job{
		Source: d.track.file,
		Index:  d.track.index,
		Offset: p.Offset,
	})
	d.log.Debug().
		Uint64("run", run).
		Int64("offset", p.Offset).
		Float64("position", p.Position).
		Msg("Cued")
	d.setState(Loading)
	return nil
}

// Play starts playback, or arranges for it to start once loading finishes.
func (d *Deck) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Msg("play")

	switch d.current() {
	case Ready, Paused:
		d.setState(Playing)
		return nil
	case Loading:
		d.playWhenReady = true
		return nil
	case Playing:
		return nil
	}
	return d.invalid("play")
}

// Pause holds playback at the current position.
func (d *Deck) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Msg("pause")

	if d.current() != Playing {
		return d.invalid("pause")
	}
	d.setState(Paused)
	return nil
}

// Stop halts playback and the decode task.
func (d *Deck) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Msg("stop")

	if !d.current().active() {
		return d.invalid("stop")
	}
	d.stopLocked()
	return nil
}

func (d *Deck) stopLocked() {
	d.playWhenReady = false
	d.setState(Stopped)
	d.sup.Stop()
}

// Eject closes the track and empties the deck.
func (d *Deck) Eject() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Msg("eject")

	switch {
	case d.current() == Quit:
		return d.reject("eject", ErrQuit)
	case d.track == nil:
		return d.reject("eject", ErrNoTrack)
	}
	d.ejectLocked()
	return nil
}

func (d *Deck) ejectLocked() {
	if d.current().active() {
		d.stopLocked()
	}
	d.sup.Stop()

	if err := d.track.close(); err != nil {
		d.log.Warn().Err(err).Msg("Failed to close file")
	}
	d.log.Info().Str("file", d.track.resolved).Msg("Ejected track")
	d.track = nil

	d.quiesce()
	d.left.Reset()
	d.right.Reset()
	d.setPosition(0)
	d.playWhenReady = false
	d.setState(Empty)
}

// Quit stops everything and moves to the terminal state.
func (d *Deck) Quit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Debug().Msg("quit")

	if d.current() == Quit {
		return
	}
	d.setState(Quit)
	d.sup.Stop()
	if d.track != nil {
		d.track.close()
	}
	d.quitOnce.Do(func() { close(d.done) })
}

// ReportError records err and forces the Error state.
func (d *Deck) ReportError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reportErrorLocked(err)
}

func (d *Deck) reportErrorLocked(err error) {
	if d.current() == Quit {
		return
	}
	d.log.Error().Err(err).Msg("Deck error")
	d.lastError = err.Error()
	d.playWhenReady = false
	d.setState(Error)
	d.sup.Stop()
}

// State returns the current state. Lock-free.
func (d *Deck) State() State {
	return d.current()
}

// Position returns the play position in seconds. Lock-free.
func (d *Deck) Position() float64 {
	return math.Float64frombits(d.position.Load())
}

// Duration returns the track length in seconds, or zero when unknown.
func (d *Deck) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return 0
	}
	return d.track.index.Duration()
}

// Filepath returns the path given to Load, or "" when empty.
func (d *Deck) Filepath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return ""
	}
	return d.track.filepath
}

// Filename returns the loaded file's name without extension.
func (d *Deck) Filename() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return ""
	}
	return d.track.filename
}

// Cuepoint returns the stored cue point.
func (d *Deck) Cuepoint() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return 0
	}
	return d.track.cuepoint
}

// LastError returns the most recently recorded error text.
func (d *Deck) LastError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastError
}

// Stats returns the decode task's statistics.
func (d *Deck) Stats() decoder.Stats {
	return d.sup.Stats()
}

// Status returns a consistent snapshot of the deck.
func (d *Deck) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := Status{
		State:      d.current(),
		Position:   d.Position(),
		Error:      d.lastError,
		SampleRate: d.cfg.SampleRate,
		Buffered:   float64(d.left.ReadSpace()) / float64(d.cfg.SampleRate),
		Decoder:    d.sup.Stats(),
	}
	if t := d.track; t != nil {
		st.Duration = t.index.Duration()
		st.Cuepoint = t.cuepoint
		st.Filepath = t.filepath
		st.Filename = t.filename
		st.Bitrate = t.index.Bitrate()
		st.VBR = t.index.VBR()
		if t.index.Known() {
			st.Framed = true
			st.TrackRate = t.index.SampleRate()
			st.FrameSize = t.index.FrameSize()
		}
	}
	return st
}
