// ABOUTME: Oto-based audio output implementation
// ABOUTME: The oto player pulls float32 frames from a reader that runs the callback
package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"
)

// oto allows one context per process; it survives Close and is reused.
var (
	otoMu      sync.Mutex
	otoCtx     *oto.Context
	otoCtxRate int
)

// Oto output implementation using oto library
type Oto struct {
	log    zerolog.Logger
	player *oto.Player
	source *otoSource
}

// otoSource is read by oto's mixer goroutine.
type otoSource struct {
	q      *quantizer
	closed atomic.Bool
}

func (s *otoSource) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.EOF
	}
	return s.q.readFloat32LE(p), nil
}

// NewOto creates a new Oto output
func NewOto(log zerolog.Logger) Output {
	return &Oto{log: log.With().Str("component", "oto").Logger()}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, quantum int, cb Callback) error {
	otoMu.Lock()
	defer otoMu.Unlock()

	if o.player != nil {
		return fmt.Errorf("output already open")
	}

	if otoCtx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(quantum) * time.Second / time.Duration(sampleRate),
		})
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-ready
		otoCtx = ctx
		otoCtxRate = sampleRate
	} else if otoCtxRate != sampleRate {
		// oto cannot be reinitialised with a new rate.
		return fmt.Errorf("oto context already running at %d Hz", otoCtxRate)
	} else if err := otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}

	o.source = &otoSource{q: newQuantizer(cb, quantum)}
	o.player = otoCtx.NewPlayer(o.source)
	o.player.SetBufferSize(quantum * bytesPerFloatFrame)
	o.player.Play()

	o.log.Info().Int("sample_rate", sampleRate).Int("quantum", quantum).Msg("Audio output initialized")
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	otoMu.Lock()
	defer otoMu.Unlock()

	if o.player == nil {
		return nil
	}
	o.source.closed.Store(true)
	err := o.player.Close()
	o.player = nil
	if otoCtx != nil {
		if serr := otoCtx.Suspend(); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
