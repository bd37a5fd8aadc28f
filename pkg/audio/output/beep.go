// ABOUTME: Beep speaker output implementation
// ABOUTME: Plays a streamer that pulls stereo frames from the deck callback
package output

import (
	"fmt"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog"
)

// Beep output implementation using the beep speaker
type Beep struct {
	log  zerolog.Logger
	open bool
}

// NewBeep creates a new beep speaker output
func NewBeep(log zerolog.Logger) Output {
	return &Beep{log: log.With().Str("component", "beep").Logger()}
}

// Open initializes the speaker and starts streaming
func (b *Beep) Open(sampleRate, quantum int, cb Callback) error {
	if b.open {
		return fmt.Errorf("output already open")
	}
	if err := speaker.Init(beep.SampleRate(sampleRate), quantum); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	q := newQuantizer(cb, quantum)
	speaker.Play(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		q.readPairs(samples)
		return len(samples), true
	}))
	b.open = true

	b.log.Info().Int("sample_rate", sampleRate).Int("quantum", quantum).Msg("Audio output initialized")
	return nil
}

// Close stops the speaker
func (b *Beep) Close() error {
	if !b.open {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	b.open = false
	return nil
}
