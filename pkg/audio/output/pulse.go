//go:build linux

// ABOUTME: PulseAudio output implementation
// ABOUTME: Native protocol client; the playback stream pulls interleaved float32
package output

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/rs/zerolog"
)

// Pulse output implementation using the PulseAudio native protocol
type Pulse struct {
	log    zerolog.Logger
	client *pulse.Client
	stream *pulse.PlaybackStream
}

// NewPulse creates a new PulseAudio output
func NewPulse(log zerolog.Logger) Output {
	return &Pulse{log: log.With().Str("component", "pulse").Logger()}
}

// Open connects to the server and starts a stereo playback stream
func (p *Pulse) Open(sampleRate, quantum int, cb Callback) error {
	client, err := pulse.NewClient(pulse.ClientApplicationName("Sendspin Deck"))
	if err != nil {
		return fmt.Errorf("failed to connect to pulseaudio: %w", err)
	}

	q := newQuantizer(cb, quantum)
	stream, err := client.NewPlayback(
		pulse.Float32Reader(func(out []float32) (int, error) {
			return q.readInterleaved(out), nil
		}),
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackBufferSize(quantum),
		pulse.PlaybackMediaName("deck"),
	)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to create playback stream: %w", err)
	}
	stream.Start()

	p.client = client
	p.stream = stream
	p.log.Info().Int("sample_rate", sampleRate).Int("quantum", quantum).Msg("Audio output initialized")
	return nil
}

// Close stops the stream and disconnects
func (p *Pulse) Close() error {
	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	return nil
}
