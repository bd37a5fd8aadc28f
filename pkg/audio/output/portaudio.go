//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Non-interleaved float32 stream whose buffers are exactly one quantum
package output

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// PortAudio output implementation
type PortAudio struct {
	log    zerolog.Logger
	stream *portaudio.Stream
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio(log zerolog.Logger) Output {
	return &PortAudio{log: log.With().Str("component", "portaudio").Logger()}
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, quantum int, cb Callback) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), quantum, func(out [][]float32) {
		cb.Process(out[0], out[1])
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.stream = stream

	p.log.Info().Int("sample_rate", sampleRate).Int("quantum", quantum).Msg("Audio output initialized")
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil
	return portaudio.Terminate()
}
