//go:build !linux

// ABOUTME: PulseAudio stub for platforms without a pulse server
// ABOUTME: Keeps the backend name selectable everywhere
package output

import (
	"errors"

	"github.com/rs/zerolog"
)

// Pulse output implementation (stub)
type Pulse struct{}

// NewPulse creates a new PulseAudio output
func NewPulse(zerolog.Logger) Output {
	return &Pulse{}
}

// Open always fails on this platform
func (p *Pulse) Open(int, int, Callback) error {
	return errors.New("PulseAudio output is only available on linux")
}

// Close releases resources
func (p *Pulse) Close() error {
	return nil
}
