// ABOUTME: Realtime audio output interface and backend selection
// ABOUTME: Every backend pulls fixed quanta of stereo audio from a Callback
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Callback produces one quantum of non-interleaved stereo audio. It is
// invoked from the backend's realtime thread and must not block.
type Callback interface {
	Process(left, right []float32)
}

// Output represents an audio output device
type Output interface {
	// Open starts the device. cb is called once per quantum frames.
	Open(sampleRate, quantum int, cb Callback) error

	// Close stops the device and releases its resources
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Backend    string // see Backends
	RecordPath string // WAV file written by the "wav" backend
	Logger     zerolog.Logger
}

var backends = map[string]func(Config) Output{
	"oto":       func(c Config) Output { return NewOto(c.Logger) },
	"malgo":     func(c Config) Output { return NewMalgo(c.Logger) },
	"portaudio": func(c Config) Output { return NewPortAudio(c.Logger) },
	"pulse":     func(c Config) Output { return NewPulse(c.Logger) },
	"beep":      func(c Config) Output { return NewBeep(c.Logger) },
	"null":      func(c Config) Output { return NewClock(c.Logger, "") },
	"wav":       func(c Config) Output { return NewClock(c.Logger, c.RecordPath) },
}

// Backends lists the names accepted by New.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the backend named in cfg.
func New(cfg Config) (Output, error) {
	name := strings.ToLower(cfg.Backend)
	if name == "" {
		name = "oto"
	}
	create, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown output backend %q (available: %s)", cfg.Backend, strings.Join(Backends(), ", "))
	}
	if name == "wav" && cfg.RecordPath == "" {
		return nil, fmt.Errorf("wav output needs a record path")
	}
	return create(cfg), nil
}
