// ABOUTME: Software-clocked output with optional WAV capture
// ABOUTME: Drives the callback in real time without a sound card ("null" and "wav" backends)
package output

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-deck/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// Clock calls the callback once per quantum period from a ticker. With a
// record path every quantum is also written to a 16-bit stereo WAV file.
type Clock struct {
	log        zerolog.Logger
	recordPath string

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	file    *os.File
	encoder *wav.Encoder
	err     error
}

// NewClock creates a clocked output. recordPath may be empty.
func NewClock(log zerolog.Logger, recordPath string) Output {
	return &Clock{
		log:        log.With().Str("component", "clock").Logger(),
		recordPath: recordPath,
	}
}

// Open starts the clock
func (c *Clock) Open(sampleRate, quantum int, cb Callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return fmt.Errorf("output already open")
	}
	if sampleRate <= 0 || quantum <= 0 {
		return fmt.Errorf("invalid clock format: %d Hz, %d frames", sampleRate, quantum)
	}

	if c.recordPath != "" {
		f, err := os.Create(c.recordPath)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		c.file = f
		c.encoder = wav.NewEncoder(f, sampleRate, 16, audio.Channels, 1)
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.err = nil
	period := time.Duration(quantum) * time.Second / time.Duration(sampleRate)
	go c.run(period, sampleRate, quantum, cb)

	c.log.Info().
		Int("sample_rate", sampleRate).
		Int("quantum", quantum).
		Dur("period", period).
		Str("record", c.recordPath).
		Msg("Audio output initialized")
	return nil
}

func (c *Clock) run(period time.Duration, sampleRate, quantum int, cb Callback) {
	defer close(c.done)

	left := make([]float32, quantum)
	right := make([]float32, quantum)
	var buf *goaudio.IntBuffer
	if c.encoder != nil {
		buf = &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: audio.Channels, SampleRate: sampleRate},
			Data:           make([]int, quantum*audio.Channels),
			SourceBitDepth: 16,
		}
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		cb.Process(left, right)
		if buf == nil {
			continue
		}
		for i := range left {
			buf.Data[2*i] = int(audio.SampleToInt16(left[i]))
			buf.Data[2*i+1] = int(audio.SampleToInt16(right[i]))
		}
		if err := c.encoder.Write(buf); err != nil {
			c.log.Error().Err(err).Msg("Recording failed, continuing without it")
			c.err = err
			buf = nil
		}
	}
}

// Close stops the clock and finalizes any recording
func (c *Clock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop == nil {
		return nil
	}
	close(c.stop)
	<-c.done
	c.stop = nil

	err := c.err
	if c.encoder != nil {
		if cerr := c.encoder.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize recording: %w", cerr)
		}
		c.encoder = nil
	}
	if c.file != nil {
		if cerr := c.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		c.file = nil
	}
	return err
}
