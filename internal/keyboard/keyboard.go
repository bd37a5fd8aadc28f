// ABOUTME: Raw-terminal single-key deck control for running without the TUI
// ABOUTME: Reads keys, prompts for arguments and keeps a [pos/dur] status line fresh
package keyboard

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/control"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const statusInterval = 100 * time.Millisecond

const (
	keyCtrlC     = 3
	keyBackspace = 127
	keyEscape    = 27
)

// Config holds keyboard configuration
type Config struct {
	In     io.Reader // defaults to os.Stdin
	Out    io.Writer // defaults to os.Stdout
	Quiet  bool      // suppress the status line
	Logger zerolog.Logger
}

// Keyboard turns key presses into deck commands
type Keyboard struct {
	config     Config
	log        zerolog.Logger
	dispatcher *control.Dispatcher
	keys       chan byte
}

// New creates a keyboard reader driving d
func New(config Config, d *control.Dispatcher) *Keyboard {
	if config.In == nil {
		config.In = os.Stdin
	}
	if config.Out == nil {
		config.Out = os.Stdout
	}
	return &Keyboard{
		config:     config,
		log:        config.Logger.With().Str("component", "keyboard").Logger(),
		dispatcher: d,
		keys:       make(chan byte, 16),
	}
}

// Run reads keys until q, end of input or ctx is cancelled.
func (k *Keyboard) Run(ctx context.Context) error {
	if f, ok := k.config.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		old, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer term.Restore(int(f.Fd()), old)
	}

	eof := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go k.read(eof, done)

	k.println("Press h for help")

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-eof:
			// keys read before end of input are still queued
			for {
				key, ok := k.next(ctx, eof)
				if !ok || k.handle(ctx, key, eof) {
					return nil
				}
			}
		case <-ticker.C:
			k.status()
		case key := <-k.keys:
			if quit := k.handle(ctx, key, eof); quit {
				return nil
			}
		}
	}
}

// read feeds k.keys one byte at a time until end of input or done. It
// cannot be interrupted while blocked on the terminal; it exits at the
// next byte after done is closed.
func (k *Keyboard) read(eof chan<- struct{}, done <-chan struct{}) {
	buf := make([]byte, 1)
	for {
		n, err := k.config.In.Read(buf)
		if n == 1 {
			select {
			case k.keys <- buf[0]:
			case <-done:
				return
			}
		}
		if err != nil {
			close(eof)
			return
		}
	}
}

func (k *Keyboard) handle(ctx context.Context, key byte, eof <-chan struct{}) bool {
	switch key {
	case 'h':
		k.println("")
		for _, line := range control.KeyHelp {
			k.println(line)
		}
		return false
	case keyCtrlC:
		key = 'q'
	case '\r', '\n', ' ':
		return false
	}

	var arg string
	if prompt := control.Prompt(rune(key)); prompt != "" {
		var ok bool
		if arg, ok = k.readLine(ctx, prompt, eof); !ok {
			return false
		}
	}

	if err := k.dispatcher.Key(rune(key), arg); err != nil {
		k.println("")
		k.println(err.Error())
	}
	return key == 'q'
}

// next returns the next queued key, preferring queued keys over end of input.
func (k *Keyboard) next(ctx context.Context, eof <-chan struct{}) (byte, bool) {
	select {
	case b := <-k.keys:
		return b, true
	default:
	}
	select {
	case b := <-k.keys:
		return b, true
	case <-ctx.Done():
		return 0, false
	case <-eof:
		select {
		case b := <-k.keys:
			return b, true
		default:
			return 0, false
		}
	}
}

// readLine collects an answer with minimal editing. Escape cancels.
func (k *Keyboard) readLine(ctx context.Context, prompt string, eof <-chan struct{}) (string, bool) {
	k.println("")
	fmt.Fprint(k.config.Out, prompt)

	var line []byte
	for {
		b, ok := k.next(ctx, eof)
		if !ok {
			return string(line), len(line) > 0
		}
		switch b {
		case '\r', '\n':
			k.println("")
			return string(line), true
		case keyEscape, keyCtrlC:
			k.println("")
			return "", false
		case keyBackspace, '\b':
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Fprint(k.config.Out, "\b \b")
			}
		default:
			line = append(line, b)
			fmt.Fprintf(k.config.Out, "%c", b)
		}
	}
}

func (k *Keyboard) status() {
	if k.config.Quiet {
		return
	}
	fmt.Fprint(k.config.Out, StatusLine(k.dispatcher.Deck().Position(), k.dispatcher.Deck().Duration()))
}

// StatusLine renders the running position line.
func StatusLine(position, duration float64) string {
	return fmt.Sprintf("\r[%1.1f/%1.1f]", position, duration)
}

// println ends lines with \r\n, which raw mode needs.
func (k *Keyboard) println(s string) {
	fmt.Fprint(k.config.Out, s+"\r\n")
}
