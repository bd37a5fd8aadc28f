// ABOUTME: Deck application orchestration
// ABOUTME: Wires the deck to its audio output, control server, and TUI or keyboard
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sendspin/sendspin-deck/internal/control"
	"github.com/Sendspin/sendspin-deck/internal/deck"
	"github.com/Sendspin/sendspin-deck/internal/keyboard"
	"github.com/Sendspin/sendspin-deck/internal/server"
	"github.com/Sendspin/sendspin-deck/internal/ui"
	"github.com/Sendspin/sendspin-deck/pkg/audio/output"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var errDeckQuit = errors.New("deck quit")

// Config holds application configuration
type Config struct {
	Name        string
	Port        int
	RootDir     string
	RingSeconds float64
	SampleRate  int
	Quantum     int
	Output      string
	RecordPath  string
	EnableMDNS  bool
	EnableHTTP  bool
	Secret      string
	UseTUI      bool
	Quiet       bool
	InitialFile string
	Input       io.Reader // keyboard input without the TUI, defaults to stdin
	Logger      zerolog.Logger
}

// App is one running deck with its surfaces
type App struct {
	config     Config
	log        zerolog.Logger
	deck       *deck.Deck
	output     output.Output
	server     *server.Server
	dispatcher *control.Dispatcher
}

// New builds the deck and its collaborators without starting anything
func New(config Config) (*App, error) {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.Quantum <= 0 {
		config.Quantum = 1024
	}
	if config.Input == nil {
		config.Input = os.Stdin
	}

	out, err := output.New(output.Config{
		Backend:    config.Output,
		RecordPath: config.RecordPath,
		Logger:     config.Logger,
	})
	if err != nil {
		return nil, err
	}

	d := deck.New(deck.Config{
		SampleRate:  config.SampleRate,
		RingSeconds: config.RingSeconds,
		RootDir:     config.RootDir,
		Logger:      config.Logger,
	})

	a := &App{
		config:     config,
		log:        config.Logger.With().Str("component", "app").Logger(),
		deck:       d,
		output:     out,
		dispatcher: control.NewDispatcher(d, config.Logger),
	}
	if config.EnableHTTP {
		a.server = server.New(server.Config{
			Port:       config.Port,
			Name:       config.Name,
			Secret:     config.Secret,
			EnableMDNS: config.EnableMDNS,
			Logger:     config.Logger,
		}, d)
	}
	return a, nil
}

// Deck returns the application's deck
func (a *App) Deck() *deck.Deck {
	return a.deck
}

// Run starts everything and blocks until quit or ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	if err := a.output.Open(a.config.SampleRate, a.config.Quantum, a.deck); err != nil {
		return fmt.Errorf("failed to open %s output: %w", a.config.Output, err)
	}
	defer func() {
		if err := a.output.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Error closing output")
		}
	}()
	defer a.deck.Quit()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.deck.Run(ctx)
	})
	g.Go(func() error {
		select {
		case <-a.deck.Done():
			return errDeckQuit
		case <-ctx.Done():
			return nil
		}
	})

	if a.server != nil {
		g.Go(func() error {
			return a.server.Run(ctx)
		})
	}

	if a.config.InitialFile != "" {
		if err := a.deck.Load(a.config.InitialFile); err != nil {
			a.log.Warn().Err(err).Msg("Failed to load initial file")
		}
	}

	if a.config.UseTUI {
		a.runTUI(ctx, g)
	} else {
		k := keyboard.New(keyboard.Config{In: a.config.Input, Out: os.Stdout, Quiet: a.config.Quiet, Logger: a.config.Logger}, a.dispatcher)
		g.Go(func() error {
			return k.Run(ctx)
		})
	}

	a.log.Info().Str("name", a.config.Name).Int("rate", a.config.SampleRate).Int("quantum", a.config.Quantum).Msg("Deck running")

	err := g.Wait()
	if errors.Is(err, errDeckQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) runTUI(ctx context.Context, g *errgroup.Group) {
	prog := ui.New(a.config.Name, a.dispatcher)
	states, stopWatch := a.deck.Watch()

	g.Go(func() error {
		defer stopWatch()
		for {
			select {
			case <-ctx.Done():
				prog.Quit()
				return nil
			case <-states:
				prog.Send(ui.StatusMsg(a.deck.Status()))
			}
		}
	})
	g.Go(func() error {
		_, err := prog.Run()
		a.deck.Quit()
		if err != nil {
			return fmt.Errorf("TUI failed: %w", err)
		}
		return nil
	})
}
