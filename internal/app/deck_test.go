// ABOUTME: Tests for the deck application
// ABOUTME: Runs the whole stack on the paced null output with synthetic files
package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/deck"
	"github.com/Sendspin/sendspin-deck/internal/mpeg/mpegtest"
	"github.com/rs/zerolog"
)

func waitState(t *testing.T, d *deck.Deck, want deck.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for d.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, state is %s (error %q)", want, d.State(), d.LastError())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewRejectsUnknownOutput(t *testing.T) {
	if _, err := New(Config{Output: "gramophone", Logger: zerolog.Nop()}); err == nil {
		t.Fatal("expected error for unknown output")
	}
}

func TestNewDefaults(t *testing.T) {
	a, err := New(Config{Output: "null", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.config.SampleRate != 44100 || a.config.Quantum != 1024 || a.config.Input == nil {
		t.Errorf("unexpected defaults %+v", a.config)
	}
	if a.server != nil {
		t.Error("server should only exist when HTTP is enabled")
	}
	if a.Deck().State() != deck.Starting {
		t.Errorf("deck state = %s, want STARTING", a.Deck().State())
	}
}

func TestRunPlaysInitialFileAndQuits(t *testing.T) {
	root := t.TempDir()
	mpegtest.WriteFile(t, root, "intro.mp3", mpegtest.ID3v2(32, false), mpegtest.Frames(mpegtest.Options{Frames: 20}))

	a, err := New(Config{
		Name:        "test",
		RootDir:     root,
		Output:      "null",
		Quantum:     512,
		InitialFile: "intro.mp3",
		Input:       strings.NewReader(""),
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- a.Run(context.Background()) }()

	d := a.Deck()
	waitState(t, d, deck.Ready)
	if err := d.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitState(t, d, deck.Stopped)
	if d.Position() != d.Duration() {
		t.Errorf("position %v should equal duration %v at end of track", d.Position(), d.Duration())
	}

	d.Quit()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(Config{Output: "null", RootDir: t.TempDir(), Input: strings.NewReader(""), Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	waitState(t, a.Deck(), deck.Empty)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if a.Deck().State() != deck.Quit {
		t.Errorf("deck state = %s, want QUIT", a.Deck().State())
	}
}
