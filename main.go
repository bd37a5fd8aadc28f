// ABOUTME: Entry point for the Sendspin Deck daemon
// ABOUTME: Parses flags, sets up logging and runs the deck application
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/app"
	"github.com/Sendspin/sendspin-deck/internal/version"
	"github.com/Sendspin/sendspin-deck/pkg/audio/output"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

var (
	autoconnect = flag.BoolP("autoconnect", "a", false, "Connect the output to the default device at start")
	leftPort    = flag.StringP("left-port", "l", "", "Port to connect the left output to")
	rightPort   = flag.StringP("right-port", "r", "", "Port to connect the right output to")
	name        = flag.StringP("name", "n", "", "Deck name (default: hostname-deck)")
	rootDir     = flag.StringP("root-dir", "d", ".", "Directory relative load paths are resolved against")
	port        = flag.IntP("port", "p", 4444, "Control port for WebSocket and REST")
	ringSeconds = flag.Float64P("ring-seconds", "R", 2.0, "Seconds of decoded audio buffered per channel")
	verbose     = flag.BoolP("verbose", "v", false, "Debug logging")
	quiet       = flag.BoolP("quiet", "q", false, "Only log warnings and errors; no status line")
	rate        = flag.Int("rate", 44100, "Output sample rate")
	quantum     = flag.Int("quantum", 1024, "Frames per audio callback")
	outputName  = flag.String("output", "oto", "Audio output: "+strings.Join(output.Backends(), "|"))
	recordPath  = flag.String("record", "", "WAV file for the wav output")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use single-key control and streaming logs")
	logFile     = flag.String("log-file", "sendspin-deck.log", "Log file path")
	noMDNS      = flag.Bool("no-mdns", false, "Do not advertise the deck via mDNS")
	noHTTP      = flag.Bool("no-http", false, "Do not serve the network control surfaces")
	secret      = flag.String("secret", "", "JWT HMAC secret for network control (empty disables auth)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [file]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	logger := newLogger(f, useTUI)

	deckName := *name
	if deckName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		deckName = fmt.Sprintf("%s-deck", hostname)
	}

	logger.Debug().
		Bool("autoconnect", *autoconnect).
		Str("left_port", *leftPort).
		Str("right_port", *rightPort).
		Msg("Output always uses the default device")

	var initial string
	if flag.NArg() > 0 {
		initial = flag.Arg(0)
	}

	a, err := app.New(app.Config{
		Name:        deckName,
		Port:        *port,
		RootDir:     *rootDir,
		RingSeconds: *ringSeconds,
		SampleRate:  *rate,
		Quantum:     *quantum,
		Output:      *outputName,
		RecordPath:  *recordPath,
		EnableMDNS:  !*noMDNS,
		EnableHTTP:  !*noHTTP,
		Secret:      *secret,
		UseTUI:      useTUI,
		Quiet:       *quiet,
		InitialFile: initial,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create deck")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("name", deckName).Str("version", version.Version).Msg("Starting Sendspin Deck")

	if err := a.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Deck failed")
		stop()
		os.Exit(1)
	}

	logger.Info().Msg("Deck stopped")
}

// newLogger logs to the file only in TUI mode, and to the console too otherwise
func newLogger(f io.Writer, useTUI bool) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case *verbose:
		level = zerolog.DebugLevel
	case *quiet:
		level = zerolog.WarnLevel
	}

	var w io.Writer = f
	if !useTUI {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
		w = zerolog.MultiLevelWriter(console, f)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
