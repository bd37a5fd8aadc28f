// ABOUTME: Remote control CLI for Sendspin Deck
// ABOUTME: Runs one command, or an interactive prompt, against a deck found by address or mDNS
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sendspin/sendspin-deck/internal/auth"
	"github.com/Sendspin/sendspin-deck/internal/client"
	"github.com/Sendspin/sendspin-deck/internal/discovery"
	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

var (
	serverAddr = flag.StringP("server", "s", "", "Deck address host:port (default: browse mDNS)")
	secret     = flag.String("secret", "", "JWT HMAC secret shared with the deck")
	timeoutMs  = flag.IntP("timeout", "t", 1000, "Reply timeout in milliseconds")
	verbose    = flag.BoolP("verbose", "v", false, "Debug logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [command [args]]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n%s", usage())
	}
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if err := run(logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(logger zerolog.Logger) error {
	ctx := context.Background()

	addr := *serverAddr
	if addr == "" {
		decks, err := discovery.Browse(ctx, 3*time.Second)
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			return errors.New("no deck found via mDNS; use --server")
		}
		logger.Info().Str("deck", decks[0].Name).Str("addr", decks[0].Addr()).Msg("Discovered deck")
		addr = decks[0].Addr()
	}

	hostname, _ := os.Hostname()
	config := client.Config{
		ServerAddr: addr,
		Name:       fmt.Sprintf("%s-remote", hostname),
		Timeout:    time.Duration(*timeoutMs) * time.Millisecond,
		Logger:     logger,
	}
	if *secret != "" {
		token, err := auth.NewToken(*secret, config.Name, time.Hour)
		if err != nil {
			return err
		}
		config.Token = token
	}

	c := client.NewClient(config)
	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Close()

	if flag.NArg() > 0 {
		return execute(ctx, c, flag.Args(), os.Stdout)
	}
	return interactive(ctx, c)
}

func interactive(ctx context.Context, c *client.Client) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands)+1)
	for _, name := range commandNames() {
		items = append(items, readline.PcItem(name))
	}
	items = append(items, readline.PcItem("help"))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       fmt.Sprintf("%s> ", c.Server().Name),
		AutoComplete: readline.NewPrefixCompleter(items...),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "help" {
			fmt.Print(usage())
			continue
		}
		if err := execute(ctx, c, args, rl.Stdout()); err != nil {
			fmt.Fprintln(rl.Stderr(), "error:", err)
		}
		if args[0] == "quit" || !c.IsConnected() {
			return nil
		}
	}
}
