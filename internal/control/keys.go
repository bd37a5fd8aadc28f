// ABOUTME: Single-key bindings shared by the keyboard reader and the TUI
// ABOUTME: Maps keys onto the same commands the network surfaces use
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sendspin/sendspin-deck/internal/deck"
	"github.com/Sendspin/sendspin-deck/internal/protocol"
)

// ErrUnknownKey is returned for keys with no binding.
var ErrUnknownKey = errors.New("unknown key")

// KeyHelp describes every binding, one per line.
var KeyHelp = []string{
	"h  help",
	"p  play/pause",
	"l  load file",
	"e  eject",
	"s  stop",
	"c  cue",
	"C  set cue point",
	"P  set cue point here",
	"q  quit",
}

// Prompt returns the question key needs answered before it runs, or "".
func Prompt(key rune) string {
	switch key {
	case 'l':
		return "Load file: "
	case 'C':
		return "Cue point (seconds): "
	}
	return ""
}

// Key runs the command bound to key. arg is the answer to Prompt(key).
func (d *Dispatcher) Key(key rune, arg string) error {
	d.log.Debug().Str("key", string(key)).Msg("Key")

	switch key {
	case 'p':
		if d.deck.State() == deck.Playing {
			return d.run(protocol.TypePause, nil)
		}
		return d.run(protocol.TypePlay, nil)
	case 'l':
		return d.run(protocol.TypeLoad, protocol.Load{Path: strings.TrimSpace(arg)})
	case 'e':
		return d.run(protocol.TypeEject, nil)
	case 's':
		return d.run(protocol.TypeStop, nil)
	case 'c':
		return d.run(protocol.TypeCue, nil)
	case 'C':
		point, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return fmt.Errorf("%w: cue point %q", ErrMalformed, arg)
		}
		return d.run(protocol.TypeSetCuepoint, protocol.SetCuepoint{Cuepoint: point})
	case 'P':
		return d.deck.SetCuepointHere()
	case 'q':
		return d.run(protocol.TypeQuit, nil)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, key)
}
