// ABOUTME: Transport-independent control dispatcher
// ABOUTME: Turns protocol messages into deck calls and deck answers into replies
package control

import (
	"errors"
	"fmt"

	"github.com/Sendspin/sendspin-deck/internal/deck"
	"github.com/Sendspin/sendspin-deck/internal/protocol"
	"github.com/Sendspin/sendspin-deck/internal/version"
	"github.com/rs/zerolog"
)

// ErrMalformed marks a command whose payload could not be decoded.
var ErrMalformed = errors.New("malformed payload")

// Deck is the part of the deck a control surface drives.
type Deck interface {
	Load(path string) error
	Cue(point float64) error
	Recue() error
	SetCuepoint(point float64) error
	SetCuepointHere() error
	Play() error
	Pause() error
	Stop() error
	Eject() error
	Quit()

	State() deck.State
	Position() float64
	Duration() float64
	Filepath() string
	LastError() string
	Status() deck.Status
}

// Dispatcher answers control messages on behalf of one deck.
type Dispatcher struct {
	deck Deck
	log  zerolog.Logger
}

// NewDispatcher creates a dispatcher for d.
func NewDispatcher(d Deck, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		deck: d,
		log:  logger.With().Str("component", "control").Logger(),
	}
}

// Deck returns the deck this dispatcher drives.
func (d *Dispatcher) Deck() Deck {
	return d.deck
}

// IsCommand reports whether typ is a deck command answered with an ack.
func IsCommand(typ string) bool {
	switch typ {
	case protocol.TypePlay, protocol.TypePause, protocol.TypeStop, protocol.TypeCue,
		protocol.TypeEject, protocol.TypeLoad, protocol.TypeQuit, protocol.TypeSetCuepoint:
		return true
	}
	return false
}

// Handle executes msg and returns the reply. The reply carries msg's ID.
func (d *Dispatcher) Handle(msg protocol.Message) protocol.Message {
	reply := d.handle(msg)
	reply.ID = msg.ID
	return reply
}

func (d *Dispatcher) handle(msg protocol.Message) protocol.Message {
	if IsCommand(msg.Type) {
		return protocol.Message{Type: protocol.TypeAck, Payload: d.Command(msg.Type, msg.Payload)}
	}

	switch msg.Type {
	case protocol.TypeGetState:
		return protocol.Message{Type: protocol.TypeState, Payload: protocol.StateReply{State: d.deck.State().String()}}
	case protocol.TypeGetPosition:
		return protocol.Message{Type: protocol.TypePosition, Payload: protocol.PositionReply{Position: d.deck.Position()}}
	case protocol.TypeGetDuration:
		return protocol.Message{Type: protocol.TypeDuration, Payload: protocol.DurationReply{Duration: d.deck.Duration()}}
	case protocol.TypeGetFilepath:
		return protocol.Message{Type: protocol.TypeFilepath, Payload: protocol.FilepathReply{Filepath: d.deck.Filepath()}}
	case protocol.TypeGetStatus:
		return StatusMessage(d.deck.Status())
	case protocol.TypeGetError:
		return protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorReply{Error: d.deck.LastError()}}
	case protocol.TypeGetVersion:
		return protocol.Message{Type: protocol.TypeVersion, Payload: protocol.VersionReply{Product: version.Product, Version: version.Version}}
	case protocol.TypePing:
		return protocol.Message{Type: protocol.TypePong}
	}

	d.log.Warn().Str("type", msg.Type).Msg("Unknown message type")
	return ErrorMessage(fmt.Errorf("unknown message type: %s", msg.Type))
}

// Command runs one deck command and reports the outcome.
func (d *Dispatcher) Command(typ string, payload interface{}) protocol.Ack {
	ack, _ := d.Execute(typ, payload)
	return ack
}

// Execute is Command that also returns the error behind a failed ack.
func (d *Dispatcher) Execute(typ string, payload interface{}) (protocol.Ack, error) {
	err := d.run(typ, payload)
	ack := protocol.Ack{
		Command: typ,
		OK:      err == nil,
		State:   d.deck.State().String(),
	}
	if err != nil {
		ack.Error = err.Error()
	}
	return ack, err
}

func (d *Dispatcher) run(typ string, payload interface{}) error {
	d.log.Debug().Str("command", typ).Msg("Dispatching")

	switch typ {
	case protocol.TypePlay:
		return d.deck.Play()
	case protocol.TypePause:
		return d.deck.Pause()
	case protocol.TypeStop:
		return d.deck.Stop()
	case protocol.TypeEject:
		return d.deck.Eject()
	case protocol.TypeQuit:
		d.deck.Quit()
		return nil

	case protocol.TypeCue:
		var cue protocol.Cue
		if err := protocol.DecodePayload(payload, &cue); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if cue.Cuepoint == nil {
			return d.deck.Recue()
		}
		return d.deck.Cue(*cue.Cuepoint)

	case protocol.TypeSetCuepoint:
		var set protocol.SetCuepoint
		if err := protocol.DecodePayload(payload, &set); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return d.deck.SetCuepoint(set.Cuepoint)

	case protocol.TypeLoad:
		var load protocol.Load
		if err := protocol.DecodePayload(payload, &load); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if load.Path == "" {
			return fmt.Errorf("%w: missing path", ErrMalformed)
		}
		return d.deck.Load(load.Path)
	}

	return fmt.Errorf("unknown command: %s", typ)
}

// StatusMessage wraps a deck snapshot as a deck/status message.
func StatusMessage(st deck.Status) protocol.Message {
	return protocol.Message{Type: protocol.TypeStatus, Payload: ToStatus(st)}
}

// ToStatus flattens a deck snapshot into its wire form.
func ToStatus(st deck.Status) protocol.Status {
	return protocol.Status{
		State:      st.State.String(),
		Position:   st.Position,
		Duration:   st.Duration,
		Cuepoint:   st.Cuepoint,
		Filepath:   st.Filepath,
		Filename:   st.Filename,
		Error:      st.Error,
		SampleRate: st.SampleRate,
		Bitrate:    st.Bitrate,
		VBR:        st.VBR,
		Buffered:   st.Buffered,
		Framed:     st.Framed,
		TrackRate:  st.TrackRate,
		FrameSize:  st.FrameSize,
		Decoding:   st.Decoder.Decoding,
		TaskAlive:  st.Decoder.Alive,
		Frames:     st.Decoder.Frames,
		LostSync:   st.Decoder.LostSync,
		BadCRC:     st.Decoder.BadCRC,
	}
}

// ErrorMessage wraps err as an error reply.
func ErrorMessage(err error) protocol.Message {
	return protocol.Message{Type: protocol.TypeError, Payload: protocol.ErrorReply{Error: err.Error()}}
}
