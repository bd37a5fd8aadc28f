// ABOUTME: Remote command table and execution
// ABOUTME: Turns a command line into a protocol request and prints the reply
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Sendspin/sendspin-deck/internal/client"
	"github.com/Sendspin/sendspin-deck/internal/protocol"
)

type command struct {
	typ   string
	usage string
	query bool
	// payload builds the request payload from the arguments
	payload func(args []string) (interface{}, error)
}

var commands = map[string]command{
	"play":  {typ: protocol.TypePlay},
	"pause": {typ: protocol.TypePause},
	"stop":  {typ: protocol.TypeStop},
	"eject": {typ: protocol.TypeEject},
	"quit":  {typ: protocol.TypeQuit},
	"cue":   {typ: protocol.TypeCue, usage: "[seconds]", payload: cuePayload},
	"setcue": {typ: protocol.TypeSetCuepoint, usage: "<seconds>", payload: func(args []string) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("setcue needs a cue point")
		}
		pt, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad cue point %q", args[0])
		}
		return protocol.SetCuepoint{Cuepoint: pt}, nil
	}},
	"load": {typ: protocol.TypeLoad, usage: "<path>", payload: func(args []string) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("load needs a path")
		}
		return protocol.Load{Path: strings.Join(args, " ")}, nil
	}},

	"state":    {typ: protocol.TypeGetState, query: true},
	"position": {typ: protocol.TypeGetPosition, query: true},
	"duration": {typ: protocol.TypeGetDuration, query: true},
	"filepath": {typ: protocol.TypeGetFilepath, query: true},
	"error":    {typ: protocol.TypeGetError, query: true},
	"version":  {typ: protocol.TypeGetVersion, query: true},
	"ping":     {typ: protocol.TypePing, query: true},
	"status":   {typ: protocol.TypeGetStatus, query: true},
}

func cuePayload(args []string) (interface{}, error) {
	if len(args) == 0 {
		return protocol.Cue{}, nil
	}
	pt, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("bad cue point %q", args[0])
	}
	return protocol.Cue{Cuepoint: &pt}, nil
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usage() string {
	var b strings.Builder
	for _, name := range commandNames() {
		fmt.Fprintf(&b, "  %s %s\n", name, commands[name].usage)
	}
	return b.String()
}

// execute runs one command line against c and prints the outcome to out.
func execute(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	if cmd.query {
		reply, err := c.Request(ctx, cmd.typ, nil)
		if err != nil {
			return err
		}
		return printReply(out, reply)
	}

	var payload interface{}
	if cmd.payload != nil {
		p, err := cmd.payload(args[1:])
		if err != nil {
			return err
		}
		payload = p
	}
	ack, err := c.Command(ctx, cmd.typ, payload)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ack.State)
	return nil
}

func printReply(out io.Writer, reply protocol.Message) error {
	var err error
	switch reply.Type {
	case protocol.TypeState:
		var r protocol.StateReply
		err = protocol.DecodePayload(reply.Payload, &r)
		fmt.Fprintln(out, r.State)
	case protocol.TypePosition:
		var r protocol.PositionReply
		err = protocol.DecodePayload(reply.Payload, &r)
		fmt.Fprintf(out, "%1.1f\n", r.Position)
	case protocol.TypeDuration:
		var r protocol.DurationReply
		err = protocol.DecodePayload(reply.Payload, &r)
		fmt.Fprintf(out, "%1.1f\n", r.Duration)
	case protocol.TypeFilepath:
		var r protocol.FilepathReply
		err = protocol.DecodePayload(reply.Payload, &r)
		fmt.Fprintln(out, r.Filepath)
	case protocol.TypeError:
		var r protocol.ErrorReply
		err = protocol.DecodePayload(reply.Payload, &r)
		fmt.Fprintln(out, r.Error)
	case protocol.TypeVersion:
		var r protocol.VersionReply
		err = protocol.DecodePayload(reply.Payload, &r)
		fmt.Fprintf(out, "%s %s\n", r.Product, r.Version)
	case protocol.TypePong:
		fmt.Fprintln(out, "pong")
	default:
		var data []byte
		data, err = json.MarshalIndent(reply.Payload, "", "  ")
		fmt.Fprintln(out, string(data))
	}
	return err
}
