// ABOUTME: Deck states and their wire names
// ABOUTME: The tokens are what remote tooling matches on
package deck

import (
	"fmt"
	"strings"
)

// State is the deck's visible state.
type State int32

const (
	Starting State = iota
	Empty
	Loading
	Ready
	Playing
	Paused
	Stopped
	Error
	Quit
)

var stateNames = [...]string{
	Starting: "STARTING",
	Empty:    "EMPTY",
	Loading:  "LOADING",
	Ready:    "READY",
	Playing:  "PLAYING",
	Paused:   "PAUSED",
	Stopped:  "STOPPED",
	Error:    "ERROR",
	Quit:     "QUIT",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state as its token.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a token in any case.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState returns the state named by token.
func ParseState(token string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(name, token) {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown deck state %q", token)
}

// active reports whether a decode task may be running for the state.
func (s State) active() bool {
	switch s {
	case Loading, Ready, Playing, Paused:
		return true
	}
	return false
}
