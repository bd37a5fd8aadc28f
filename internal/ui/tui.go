// ABOUTME: TUI initialization
// ABOUTME: Wraps the bubbletea program for the deck UI
package ui

import (
	"github.com/Sendspin/sendspin-deck/internal/control"
	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a new TUI model for the deck behind d
func NewModel(name string, d *control.Dispatcher) Model {
	m := Model{name: name, dispatcher: d}
	if d != nil {
		m.status = d.Deck().Status()
	}
	return m
}

// New creates the TUI program. The caller runs it.
func New(name string, d *control.Dispatcher) *tea.Program {
	return tea.NewProgram(NewModel(name, d), tea.WithAltScreen())
}
