// ABOUTME: Bubbletea model for the deck TUI
// ABOUTME: Holds the latest deck snapshot, runs key commands and handles the inline prompt
package ui

import (
	"time"

	"github.com/Sendspin/sendspin-deck/internal/control"
	"github.com/Sendspin/sendspin-deck/internal/deck"
	tea "github.com/charmbracelet/bubbletea"
)

const refreshInterval = 100 * time.Millisecond

// StatusMsg carries a fresh deck snapshot
type StatusMsg deck.Status

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	name       string
	dispatcher *control.Dispatcher

	status deck.Status

	// inline prompt for keys that take an argument
	promptKey rune
	input     []rune

	message  string
	showHelp bool
	quitting bool

	width  int
	height int
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.promptKey != 0 {
			return m.handlePromptKey(msg)
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = deck.Status(msg)
		if m.status.State == deck.Quit {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		if m.dispatcher != nil {
			m.status = m.dispatcher.Deck().Status()
		}
		return m, tick()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		key = "q"
	case "h", "?":
		m.showHelp = !m.showHelp
		return m, nil
	}

	runes := []rune(key)
	if len(runes) != 1 {
		return m, nil
	}
	r := runes[0]

	if control.Prompt(r) != "" {
		m.promptKey = r
		m.input = nil
		m.message = ""
		return m, nil
	}
	return m.run(r, "")
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		key, arg := m.promptKey, string(m.input)
		m.promptKey, m.input = 0, nil
		return m.run(key, arg)
	case tea.KeyEsc, tea.KeyCtrlC:
		m.promptKey, m.input = 0, nil
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m Model) run(key rune, arg string) (tea.Model, tea.Cmd) {
	if m.dispatcher == nil {
		return m, nil
	}
	m.message = ""
	if err := m.dispatcher.Key(key, arg); err != nil {
		m.message = err.Error()
	}
	m.status = m.dispatcher.Deck().Status()

	if key == 'q' {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}
