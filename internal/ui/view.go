// ABOUTME: Rendering of the deck TUI
// ABOUTME: Lipgloss styled status panel, progress bar and key help
package ui

import (
	"fmt"
	"strings"

	"github.com/Sendspin/sendspin-deck/internal/control"
	"github.com/Sendspin/sendspin-deck/internal/deck"
	"github.com/Sendspin/sendspin-deck/internal/decoder"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 40

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

func stateStyle(s deck.State) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch s {
	case deck.Playing:
		return style.Foreground(lipgloss.Color("42"))
	case deck.Paused, deck.Loading:
		return style.Foreground(lipgloss.Color("220"))
	case deck.Error:
		return style.Foreground(lipgloss.Color("196"))
	case deck.Ready:
		return style.Foreground(lipgloss.Color("39"))
	}
	return style.Foreground(lipgloss.Color("250"))
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down deck...\n"
	}

	var b strings.Builder
	st := m.status

	b.WriteString(titleStyle.Render("Sendspin Deck: " + m.name))
	b.WriteString("\n")

	field(&b, "State:    ", stateStyle(st.State).Render(st.State.String()))

	name := st.Filename
	if name == "" {
		name = "(no track)"
	}
	field(&b, "Track:    ", valueStyle.Render(truncate(name, 50)))
	field(&b, "Position: ", valueStyle.Render(fmt.Sprintf("[%s] %s / %s",
		renderBar(st.Position, st.Duration, barWidth), formatTime(st.Position), formatTime(st.Duration))))
	field(&b, "Cue:      ", valueStyle.Render(formatTime(st.Cuepoint)))

	if st.Bitrate > 0 {
		mode := "CBR"
		if st.VBR {
			mode = "VBR"
		}
		field(&b, "Stream:   ", valueStyle.Render(fmt.Sprintf("%d kbps %s, %d Hz in, %d Hz out, %.0f B/frame, %.1fs buffered",
			st.Bitrate/1000, mode, st.TrackRate, st.SampleRate, st.FrameSize, st.Buffered)))
	} else if st.Filename != "" && !st.Framed {
		field(&b, "Stream:   ", valueStyle.Render("probing"))
	}
	field(&b, "Decoder:  ", valueStyle.Render(fmt.Sprintf("%s  frames %d  lost sync %d  bad crc %d",
		taskState(st.Decoder), st.Decoder.Frames, st.Decoder.LostSync, st.Decoder.BadCRC)))

	if st.Error != "" {
		field(&b, "Error:    ", errorStyle.Render(st.Error))
	}
	if m.message != "" {
		b.WriteString(errorStyle.Render(m.message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.promptKey != 0 {
		b.WriteString(promptStyle.Render(control.Prompt(m.promptKey)))
		b.WriteString(string(m.input))
		b.WriteString("█\n")
		b.WriteString(faintStyle.Render("enter to confirm, esc to cancel"))
		return b.String()
	}

	if m.showHelp {
		b.WriteString(strings.Join(control.KeyHelp, "\n"))
		b.WriteString("\n")
	} else {
		b.WriteString(faintStyle.Render("p:play/pause  l:load  e:eject  s:stop  c:cue  C:set cue  P:cue here  h:help  q:quit"))
	}
	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name))
	b.WriteString(value)
	b.WriteString("\n")
}

func renderBar(value, max float64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(value / max * float64(width))
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// formatTime renders seconds as m:ss.t
func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	tenths := int(seconds*10 + 0.5)
	return fmt.Sprintf("%d:%02d.%d", tenths/600, (tenths/10)%60, tenths%10)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

func taskState(s decoder.Stats) string {
	switch {
	case s.Decoding:
		return "decoding"
	case s.Alive:
		return "finished"
	default:
		return "idle"
	}
}
