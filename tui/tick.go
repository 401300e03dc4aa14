// Package tui plays the simulator interactively in a terminal.
//
// The model owns the tick loop and keyboard mapping; the engine only sees
// actions and reports frames back through its sink.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is sent to trigger one engine step.
type TickMsg time.Time

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
