package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/render"
	"github.com/brensch/snekenv/rules"
)

var (
	headStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	bodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	foodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	boardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Bold(true)
	overStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var keyActions = map[string]game.Action{
	"left": game.ActionLeft, "a": game.ActionLeft, "h": game.ActionLeft,
	"right": game.ActionRight, "d": game.ActionRight, "l": game.ActionRight,
	"up": game.ActionUp, "w": game.ActionUp, "k": game.ActionUp,
	"down": game.ActionDown, "s": game.ActionDown, "j": game.ActionDown,
}

// frameBuffer is the engine sink; it keeps the latest frame for View.
type frameBuffer struct {
	frame  rules.Frame
	frames int
}

func (b *frameBuffer) Draw(f rules.Frame) {
	b.frame = f
	b.frames++
}

func (b *frameBuffer) load(s *game.GameState) {
	snake := make([]game.Point, len(s.Snake))
	copy(snake, s.Snake)
	b.frame = rules.Frame{Grid: s.Grid, Snake: snake, Food: s.Food, Score: s.Score, HasFood: s.HasFood}
}

type Model struct {
	eng      *rules.Engine
	buf      *frameBuffer
	interval time.Duration

	pending game.Action
	paused  bool
	over    bool
	cause   game.DeathCause

	episode     int
	best        int
	autoRestart bool
}

// New attaches itself as the engine's sink and starts a fresh episode.
func New(eng *rules.Engine, interval time.Duration, autoRestart bool) Model {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	buf := &frameBuffer{}
	eng.SetSink(buf)
	m := Model{eng: eng, buf: buf, interval: interval, autoRestart: autoRestart}
	m.reset()
	return m
}

func (m *Model) reset() {
	m.eng.Reset()
	m.buf.load(m.eng.Snapshot())
	m.pending = game.ActionFor(m.eng.Snapshot().Direction)
	m.over = false
	m.cause = game.CauseNone
	m.episode++
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.interval)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
			return m, nil
		case "r", "enter":
			if m.over || key == "r" {
				m.reset()
			}
			return m, nil
		}
		if a, ok := keyActions[key]; ok {
			m.pending = a
		}
		return m, nil

	case TickMsg:
		if m.paused {
			return m, tickCmd(m.interval)
		}
		if m.over {
			if m.autoRestart {
				m.reset()
			}
			return m, tickCmd(m.interval)
		}
		terminal, score := m.eng.Step(m.pending)
		if score > m.best {
			m.best = score
		}
		if terminal {
			m.over = true
			m.cause = m.eng.Cause()
		}
		return m, tickCmd(m.interval)
	}
	return m, nil
}

func (m Model) View() string {
	f := m.buf.frame
	rows := render.Cells(f.Grid, f.Snake, f.Food, f.HasFood)

	var board strings.Builder
	for y, row := range rows {
		if y > 0 {
			board.WriteByte('\n')
		}
		for x, r := range row {
			if x > 0 {
				board.WriteByte(' ')
			}
			board.WriteString(glyph(r))
		}
	}

	status := statusStyle.Render(fmt.Sprintf("Score %d  Best %d  Length %d  Episode %d",
		m.eng.Score(), m.best, m.eng.Length(), m.episode))

	var line string
	switch {
	case m.over:
		line = overStyle.Render(fmt.Sprintf("GAME OVER (%s) r to restart", m.cause))
	case m.paused:
		line = statusStyle.Render("PAUSED")
	}

	help := helpStyle.Render("arrows/wasd move  p pause  r reset  q quit")
	return lipgloss.JoinVertical(lipgloss.Left, status, boardStyle.Render(board.String()), line, help) + "\n"
}

func glyph(r rune) string {
	switch r {
	case render.Head:
		return headStyle.Render(string(r))
	case render.Body:
		return bodyStyle.Render(string(r))
	case render.Food:
		return foodStyle.Render(string(r))
	default:
		return emptyStyle.Render(string(r))
	}
}

// Frames returns how many frames the engine pushed to this model.
func (m Model) Frames() int { return m.buf.frames }

// Over reports whether the current episode has ended.
func (m Model) Over() bool { return m.over }
