package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekenv/executor/selfplay"
)

// EpisodeUpdate is pushed to the dashboard for every finished episode.
type EpisodeUpdate struct {
	WorkerID int
	Result   selfplay.EpisodeResult
	Rows     int
}

type dashboard struct {
	episodes   int
	rows       int
	best       int
	ticks      int64
	inferences int64
	startTime  time.Time
	recent     []string
	updates    <-chan EpisodeUpdate
	done       <-chan struct{}
	finished   bool
}

func newDashboard(updates <-chan EpisodeUpdate, done <-chan struct{}) dashboard {
	return dashboard{startTime: time.Now(), updates: updates, done: done}
}

type statsTickMsg time.Time
type runDoneMsg struct{}

func statsTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func waitForUpdate(updates <-chan EpisodeUpdate, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-updates:
			return u
		case <-done:
			return runDoneMsg{}
		}
	}
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates, m.done), statsTickCmd())
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case statsTickMsg:
		m.ticks = totalTicks.Load()
		m.inferences = totalInferences.Load()
		return m, statsTickCmd()
	case runDoneMsg:
		m.finished = true
		return m, tea.Quit
	case EpisodeUpdate:
		m.episodes++
		m.rows += msg.Rows
		if msg.Result.Score > m.best {
			m.best = msg.Result.Score
		}
		line := fmt.Sprintf("Worker %d: score %d, ticks %d, %s", msg.WorkerID, msg.Result.Score, msg.Result.Ticks, msg.Result.Cause)
		m.recent = append([]string{line}, m.recent...)
		if len(m.recent) > 10 {
			m.recent = m.recent[:10]
		}
		return m, waitForUpdate(m.updates, m.done)
	}
	return m, nil
}

func (m dashboard) View() string {
	duration := time.Since(m.startTime)
	var episodesPerSec, ticksPerSec float64
	if duration.Seconds() >= 1 {
		episodesPerSec = float64(m.episodes) / duration.Seconds()
		ticksPerSec = float64(m.ticks) / duration.Seconds()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Episodes:       %d\n", m.episodes)
	fmt.Fprintf(&sb, "Rows:           %d\n", m.rows)
	fmt.Fprintf(&sb, "Best score:     %d\n", m.best)
	fmt.Fprintf(&sb, "Total ticks:    %d\n", m.ticks)
	fmt.Fprintf(&sb, "Inferences:     %d\n", m.inferences)
	fmt.Fprintf(&sb, "Duration:       %s\n", duration.Round(time.Second))
	fmt.Fprintf(&sb, "Episodes/Sec:   %.2f\n", episodesPerSec)
	fmt.Fprintf(&sb, "Ticks/Sec:      %.2f\n\n", ticksPerSec)

	sb.WriteString("Recent episodes:\n")
	for _, r := range m.recent {
		sb.WriteString(r + "\n")
	}
	sb.WriteString("\nPress q to quit.\n")
	return sb.String()
}
