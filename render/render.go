// Package render draws engine frames as text.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/rules"
)

// Cell glyphs.
const (
	Empty = '.'
	Head  = 'O'
	Body  = 'o'
	Food  = 'F'
)

// Cells returns the board as rows of glyphs, top row first. Segments
// outside the grid are skipped.
func Cells(grid game.Grid, snake []game.Point, food game.Point, hasFood bool) [][]rune {
	rows := make([][]rune, grid.Height)
	for y := range rows {
		rows[y] = make([]rune, grid.Width)
		for x := range rows[y] {
			rows[y][x] = Empty
		}
	}

	put := func(p game.Point, r rune) {
		if !grid.Contains(p) {
			return
		}
		rows[p.Y/grid.BlockSize][p.X/grid.BlockSize] = r
	}

	if hasFood {
		put(food, Food)
	}
	for i := len(snake) - 1; i >= 0; i-- {
		if i == 0 {
			put(snake[i], Head)
		} else {
			put(snake[i], Body)
		}
	}
	return rows
}

// Board renders a state with a one-line header.
func Board(state *game.GameState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "frame=%d score=%d len=%d dir=%s", state.FrameIteration, state.Score, len(state.Snake), state.Direction)
	if state.GameOver {
		fmt.Fprintf(&sb, " over=%s", state.Cause)
	}
	sb.WriteByte('\n')
	writeRows(&sb, Cells(state.Grid, state.Snake, state.Food, state.HasFood))
	return sb.String()
}

// Frame renders what a sink receives.
func Frame(f rules.Frame) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "score=%d len=%d\n", f.Score, len(f.Snake))
	writeRows(&sb, Cells(f.Grid, f.Snake, f.Food, f.HasFood))
	return sb.String()
}

func writeRows(sb *strings.Builder, rows [][]rune) {
	for _, row := range rows {
		for x, r := range row {
			if x > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteRune(r)
		}
		sb.WriteByte('\n')
	}
}

// Writer is a sink that prints every frame to an io.Writer.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	frames int
	err    error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (wr *Writer) Draw(f rules.Frame) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.err != nil {
		return
	}
	wr.frames++
	_, wr.err = fmt.Fprintf(wr.w, "#%d %s\n", wr.frames, Frame(f))
}

// Frames returns how many frames were drawn.
func (wr *Writer) Frames() int {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return wr.frames
}

// Err returns the first write error. Drawing stops after it.
func (wr *Writer) Err() error {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return wr.err
}
