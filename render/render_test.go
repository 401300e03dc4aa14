package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/rules"
)

func TestBoard(t *testing.T) {
	g := game.Grid{Width: 5, Height: 3, BlockSize: 10}
	state := &game.GameState{
		Grid:      g,
		Snake:     []game.Point{g.Cell(2, 1), g.Cell(1, 1), g.Cell(0, 1)},
		Direction: game.Right,
		Food:      g.Cell(4, 0),
		HasFood:   true,
		Score:     6,
	}
	got := Board(state)
	want := "frame=0 score=6 len=3 dir=right\n" +
		". . . . F\n" +
		"o o O . .\n" +
		". . . . .\n"
	if got != want {
		t.Fatalf("board:\n%s\nwant:\n%s", got, want)
	}

	state.GameOver = true
	state.Cause = game.CauseWallCollision
	state.Snake[0] = game.Point{X: 50, Y: 10}
	got = Board(state)
	if !strings.Contains(got, "over=wall-collision") {
		t.Fatalf("header missing cause: %q", got)
	}
	if strings.Contains(got, string(Head)) {
		t.Fatalf("out-of-bounds head was drawn:\n%s", got)
	}
}

func TestCells_NoFood(t *testing.T) {
	g := game.Grid{Width: 4, Height: 1, BlockSize: 1}
	rows := Cells(g, []game.Point{{X: 0, Y: 0}}, game.Point{}, false)
	if string(rows[0]) != "O..." {
		t.Fatalf("row=%q", string(rows[0]))
	}
}

func TestWriter_AsSink(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	e, err := rules.NewEngine(game.Grid{Width: 8, Height: 8, BlockSize: 1}, game.DefaultSettings,
		rules.WithSeed(3), rules.WithSink(w))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := e.Snapshot()
	st.Food = game.Point{X: 0, Y: 0}
	if err := e.Restore(st); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for i := 0; i < 2; i++ {
		if terminal, _ := e.Step(game.ActionRight); terminal {
			t.Fatalf("terminal at tick %d", i+1)
		}
	}
	if w.Frames() != 2 {
		t.Fatalf("frames=%d want 2", w.Frames())
	}
	if !strings.HasPrefix(buf.String(), "#1 score=2 len=3\n") || !strings.Contains(buf.String(), "#2 score=4") {
		t.Fatalf("output:\n%s", buf.String())
	}
}

type failWriter struct{ n int }

func (f *failWriter) Write(p []byte) (int, error) {
	f.n++
	return 0, errors.New("disk full")
}

func TestWriter_StopsAfterError(t *testing.T) {
	fw := &failWriter{}
	w := NewWriter(fw)
	f := rules.Frame{Grid: game.Grid{Width: 4, Height: 1, BlockSize: 1}, Snake: []game.Point{{}}}
	w.Draw(f)
	w.Draw(f)
	if w.Err() == nil || fw.n != 1 {
		t.Fatalf("err=%v writes=%d", w.Err(), fw.n)
	}
}
