package rules

import (
	"errors"
	"testing"

	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/game"
)

func checkFreshEpisode(t *testing.T, e *Engine) {
	t.Helper()
	s := e.Snapshot()
	g := s.Grid

	head := g.Cell(g.Width/2, g.Height/2)
	want := []game.Point{head, {X: head.X - g.BlockSize, Y: head.Y}, {X: head.X - 2*g.BlockSize, Y: head.Y}}
	if len(s.Snake) != len(want) {
		t.Fatalf("len=%d want=%d", len(s.Snake), len(want))
	}
	for i := range want {
		if s.Snake[i] != want[i] {
			t.Fatalf("snake[%d]=%v want=%v", i, s.Snake[i], want[i])
		}
	}
	if s.Direction != game.Right || s.Score != 0 || s.FrameIteration != 0 || s.GameOver || s.Cause != game.CauseNone {
		t.Fatalf("unexpected fresh state:\n%s", dumpState(s))
	}
	if !s.HasFood || s.Occupies(s.Food) || !g.Contains(s.Food) {
		t.Fatalf("bad food %v:\n%s", s.Food, dumpState(s))
	}
}

func TestNewEngine_InvalidGrid(t *testing.T) {
	for _, g := range []game.Grid{
		{Width: 3, Height: 5, BlockSize: 20},
		{Width: 10, Height: 0, BlockSize: 20},
		{Width: 10, Height: 10, BlockSize: 0},
	} {
		if _, err := NewEngine(g, game.DefaultSettings); !errors.Is(err, ErrInvalidGrid) {
			t.Errorf("grid %+v: err=%v want ErrInvalidGrid", g, err)
		}
	}
}

func TestEngine_ResetTwice(t *testing.T) {
	e, err := NewEngine(game.DefaultGrid, game.DefaultSettings, WithSeed(5))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	checkFreshEpisode(t, e)

	// Play into the wall, then reset twice in a row.
	for !e.Terminal() {
		e.Step(game.ActionUp)
	}
	e.Reset()
	checkFreshEpisode(t, e)
	e.Reset()
	checkFreshEpisode(t, e)

	// Reset mid-episode.
	e.Step(game.ActionDown)
	e.Step(game.ActionDown)
	e.Reset()
	checkFreshEpisode(t, e)
}

func TestEngine_ScenarioWithSink(t *testing.T) {
	grid := game.Grid{Width: 5, Height: 5, BlockSize: 20}
	var frames []Frame
	e, err := NewEngine(grid, game.DefaultSettings, WithSeed(1), WithSink(SinkFunc(func(f Frame) {
		frames = append(frames, f)
	})))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	state := e.Snapshot()
	state.Food = grid.Cell(4, 2)
	if err := e.Restore(state); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if terminal, score := e.Step(game.ActionRight); terminal || score != 2 {
		t.Fatalf("tick 1: terminal=%v score=%d", terminal, score)
	}
	if terminal, score := e.Step(game.ActionRight); terminal || score != 14 {
		t.Fatalf("tick 2: terminal=%v score=%d", terminal, score)
	}
	if got := e.Snapshot().Head(); got != grid.Cell(4, 2) {
		t.Fatalf("head=%v want %v", got, grid.Cell(4, 2))
	}
	terminal, score := e.Step(game.ActionRight)
	if !terminal || score != 14 || e.Cause() != game.CauseWallCollision {
		t.Fatalf("tick 3: terminal=%v score=%d cause=%q", terminal, score, e.Cause())
	}

	if len(frames) != 2 {
		t.Fatalf("sink frames=%d want=2 (terminal ticks are not drawn)", len(frames))
	}
	if frames[1].Score != 14 || len(frames[1].Snake) != 4 {
		t.Fatalf("frame 2: score=%d len=%d", frames[1].Score, len(frames[1].Snake))
	}

	// Frames are copies.
	frames[1].Snake[0] = game.Point{X: -1, Y: -1}
	if e.Snapshot().Snake[1] == (game.Point{X: -1, Y: -1}) {
		t.Fatalf("sink frame aliases engine state")
	}
}

func TestEngine_HeadlessMatchesSink(t *testing.T) {
	actions := []game.Action{1, 1, 3, 3, 0, 0, 2, 1, 1, 1, 3, 0, 2, 2}

	run := func(withSink bool) []*game.GameState {
		opts := []Option{WithSeed(99)}
		if withSink {
			opts = append(opts, WithSink(SinkFunc(func(Frame) {})))
		}
		e, err := NewEngine(game.Grid{Width: 8, Height: 8, BlockSize: 10}, game.DefaultSettings, opts...)
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		out := []*game.GameState{e.Snapshot()}
		for _, a := range actions {
			if terminal, _ := e.Step(a); terminal {
				break
			}
			out = append(out, e.Snapshot())
		}
		return out
	}

	a, b := run(false), run(true)
	if len(a) != len(b) {
		t.Fatalf("trajectory lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if dumpState(a[i]) != dumpState(b[i]) {
			t.Fatalf("step %d differs:\n%s\nvs\n%s", i, dumpState(a[i]), dumpState(b[i]))
		}
	}
}

func TestEngine_ObserveDoesNotMutate(t *testing.T) {
	e, err := NewEngine(game.DefaultGrid, game.DefaultSettings, WithSeed(3))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Step(game.ActionDown)

	before := dumpState(e.Snapshot())
	obs := e.Observe()
	if len(obs) != convert.NumFeatures {
		t.Fatalf("features=%d want=%d", len(obs), convert.NumFeatures)
	}
	if after := dumpState(e.Snapshot()); after != before {
		t.Fatalf("Observe mutated state:\n%s\nvs\n%s", before, after)
	}
	if obs != e.Observe() {
		t.Fatalf("Observe is not stable")
	}
}

func TestEngine_RestoreRejectsMismatchedGrid(t *testing.T) {
	e, err := NewEngine(game.DefaultGrid, game.DefaultSettings, WithSeed(3))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	s := e.Snapshot()
	s.Grid.Width = 30
	if err := e.Restore(s); err == nil {
		t.Fatalf("expected grid mismatch error")
	}
	if err := e.Restore(nil); err == nil {
		t.Fatalf("expected error for nil state")
	}
}
