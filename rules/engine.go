package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/game"
)

// ErrInvalidGrid is returned for boards that cannot hold the starting snake.
var ErrInvalidGrid = errors.New("invalid grid")

// InitialLength is the snake length after Reset.
const InitialLength = 3

// Frame is what a presentation sink receives after each non-terminal tick.
type Frame struct {
	Grid  game.Grid
	Snake []game.Point
	Food  game.Point
	Score int

	// HasFood is false only once the snake fills the board.
	HasFood bool
}

// Sink is an optional presentation collaborator. It never writes back into
// the engine.
type Sink interface {
	Draw(Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

func (f SinkFunc) Draw(fr Frame) { f(fr) }

// Engine owns one episode of state plus the RNG used for food placement.
// It is not safe for concurrent use; run one engine per goroutine.
type Engine struct {
	settings game.Settings
	grid     game.Grid
	rng      *rand.Rand
	sink     Sink
	logger   *slog.Logger

	state *game.GameState
}

type Option func(*Engine)

// WithSeed makes food placement reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// WithRand injects an existing RNG.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSink attaches a presentation sink.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// ValidateGrid checks that the starting snake fits on the board.
func ValidateGrid(g game.Grid) error {
	if g.BlockSize < 1 {
		return fmt.Errorf("%w: block size %d < 1", ErrInvalidGrid, g.BlockSize)
	}
	if g.Width < 4 || g.Height < 1 {
		return fmt.Errorf("%w: %dx%d cannot hold a %d-segment snake", ErrInvalidGrid, g.Width, g.Height, InitialLength)
	}
	return nil
}

// NewEngine builds an engine and starts the first episode.
func NewEngine(grid game.Grid, settings game.Settings, opts ...Option) (*Engine, error) {
	if err := ValidateGrid(grid); err != nil {
		return nil, err
	}

	e := &Engine{settings: settings, grid: grid}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	e.Reset()
	return e, nil
}

// Reset discards the current episode and starts a new one: heading right,
// head at the board centre, two segments trailing to the left, fresh food.
func (e *Engine) Reset() {
	g := e.grid
	head := g.Cell(g.Width/2, g.Height/2)

	snake := make([]game.Point, InitialLength)
	for i := range snake {
		snake[i] = game.Point{X: head.X - i*g.BlockSize, Y: head.Y}
	}

	e.state = &game.GameState{
		Grid:      g,
		Snake:     snake,
		Direction: game.Right,
	}
	game.PlaceFood(e.state, e.rng, e.settings.MaxFoodAttempts)

	e.logger.Debug("episode reset", "head", head, "food", e.state.Food)
}

// Step advances one tick and reports whether the episode ended plus the
// score so far. The sink, if any, is notified only on non-terminal ticks.
func (e *Engine) Step(action game.Action) (terminal bool, score int) {
	wasOver := e.state.GameOver
	out := Advance(e.state, action, e.settings, e.rng)
	if out.Terminal {
		if !wasOver {
			e.logger.Debug("episode over",
				"cause", string(out.Cause),
				"score", out.Score,
				"length", len(e.state.Snake),
				"frame", e.state.FrameIteration,
			)
		}
		return true, out.Score
	}

	if e.sink != nil {
		e.sink.Draw(e.frame())
	}
	return false, out.Score
}

func (e *Engine) frame() Frame {
	snake := make([]game.Point, len(e.state.Snake))
	copy(snake, e.state.Snake)
	return Frame{Grid: e.grid, Snake: snake, Food: e.state.Food, Score: e.state.Score, HasFood: e.state.HasFood}
}

// Observe encodes the current state for a policy. It does not mutate.
func (e *Engine) Observe() convert.Observation {
	return convert.Encode(e.state)
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() *game.GameState {
	return e.state.Clone()
}

// Restore replaces the current episode with a copy of state. The grid of
// state must match the engine's.
func (e *Engine) Restore(state *game.GameState) error {
	if state == nil || len(state.Snake) == 0 {
		return fmt.Errorf("restore: empty state")
	}
	if state.Grid != e.grid {
		return fmt.Errorf("restore: grid %+v does not match engine grid %+v", state.Grid, e.grid)
	}
	e.state = state.Clone()
	return nil
}

// SetSink attaches or, with nil, detaches the presentation sink.
func (e *Engine) SetSink(s Sink) { e.sink = s }

func (e *Engine) Grid() game.Grid         { return e.grid }
func (e *Engine) Settings() game.Settings { return e.settings }
func (e *Engine) Score() int              { return e.state.Score }
func (e *Engine) Terminal() bool          { return e.state.GameOver }
func (e *Engine) Cause() game.DeathCause  { return e.state.Cause }
func (e *Engine) Length() int             { return len(e.state.Snake) }
func (e *Engine) FrameIteration() int     { return e.state.FrameIteration }
