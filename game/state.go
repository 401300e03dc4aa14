// Package game defines the core state types for the single-snake simulation.
//
// These types carry everything the rules need to advance an episode and
// everything the encoder needs to describe it to an agent. The state is
// cheap to clone so drivers can snapshot and replay episodes.
package game

import "fmt"

// Point is a board coordinate in pixel units.
// (0,0) is the top-left cell; Y grows downward.
// Valid points are multiples of Grid.BlockSize inside the grid.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is the absolute heading of the snake.
type Direction int

const (
	Right Direction = iota + 1
	Left
	Up
	Down
)

var directionNames = map[Direction]string{
	Right: "right",
	Left:  "left",
	Up:    "up",
	Down:  "down",
}

func (d Direction) String() string {
	if n, ok := directionNames[d]; ok {
		return n
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Opposite returns the reverse heading.
func (d Direction) Opposite() Direction {
	switch d {
	case Right:
		return Left
	case Left:
		return Right
	case Up:
		return Down
	case Down:
		return Up
	}
	return d
}

// Clockwise is the cyclic order used for heading-relative features.
var Clockwise = [4]Direction{Right, Down, Left, Up}

// ClockwiseIndex returns d's position in Clockwise, or -1.
func (d Direction) ClockwiseIndex() int {
	for i, c := range Clockwise {
		if c == d {
			return i
		}
	}
	return -1
}

// Action is the discrete control code supplied by a driver each tick.
// It sets the absolute heading; it is not relative to the current one.
type Action int

const (
	ActionLeft  Action = 0
	ActionRight Action = 1
	ActionUp    Action = 2
	ActionDown  Action = 3
)

// NumActions is the size of the action space.
const NumActions = 4

// Direction maps the action to a heading. ok is false for unknown codes.
func (a Action) Direction() (d Direction, ok bool) {
	switch a {
	case ActionLeft:
		return Left, true
	case ActionRight:
		return Right, true
	case ActionUp:
		return Up, true
	case ActionDown:
		return Down, true
	}
	return 0, false
}

// ActionFor is the inverse of Action.Direction.
func ActionFor(d Direction) Action {
	switch d {
	case Left:
		return ActionLeft
	case Up:
		return ActionUp
	case Down:
		return ActionDown
	}
	return ActionRight
}

func (a Action) String() string {
	if d, ok := a.Direction(); ok {
		return d.String()
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Grid is the fixed board geometry: Width x Height cells of BlockSize units.
type Grid struct {
	Width     int
	Height    int
	BlockSize int
}

// DefaultGrid matches the classic 20x20 board with 20px cells.
var DefaultGrid = Grid{Width: 20, Height: 20, BlockSize: 20}

func (g Grid) PixelWidth() int  { return g.Width * g.BlockSize }
func (g Grid) PixelHeight() int { return g.Height * g.BlockSize }
func (g Grid) Cells() int       { return g.Width * g.Height }

// Cell converts cell indices to a pixel-unit point.
func (g Grid) Cell(cx, cy int) Point {
	return Point{X: cx * g.BlockSize, Y: cy * g.BlockSize}
}

// Contains reports whether p lies inside the board.
func (g Grid) Contains(p Point) bool {
	return p.X >= 0 && p.X < g.PixelWidth() && p.Y >= 0 && p.Y < g.PixelHeight()
}

// Move returns p shifted one block in direction d.
func (g Grid) Move(p Point, d Direction) Point {
	switch d {
	case Right:
		p.X += g.BlockSize
	case Left:
		p.X -= g.BlockSize
	case Down:
		p.Y += g.BlockSize
	case Up:
		p.Y -= g.BlockSize
	}
	return p
}

// Settings controls scoring and episode limits.
type Settings struct {
	SurvivalReward int // Added on every non-terminal tick
	FoodReward     int // Added on ticks where food is eaten
	TimeoutFactor  int // Episode ends when FrameIteration > TimeoutFactor*len(Snake)

	// IgnoreReversal drops actions that point straight back into the neck.
	// Off by default: reversals are accepted and collide immediately.
	IgnoreReversal bool

	// MaxFoodAttempts bounds rejection sampling before falling back to a
	// free-cell scan. Zero means 4 * cells.
	MaxFoodAttempts int
}

// DefaultSettings is +2 per tick, +10 per food, timeout at 50 ticks per segment.
var DefaultSettings = Settings{SurvivalReward: 2, FoodReward: 10, TimeoutFactor: 50}

// DeathCause records why an episode ended.
type DeathCause string

const (
	CauseNone          DeathCause = ""
	CauseWallCollision DeathCause = "wall-collision"
	CauseSelfCollision DeathCause = "self-collision"
	CauseTimeout       DeathCause = "timeout"
)

// GameState is the complete mutable state of one episode.
// Snake is head first.
type GameState struct {
	Grid           Grid
	Snake          []Point
	Direction      Direction
	Food           Point
	HasFood        bool
	Score          int
	FrameIteration int
	GameOver       bool
	Cause          DeathCause
}

// Head returns the first segment.
func (s *GameState) Head() Point {
	return s.Snake[0]
}

// Occupies reports whether any segment sits on p.
func (s *GameState) Occupies(p Point) bool {
	for _, b := range s.Snake {
		if b == p {
			return true
		}
	}
	return false
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := *s
	if len(s.Snake) > 0 {
		out.Snake = make([]Point, len(s.Snake))
		copy(out.Snake, s.Snake)
	} else {
		out.Snake = nil
	}
	return &out
}
