package rules

import (
	"math/rand"

	"github.com/brensch/snekenv/game"
)

// Outcome describes what a single tick did.
type Outcome struct {
	Terminal bool
	Ate      bool
	Cause    game.DeathCause
	Score    int
}

// Advance applies one tick to state in place.
//
// Order: count the frame, take the heading from action, prepend the new head,
// then check for wall, self and timeout. A terminal tick returns before any
// reward, tail removal or food placement, leaving the new head in the body.
// Otherwise the survival reward is added and the snake either eats (food
// reward, grow, re-place food) or drops its tail.
//
// Unknown action codes keep the previous heading. Advancing a state that is
// already over is a no-op.
func Advance(state *game.GameState, action game.Action, settings game.Settings, rng *rand.Rand) Outcome {
	if state.GameOver {
		return Outcome{Terminal: true, Cause: state.Cause, Score: state.Score}
	}

	state.FrameIteration++

	if d, ok := action.Direction(); ok {
		if !(settings.IgnoreReversal && len(state.Snake) > 1 && d == state.Direction.Opposite()) {
			state.Direction = d
		}
	}

	newHead := state.Grid.Move(state.Head(), state.Direction)
	state.Snake = append(state.Snake, game.Point{})
	copy(state.Snake[1:], state.Snake)
	state.Snake[0] = newHead

	if cause := terminalCause(state, settings); cause != game.CauseNone {
		state.GameOver = true
		state.Cause = cause
		return Outcome{Terminal: true, Cause: cause, Score: state.Score}
	}

	state.Score += settings.SurvivalReward

	ate := state.HasFood && newHead == state.Food
	if ate {
		state.Score += settings.FoodReward
		game.PlaceFood(state, rng, settings.MaxFoodAttempts)
	} else {
		state.Snake = state.Snake[:len(state.Snake)-1]
	}

	return Outcome{Ate: ate, Score: state.Score}
}

// terminalCause runs after the new head is prepended, so the timeout bound
// uses the grown length.
func terminalCause(state *game.GameState, settings game.Settings) game.DeathCause {
	head := state.Head()
	if !state.Grid.Contains(head) {
		return game.CauseWallCollision
	}
	for _, p := range state.Snake[1:] {
		if p == head {
			return game.CauseSelfCollision
		}
	}
	if state.FrameIteration > settings.TimeoutFactor*len(state.Snake) {
		return game.CauseTimeout
	}
	return game.CauseNone
}

// IsCollision reports whether moving the head onto p would end the episode
// by wall or body. The tail counts: the head is prepended before the tail
// leaves.
func IsCollision(state *game.GameState, p game.Point) bool {
	if !state.Grid.Contains(p) {
		return true
	}
	// Advance compares the new head against the whole pre-move body.
	return state.Occupies(p)
}

// LegalActions returns the actions that do not immediately hit a wall or the
// body. Timeouts are not considered.
func LegalActions(state *game.GameState) []game.Action {
	if state.GameOver || len(state.Snake) == 0 {
		return []game.Action{}
	}

	head := state.Head()
	actions := []game.Action{}
	for a := game.Action(0); a < game.NumActions; a++ {
		d, _ := a.Direction()
		if !IsCollision(state, state.Grid.Move(head, d)) {
			actions = append(actions, a)
		}
	}
	return actions
}
