// Package policy holds the decision makers that drive an engine from the
// outside. None of them plan; they map an observation to one action.
package policy

import (
	"fmt"
	"math/rand"

	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/rules"
)

// Policy chooses the next action. state is a read-only snapshot.
type Policy interface {
	Act(obs convert.Observation, state *game.GameState) (game.Action, error)
}

// Predictor scores each action for an observation (higher is better).
type Predictor interface {
	Predict(obs convert.Observation) ([]float32, error)
}

// Random picks uniformly. With Safe set it only picks among actions that do
// not collide this tick, falling back to any action when boxed in.
type Random struct {
	Rng  *rand.Rand
	Safe bool
}

func NewRandom(seed int64, safe bool) *Random {
	return &Random{Rng: rand.New(rand.NewSource(seed)), Safe: safe}
}

func (r *Random) Act(_ convert.Observation, state *game.GameState) (game.Action, error) {
	if r.Safe && state != nil {
		if legal := rules.LegalActions(state); len(legal) > 0 {
			return legal[r.Rng.Intn(len(legal))], nil
		}
	}
	return game.Action(r.Rng.Intn(game.NumActions)), nil
}

// Model picks the highest scoring action from a Predictor, exploring with
// probability Epsilon.
type Model struct {
	Predictor Predictor
	Epsilon   float64
	Rng       *rand.Rand
}

func (m *Model) Act(obs convert.Observation, _ *game.GameState) (game.Action, error) {
	if m.Epsilon > 0 && m.Rng != nil && m.Rng.Float64() < m.Epsilon {
		return game.Action(m.Rng.Intn(game.NumActions)), nil
	}

	scores, err := m.Predictor.Predict(obs)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if len(scores) < game.NumActions {
		return 0, fmt.Errorf("predict: got %d scores, want %d", len(scores), game.NumActions)
	}
	return Argmax(scores[:game.NumActions]), nil
}

// Argmax returns the first index of the largest score as an action.
func Argmax(scores []float32) game.Action {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return game.Action(best)
}
