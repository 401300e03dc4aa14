// food.go implements food placement for the single-snake board.

package game

import (
	"math/rand"
)

// PlaceFood puts food on a uniformly random cell not covered by the snake.
//
// Candidates are drawn by rejection sampling. After maxAttempts misses
// (4*cells when maxAttempts <= 0) the remaining free cells are scanned and
// one is chosen directly, which keeps the distribution uniform while bounding
// work on a nearly full board. Returns false, leaving HasFood unset, when no
// free cell exists.
func PlaceFood(state *GameState, rng *rand.Rand, maxAttempts int) bool {
	g := state.Grid
	if g.Width <= 0 || g.Height <= 0 {
		state.HasFood = false
		return false
	}
	if maxAttempts <= 0 {
		maxAttempts = 4 * g.Cells()
	}

	for i := 0; i < maxAttempts; i++ {
		p := g.Cell(rng.Intn(g.Width), rng.Intn(g.Height))
		if !state.Occupies(p) {
			state.Food = p
			state.HasFood = true
			return true
		}
	}

	occupied := make(map[Point]struct{}, len(state.Snake))
	for _, p := range state.Snake {
		occupied[p] = struct{}{}
	}

	available := make([]Point, 0, g.Cells()-len(occupied))
	for cy := 0; cy < g.Height; cy++ {
		for cx := 0; cx < g.Width; cx++ {
			p := g.Cell(cx, cy)
			if _, ok := occupied[p]; ok {
				continue
			}
			available = append(available, p)
		}
	}
	if len(available) == 0 {
		state.HasFood = false
		return false
	}

	state.Food = available[rng.Intn(len(available))]
	state.HasFood = true
	return true
}
