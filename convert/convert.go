package convert

import (
	"sync"

	"github.com/brensch/snekenv/game"
)

// Feature layout (11 total):
// 0,1   head x,y
// 2,3   food x,y
// 4..6  wall progress left/straight/right of heading
// 7..9  body proximity left/straight/right of heading
// 10    snake length over board area
const (
	HeadX = iota
	HeadY
	FoodX
	FoodY
	LeftWall
	StraightWall
	RightWall
	LeftBody
	StraightBody
	RightBody
	Length

	NumFeatures
)

// FeatureNames labels each slot of an Observation, in order.
var FeatureNames = [NumFeatures]string{
	"head_x", "head_y", "food_x", "food_y",
	"left_wall", "straight_wall", "right_wall",
	"left_body", "straight_body", "right_body",
	"length",
}

// Observation is the fixed-length feature vector handed to a policy.
// It is a value type; callers own their copy.
type Observation [NumFeatures]float64

var floatPool = sync.Pool{
	New: func() interface{} {
		b := make([]float32, NumFeatures)
		return &b
	},
}

func GetFloatBuffer() *[]float32 {
	return floatPool.Get().(*[]float32)
}

func PutFloatBuffer(b *[]float32) {
	floatPool.Put(b)
}

// Encode describes state relative to the snake's heading.
//
// Coordinates are normalised by cell index (x / BlockSize / Width), so head,
// food and wall values stay in [0,1] for any block size. Positions are thus
// divided by BlockSize*Width, which differs from x / Width whenever
// BlockSize is not 1. Wall values are the fraction of the board already
// traversed toward that wall, not the clearance left. Body values are the
// largest head/segment coordinate ratio among segments on the head's row or
// column in that direction, 0 if none.
//
// Encode does not mutate state. When the board has no food the food slots
// are zero.
func Encode(state *game.GameState) Observation {
	var obs Observation
	if state == nil || len(state.Snake) == 0 {
		return obs
	}

	g := state.Grid
	w := float64(g.Width)
	h := float64(g.Height)
	bs := float64(g.BlockSize)
	head := state.Head()

	hx := float64(head.X) / bs / w
	hy := float64(head.Y) / bs / h
	obs[HeadX] = hx
	obs[HeadY] = hy

	if state.HasFood {
		obs[FoodX] = float64(state.Food.X) / bs / w
		obs[FoodY] = float64(state.Food.Y) / bs / h
	}

	cur := state.Direction.ClockwiseIndex()
	if cur < 0 {
		cur = 0
	}

	// Clockwise order: right, down, left, up.
	walls := [4]float64{hx, hy, 1 - hx, 1 - hy}

	var bodies [4]float64
	for _, pt := range state.Snake[1:] {
		if head.Y == pt.Y && head.X < pt.X {
			bodies[0] = max(bodies[0], float64(head.X)/float64(pt.X))
		}
		if head.X == pt.X && head.Y < pt.Y {
			bodies[1] = max(bodies[1], float64(head.Y)/float64(pt.Y))
		}
		if head.Y == pt.Y && head.X > pt.X {
			bodies[2] = max(bodies[2], float64(pt.X)/float64(head.X))
		}
		if head.X == pt.X && head.Y > pt.Y {
			bodies[3] = max(bodies[3], float64(pt.Y)/float64(head.Y))
		}
	}

	left := (cur + 3) % 4
	right := (cur + 1) % 4

	obs[LeftWall] = walls[left]
	obs[StraightWall] = walls[cur]
	obs[RightWall] = walls[right]
	obs[LeftBody] = bodies[left]
	obs[StraightBody] = bodies[cur]
	obs[RightBody] = bodies[right]

	obs[Length] = float64(len(state.Snake)) / float64(g.Cells())

	return obs
}

// ToFloat32 copies obs into a pooled float32 slice suitable for ONNX input.
// Caller must return it to the pool using PutFloatBuffer.
func (obs Observation) ToFloat32() *[]float32 {
	dataPtr := GetFloatBuffer()
	data := *dataPtr
	for i, v := range obs {
		data[i] = float32(v)
	}
	return dataPtr
}
