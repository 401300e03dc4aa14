// visualize.go - Console tracing for debugging self-play episodes.
//
// TraceState logs the board plus the encoded observation so a bad policy
// decision can be matched to the features it saw.
package selfplay

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/render"
)

func TraceState(logger *slog.Logger, state *game.GameState) {
	var sb strings.Builder
	sb.WriteString(render.Board(state))
	writeFeatures(&sb, convert.Encode(state))
	logger.Debug("trace", "board", "\n"+sb.String())
}

func writeFeatures(sb *strings.Builder, obs convert.Observation) {
	sb.WriteString("--- features ---\n")
	for i, v := range obs {
		fmt.Fprintf(sb, "%-14s %6.3f\n", convert.FeatureNames[i], v)
	}
}
