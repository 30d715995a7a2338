package selfplay

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/brensch/zeroclone/executor/mcts"
	"github.com/brensch/zeroclone/game"
)

// WriteTrace prints the position, the root edge statistics of the search
// that was run on it, and the encoded input planes.
func WriteTrace(w io.Writer, b game.Backend, state game.State, res mcts.Result) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n=== TRACE ply for player %d ===\n", state.Turn()))
	sb.WriteString(game.Describe(b, state))
	sb.WriteString("\n")

	if res.Tree != nil {
		root := res.Tree.Root()
		visits := res.Tree.Visits()
		sb.WriteString(fmt.Sprintf("--- root N=%d sims=%d chosen=%s ---\n", root.N, res.Simulations, res.Move))
		for a, m := range root.Moves {
			q := root.Qa[a]
			qs := "   -  "
			if !math.IsInf(q, 1) {
				qs = fmt.Sprintf("%+.3f", q)
			}
			sb.WriteString(fmt.Sprintf("move %3s  score %6.1f  Na %5d  Q %s  childN %5d\n", m, m.Score, root.Na[a], qs, visits[a]))
		}
	}

	writeEncodedPlanes(&sb, b, state)
	_, _ = io.WriteString(w, sb.String())
}

// writeEncodedPlanes prints Encode as (C,H,W) planes. Other shapes are
// printed as one flat row.
func writeEncodedPlanes(sb *strings.Builder, b game.Backend, state game.State) {
	data := b.Encode(state)
	shape := b.TensorShape()

	sb.WriteString("--- TRACE encoded input ---\n")
	if len(shape) != 3 {
		for _, v := range data {
			sb.WriteString(fmt.Sprintf("%4.2f ", v))
		}
		sb.WriteString("\n")
		return
	}

	channels, height, width := int(shape[0]), int(shape[1]), int(shape[2])
	for c := 0; c < channels; c++ {
		sb.WriteString(fmt.Sprintf("plane %d:\n", c))
		base := c * height * width
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := data[base+y*width+x]
				if v == 0 {
					sb.WriteString("   . ")
					continue
				}
				sb.WriteString(fmt.Sprintf("%4.2f ", v))
			}
			sb.WriteString("\n")
		}
	}
}
