package value

import (
	"context"

	"github.com/brensch/zeroclone/game"
)

// Heuristic wraps a backend's static evaluator. A decided position scores
// -WinScore since the side to move has just lost.
type Heuristic struct {
	eval     game.Evaluator
	winScore float64
}

func NewHeuristic(b game.Backend, winScore float64) (*Heuristic, error) {
	eval, ok := b.(game.Evaluator)
	if !ok {
		return nil, ErrNoEvaluator
	}
	if winScore == 0 {
		winScore = DefaultWinScore
	}
	return &Heuristic{eval: eval, winScore: winScore}, nil
}

func (h *Heuristic) Evaluate(_ context.Context, b game.Backend, s game.State) (float64, error) {
	if b.IsWin(s) {
		return -h.winScore, nil
	}
	return h.eval.Evaluate(s), nil
}

func (h *Heuristic) EvaluateBatch(ctx context.Context, b game.Backend, states []game.State) ([]float64, error) {
	return evaluateEach(ctx, h, b, states)
}
