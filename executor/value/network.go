package value

import (
	"context"
	"fmt"

	"github.com/brensch/zeroclone/executor/inference"
	"github.com/brensch/zeroclone/game"
)

// Network scores states with a learned model behind a batching predictor.
type Network struct {
	predictor inference.Predictor
}

func NewNetwork(p inference.Predictor) *Network {
	return &Network{predictor: p}
}

func (n *Network) Evaluate(ctx context.Context, b game.Backend, s game.State) (float64, error) {
	v, err := n.predictor.Predict(ctx, b.Encode(s))
	if err != nil {
		return 0, fmt.Errorf("network value: %w", err)
	}
	return clamp(float64(v)), nil
}

// EvaluateBatch submits every state before waiting so they share a model call.
func (n *Network) EvaluateBatch(ctx context.Context, b game.Backend, states []game.State) ([]float64, error) {
	inputs := make([][]float32, len(states))
	for i, s := range states {
		inputs[i] = b.Encode(s)
	}
	vals, err := n.predictor.PredictBatch(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("network value: %w", err)
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = clamp(float64(v))
	}
	return out, nil
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
