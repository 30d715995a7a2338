// Package value holds the leaf evaluators used by the search. Every value is
// from the perspective of the player to move in the evaluated state.
package value

import (
	"context"
	"errors"
	"fmt"

	"github.com/brensch/zeroclone/executor/inference"
	"github.com/brensch/zeroclone/game"
)

// Source scores positions. EvaluateBatch must preserve order and agree with
// Evaluate item by item, but may compute the batch jointly.
type Source interface {
	Evaluate(ctx context.Context, b game.Backend, s game.State) (float64, error)
	EvaluateBatch(ctx context.Context, b game.Backend, states []game.State) ([]float64, error)
}

const (
	NameRollout   = "random_rollout"
	NameHeuristic = "crude_score"
	NameNetwork   = "network"

	DefaultWinScore = 1000
)

var ErrNoEvaluator = errors.New("value: backend has no static evaluator")

type Options struct {
	Backend game.Backend
	Seed    int64
	// WinScore is what the heuristic source reports for a decided position.
	WinScore float64
	// Predictor is required by the network source.
	Predictor inference.Predictor
	// ExactTerminals wraps the source in Terminal.
	ExactTerminals bool
}

// New builds a source by name. Construction errors are final; a source that
// builds will not fail later for configuration reasons.
func New(name string, opts Options) (Source, error) {
	var src Source
	switch name {
	case NameRollout, "rollout", "random":
		src = NewRollout(opts.Seed)
	case NameHeuristic, "heuristic":
		h, err := NewHeuristic(opts.Backend, opts.WinScore)
		if err != nil {
			return nil, err
		}
		src = h
	case NameNetwork:
		if opts.Predictor == nil {
			return nil, errors.New("value: network source needs a predictor")
		}
		src = NewNetwork(opts.Predictor)
	default:
		return nil, fmt.Errorf("value: unknown value function %q", name)
	}
	if opts.ExactTerminals {
		src = Terminal{Inner: src}
	}
	return src, nil
}

// IsJoint reports whether src computes EvaluateBatch in one call rather than
// item by item.
func IsJoint(src Source) bool {
	switch s := src.(type) {
	case *Network:
		return true
	case Terminal:
		return IsJoint(s.Inner)
	default:
		return false
	}
}

// Seeder is implemented by sources that draw random numbers.
type Seeder interface {
	WithSeed(seed int64) Source
}

// Reseed returns a copy of src whose random draws are fixed by seed. It
// returns src and false when src draws no random numbers.
func Reseed(src Source, seed int64) (Source, bool) {
	switch s := src.(type) {
	case Seeder:
		return s.WithSeed(seed), true
	case Terminal:
		inner, ok := Reseed(s.Inner, seed)
		if !ok {
			return src, false
		}
		return Terminal{Inner: inner}, true
	default:
		return src, false
	}
}

// evaluateEach is the batch path for sources with no joint computation.
func evaluateEach(ctx context.Context, src Source, b game.Backend, states []game.State) ([]float64, error) {
	out := make([]float64, len(states))
	for i, s := range states {
		v, err := src.Evaluate(ctx, b, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Terminal answers decided positions exactly and forwards the rest to Inner.
type Terminal struct {
	Inner Source
}

func terminalValue(b game.Backend, s game.State) (float64, bool) {
	if b.IsWin(s) {
		// The previous mover won.
		return -1, true
	}
	if b.IsDraw(s) {
		return 0, true
	}
	return 0, false
}

func (t Terminal) Evaluate(ctx context.Context, b game.Backend, s game.State) (float64, error) {
	if v, ok := terminalValue(b, s); ok {
		return v, nil
	}
	return t.Inner.Evaluate(ctx, b, s)
}

func (t Terminal) EvaluateBatch(ctx context.Context, b game.Backend, states []game.State) ([]float64, error) {
	out := make([]float64, len(states))
	pending := make([]game.State, 0, len(states))
	idx := make([]int, 0, len(states))
	for i, s := range states {
		if v, ok := terminalValue(b, s); ok {
			out[i] = v
			continue
		}
		pending = append(pending, s)
		idx = append(idx, i)
	}
	if len(pending) == 0 {
		return out, nil
	}
	vals, err := t.Inner.EvaluateBatch(ctx, b, pending)
	if err != nil {
		return nil, err
	}
	for j, v := range vals {
		out[idx[j]] = v
	}
	return out, nil
}
