package mcts

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/brensch/zeroclone/executor/policy"
	"github.com/brensch/zeroclone/executor/value"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/metrics"
)

const DefaultBatchSize = 1

// Config holds the knobs shared by every searcher.
type Config struct {
	// BatchSize is how many leaves are collected before they are evaluated
	// together. 1 evaluates every leaf as soon as it is reached.
	BatchSize int
	// Budget, when positive, stops the simulation loop after this much wall
	// time. The best move found so far is still returned.
	Budget time.Duration
}

type Request struct {
	State       game.State
	Simulations int
	C           float64
	// Seed drives the expansion policy and any randomness in the value
	// source, so a search can be replayed exactly.
	Seed int64
}

type Result struct {
	Move game.Move
	Tree *Tree
	// Simulations is how many simulations ran, which is less than requested
	// only when the budget ran out.
	Simulations int
}

type Searcher interface {
	Search(ctx context.Context, req Request) (Result, error)
}

// evalFunc scores a flushed batch of leaf states. seeds holds one seed per
// state for sources that draw random numbers.
type evalFunc func(ctx context.Context, states []game.State, seeds []int64) ([]float64, error)

// leafSeed fixes a leaf's randomness by its arena index rather than by the
// order leaves are evaluated in.
func leafSeed(seed int64, leaf int) int64 {
	return seed*1_000_003 + int64(leaf)
}

// Reference is the plain batched search. Leaves reached before a flush are
// selected against statistics that do not yet include the pending leaves.
type Reference struct {
	Backend game.Backend
	Value   value.Source
	Policy  policy.Policy
	Config  Config
}

func (r *Reference) Search(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := run(ctx, r.Backend, r.Policy, r.Config, req, 0, func(ctx context.Context, states []game.State, seeds []int64) ([]float64, error) {
		if _, seeded := value.Reseed(r.Value, 0); seeded {
			out := make([]float64, len(states))
			for i, s := range states {
				src, _ := value.Reseed(r.Value, seeds[i])
				v, err := src.Evaluate(ctx, r.Backend, s)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return out, nil
		}
		if len(states) == 1 {
			v, err := r.Value.Evaluate(ctx, r.Backend, states[0])
			if err != nil {
				return nil, err
			}
			return []float64{v}, nil
		}
		return r.Value.EvaluateBatch(ctx, r.Backend, states)
	})
	if err == nil {
		metrics.ObserveSearch("reference", time.Since(start))
	}
	return res, err
}

func run(ctx context.Context, b game.Backend, pol policy.Policy, cfg Config, req Request, capacity int, eval evalFunc) (Result, error) {
	start := time.Now()
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	t := NewTree(b, req.State, capacity)
	if t.Root().Terminal() {
		return Result{}, game.ErrNoLegalMoves
	}
	rng := rand.New(rand.NewSource(req.Seed))

	pending := make([]int, 0, batchSize)
	states := make([]game.State, 0, batchSize)
	seeds := make([]int64, 0, batchSize)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		states, seeds = states[:0], seeds[:0]
		for _, leaf := range pending {
			states = append(states, t.Nodes[leaf].State)
			seeds = append(seeds, leafSeed(req.Seed, leaf))
		}
		vals, err := eval(ctx, states, seeds)
		if err != nil {
			return fmt.Errorf("evaluate leaves: %w", err)
		}
		if len(vals) != len(pending) {
			return fmt.Errorf("evaluate leaves: got %d values for %d states", len(vals), len(pending))
		}
		for i, leaf := range pending {
			t.Backprop(leaf, vals[i])
		}
		pending = pending[:0]
		return nil
	}

	sims := 0
	for sims < req.Simulations {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if cfg.Budget > 0 && time.Since(start) >= cfg.Budget {
			break
		}

		leaf := t.Select(req.C)
		if len(t.Nodes[leaf].Untried) > 0 {
			leaf = t.Expand(leaf, pol, rng)
		}
		pending = append(pending, leaf)
		sims++

		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return Result{}, err
			}
		}
	}
	if err := flush(); err != nil {
		return Result{}, err
	}

	move, err := t.BestMove()
	if err != nil {
		return Result{}, err
	}
	return Result{Move: move, Tree: t, Simulations: sims}, nil
}
