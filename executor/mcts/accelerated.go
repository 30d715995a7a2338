package mcts

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/zeroclone/executor/policy"
	"github.com/brensch/zeroclone/executor/value"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/metrics"
)

// Accelerated has the same contract as Reference. It sizes the arena up
// front and, for sources without a joint batch path, evaluates the leaves of
// a flush concurrently.
type Accelerated struct {
	Backend game.Backend
	Value   value.Source
	Policy  policy.Policy
	Config  Config
	// Workers bounds the per-flush fan out. Zero means GOMAXPROCS.
	Workers int
}

func (a *Accelerated) Search(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	joint := value.IsJoint(a.Value)
	_, seeded := value.Reseed(a.Value, 0)
	workers := a.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	res, err := run(ctx, a.Backend, a.Policy, a.Config, req, req.Simulations+1, func(ctx context.Context, states []game.State, seeds []int64) ([]float64, error) {
		if joint || (len(states) == 1 && !seeded) {
			return a.Value.EvaluateBatch(ctx, a.Backend, states)
		}
		out := make([]float64, len(states))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, s := range states {
			src := a.Value
			if seeded {
				src, _ = value.Reseed(a.Value, seeds[i])
			}
			g.Go(func() error {
				v, err := src.Evaluate(gctx, a.Backend, s)
				if err != nil {
					return err
				}
				out[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err == nil {
		metrics.ObserveSearch("accelerated", time.Since(start))
	}
	return res, err
}
