package mcts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/brensch/zeroclone/metrics"
)

// Fallback runs Primary and, if it fails or panics, reruns the same request
// on Reference. Callers see the reference result and no error.
type Fallback struct {
	Primary   Searcher
	Reference Searcher
}

func (f *Fallback) Search(ctx context.Context, req Request) (Result, error) {
	if f.Primary == nil {
		return f.Reference.Search(ctx, req)
	}
	res, err := safeSearch(ctx, f.Primary, req)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	log.Debug().Err(err).Msg("primary search failed, rerunning reference")
	metrics.ObserveSearchFallback()
	return f.Reference.Search(ctx, req)
}

var errSearchPanic = errors.New("search panicked")

func safeSearch(ctx context.Context, s Searcher, req Request) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("%w: %v", errSearchPanic, r)
		}
	}()
	return s.Search(ctx, req)
}

// New returns the searcher used by the engine: the accelerated search behind
// a reference fallback, or the reference alone.
func New(ref *Reference, accelerate bool) Searcher {
	if !accelerate {
		return ref
	}
	return &Fallback{
		Primary: &Accelerated{
			Backend: ref.Backend,
			Value:   ref.Value,
			Policy:  ref.Policy,
			Config:  ref.Config,
		},
		Reference: ref,
	}
}
