package selfplay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/brensch/zeroclone/executor/mcts"
	"github.com/brensch/zeroclone/game"
)

// WinRate scores results for the "latest" side: a win counts 1, a draw half.
func WinRate(results []game.Outcome, latestIsPlayer0 bool) float64 {
	if len(results) == 0 {
		return 0
	}
	want := game.Player1Won
	if latestIsPlayer0 {
		want = game.Player0Won
	}
	var score float64
	for _, r := range results {
		switch r {
		case want:
			score++
		case game.Draw:
			score += 0.5
		}
	}
	return score / float64(len(results))
}

type ArenaOptions struct {
	Games       int
	Simulations int
	C           float64
	Threads     int
	Seed        int64
}

// EvaluatePair plays latest against other, half the games with latest
// moving first and the rest with it moving second, and returns latest's
// overall win rate.
func EvaluatePair(ctx context.Context, b game.Backend, latest, other mcts.Searcher, opts ArenaOptions) (float64, error) {
	if opts.Games <= 0 {
		return 0, nil
	}
	first := opts.Games / 2
	second := opts.Games - first

	play := func(searchers [2]mcts.Searcher, n int, seed int64) ([]game.Outcome, error) {
		if n == 0 {
			return nil, nil
		}
		e := NewEngine(b, searchers, Options{Seed: seed, Threads: opts.Threads, Source: "arena"})
		return e.SimulateGames(ctx, n, opts.Simulations, opts.C)
	}

	asFirst, err := play([2]mcts.Searcher{latest, other}, first, opts.Seed)
	if err != nil {
		return 0, fmt.Errorf("arena, latest first: %w", err)
	}
	asSecond, err := play([2]mcts.Searcher{other, latest}, second, opts.Seed+1)
	if err != nil {
		return 0, fmt.Errorf("arena, latest second: %w", err)
	}

	rate := (WinRate(asFirst, true)*float64(first) + WinRate(asSecond, false)*float64(second)) / float64(opts.Games)
	log.Info().
		Int("games", opts.Games).
		Float64("as_player0", WinRate(asFirst, true)).
		Float64("as_player1", WinRate(asSecond, false)).
		Float64("win_rate", rate).
		Msg("arena finished")
	return rate, nil
}
