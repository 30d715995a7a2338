package selfplay

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/brensch/zeroclone/config"
	"github.com/brensch/zeroclone/executor/inference"
	"github.com/brensch/zeroclone/executor/mcts"
	"github.com/brensch/zeroclone/executor/policy"
	"github.com/brensch/zeroclone/executor/value"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/rules"
)

// Backend resolves the game named by cfg. The optional backend key must name
// the same game.
func Backend(cfg config.Config) (game.Backend, error) {
	b, err := rules.Lookup(cfg.Game)
	if err != nil {
		return nil, err
	}
	if cfg.Backend != "" {
		alt, err := rules.Lookup(cfg.Backend)
		if err != nil {
			return nil, err
		}
		if alt.Name() != b.Name() {
			return nil, fmt.Errorf("backend %q does not implement game %q", cfg.Backend, cfg.Game)
		}
	}
	return b, nil
}

// NewSearcher builds the searcher for one value function. A network source
// opens an ONNX pool which is returned so the caller can close it.
func NewSearcher(cfg config.Config, b game.Backend, valueName string, seed int64) (mcts.Searcher, io.Closer, error) {
	pol, err := policy.New(cfg.PolicyFunction, cfg.Policy.PolicyFreedom)
	if err != nil {
		return nil, nil, err
	}

	opts := value.Options{
		Backend:        b,
		Seed:           seed,
		WinScore:       cfg.Value.WinScore,
		ExactTerminals: cfg.Value.ExactTerminals,
	}
	var closer io.Closer
	if valueName == value.NameNetwork {
		pool, err := inference.NewOnnxPool(inference.OnnxConfig{
			ModelPath:   cfg.Value.ModelPath,
			LibraryPath: cfg.Onnx.LibraryPath,
			StateShape:  b.TensorShape(),
			UseCUDA:     cfg.Onnx.UseCUDA,
		}, cfg.Value.Sessions, cfg.Value.BatchSize)
		if err != nil {
			return nil, nil, err
		}
		opts.Predictor = pool
		closer = pool
	}

	src, err := value.New(valueName, opts)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}

	ref := &mcts.Reference{
		Backend: b,
		Value:   src,
		Policy:  pol,
		Config: mcts.Config{
			BatchSize: cfg.MCTS.BatchSize,
			Budget:    cfg.MCTS.Budget,
		},
	}
	return mcts.New(ref, cfg.MCTS.Accelerated), closer, nil
}

// NewFromConfig builds an engine with one searcher per side. When both sides
// use the network they share one pool.
func NewFromConfig(cfg config.Config) (*Engine, error) {
	b, err := Backend(cfg)
	if err != nil {
		return nil, err
	}

	names := cfg.SideValueFunctions()
	var searchers [2]mcts.Searcher
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	for side, name := range names {
		if side == 1 && name == names[0] {
			searchers[1] = searchers[0]
			break
		}
		s, closer, err := NewSearcher(cfg, b, name, cfg.Seed+int64(side))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("value function for player %d: %w", side, err)
		}
		searchers[side] = s
		if closer != nil {
			closers = append(closers, closer)
		}
	}

	log.Info().
		Str("game", b.Name()).
		Str("value0", names[0]).
		Str("value1", names[1]).
		Str("policy", cfg.PolicyFunction).
		Int("threads", cfg.Threads).
		Bool("accelerated", cfg.MCTS.Accelerated).
		Msg("engine ready")

	return NewEngine(b, searchers, Options{Seed: cfg.Seed, Threads: cfg.Threads}, closers...), nil
}
