package value

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/brensch/zeroclone/game"
)

// Rollout plays uniformly random legal moves to the end of the game.
type Rollout struct {
	seed int64
	mu   sync.Mutex
	rng  *rand.Rand
}

func NewRollout(seed int64) *Rollout {
	return &Rollout{seed: seed, rng: rand.New(rand.NewPCG(uint64(seed), 0))}
}

// WithSeed returns a rollout with its own generator, fixed by seed and the
// seed r was built with. Draws on r do not affect it.
func (r *Rollout) WithSeed(seed int64) Source {
	return &Rollout{seed: r.seed, rng: rand.New(rand.NewPCG(uint64(r.seed), uint64(seed)))}
}

func (r *Rollout) Evaluate(ctx context.Context, b game.Backend, s game.State) (float64, error) {
	mover := s.Turn()
	cur := s
	for {
		if b.IsWin(cur) {
			if 1-cur.Turn() == mover {
				return 1, nil
			}
			return -1, nil
		}
		if b.IsDraw(cur) {
			return 0, nil
		}
		moves := b.LegalMoves(cur)
		if len(moves) == 0 {
			return 0, nil
		}
		r.mu.Lock()
		m := moves[r.rng.IntN(len(moves))]
		r.mu.Unlock()
		cur = b.Play(cur, m)
	}
}

func (r *Rollout) EvaluateBatch(ctx context.Context, b game.Backend, states []game.State) ([]float64, error) {
	return evaluateEach(ctx, r, b, states)
}
