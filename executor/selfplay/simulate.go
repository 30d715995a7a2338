package selfplay

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/brensch/zeroclone/game"
)

// SimulateGames plays total games to the end, keeping Threads games in
// flight. Unfinished games already in the engine are picked up first, then
// new ones are added as slots free up. Outcomes come back in the order the
// games were started.
func (e *Engine) SimulateGames(ctx context.Context, total, simulations int, c float64) ([]game.Outcome, error) {
	if total <= 0 {
		return nil, nil
	}

	var queue []int
	for id := 0; id < e.NumGames() && len(queue) < total; id++ {
		if st, _ := e.Status(id); !st.Done {
			queue = append(queue, id)
		}
	}

	order := make(map[int]int, total)
	start := func() int {
		var id int
		if len(queue) > 0 {
			id, queue = queue[0], queue[1:]
		} else {
			id = e.AddGame(nil)
		}
		order[id] = len(order)
		return id
	}

	inFlight := make([]int, 0, e.opts.Threads)
	for len(inFlight) < e.opts.Threads && len(order) < total {
		inFlight = append(inFlight, start())
	}

	results := make([]game.Outcome, total)
	for len(inFlight) > 0 {
		statuses, err := e.PlayMCTSParallel(ctx, inFlight, simulations, c, e.opts.Threads)
		if err != nil {
			return nil, err
		}

		next := inFlight[:0]
		for _, id := range inFlight {
			st := statuses[id]
			if !st.Done {
				next = append(next, id)
				continue
			}
			results[order[id]] = st.Outcome
			if len(order) < total {
				next = append(next, start())
			}
		}
		inFlight = next
	}

	log.Info().Int("games", total).Int("simulations", simulations).Float64("c", c).Msg("simulation batch complete")
	return results, nil
}

// HyperParams is one cycle of the self-play schedule. LearningRate is only
// carried for the external trainer.
type HyperParams struct {
	Games        int
	Simulations  int
	C            float64
	LearningRate float64
}

// Schedule grows games and simulations with the cycle and anneals
// exploration and learning rate.
func Schedule(cycle int) HyperParams {
	if cycle < 0 {
		cycle = 0
	}
	k := float64(cycle)
	return HyperParams{
		Games:        min(2000, 500*(cycle+1)),
		Simulations:  int(math.Min(100*math.Pow(1.2, k), 800)),
		C:            math.Max(1.25, 2.5*math.Pow(0.97, k)),
		LearningRate: math.Max(3e-4*math.Pow(0.95, k), 1e-5),
	}
}
