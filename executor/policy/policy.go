// Package policy holds the expansion policies that pick which untried move
// a search node expands next.
package policy

import (
	"fmt"
	"math/rand"

	"github.com/brensch/zeroclone/game"
)

// Policy picks one move from a non-empty untried list and returns its index.
// It must not look at tree statistics. The caller owns rng so concurrent
// searches stay reproducible.
type Policy interface {
	Choose(rng *rand.Rand, untried []game.Move) int
}

const (
	NameRandom         = "random"
	NameImmediateValue = "immediate_value"
)

// Random picks uniformly among the untried moves.
type Random struct{}

func (Random) Choose(rng *rand.Rand, untried []game.Move) int {
	if len(untried) == 0 {
		panic("policy: Choose called with no untried moves")
	}
	return rng.Intn(len(untried))
}

// ImmediateValue picks uniformly among the moves whose Score is within
// Freedom of the best score. Freedom 0 is argmax with random tie breaks.
type ImmediateValue struct {
	Freedom float32
}

func (p ImmediateValue) Choose(rng *rand.Rand, untried []game.Move) int {
	if len(untried) == 0 {
		panic("policy: Choose called with no untried moves")
	}
	best := untried[0].Score
	for _, m := range untried[1:] {
		if m.Score > best {
			best = m.Score
		}
	}
	// Reservoir pick keeps this allocation free.
	chosen, seen := 0, 0
	for i, m := range untried {
		if m.Score < best-p.Freedom {
			continue
		}
		seen++
		if rng.Intn(seen) == 0 {
			chosen = i
		}
	}
	return chosen
}

// New builds a policy by name.
func New(name string, freedom float64) (Policy, error) {
	switch name {
	case NameRandom, "":
		return Random{}, nil
	case NameImmediateValue:
		if freedom < 0 {
			return nil, fmt.Errorf("policy: negative freedom %v", freedom)
		}
		return ImmediateValue{Freedom: float32(freedom)}, nil
	default:
		return nil, fmt.Errorf("policy: unknown policy %q", name)
	}
}
