package policy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/zeroclone/game"
)

func TestRandomCoversAllMoves(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	moves := []game.Move{{ID: 0}, {ID: 1}, {ID: 2}}
	seen := map[int]int{}
	for i := 0; i < 300; i++ {
		seen[Random{}.Choose(rng, moves)]++
	}
	assert.Len(t, seen, 3)
}

func TestImmediateValueArgmax(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	moves := []game.Move{{ID: 0, Score: 1}, {ID: 1, Score: 103}, {ID: 2, Score: 3}}
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, ImmediateValue{}.Choose(rng, moves))
	}
}

func TestImmediateValueTiesAndFreedom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	moves := []game.Move{{ID: 0, Score: 3}, {ID: 1, Score: 3}, {ID: 2, Score: 2}, {ID: 3, Score: 0}}

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[ImmediateValue{}.Choose(rng, moves)] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, seen)

	seen = map[int]bool{}
	for i := 0; i < 300; i++ {
		seen[ImmediateValue{Freedom: 1}.Choose(rng, moves)] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
}

func TestNew(t *testing.T) {
	p, err := New("immediate_value", 0.5)
	require.NoError(t, err)
	assert.Equal(t, ImmediateValue{Freedom: 0.5}, p)

	_, err = New("mystery", 0)
	assert.Error(t, err)
	_, err = New("immediate_value", -1)
	assert.Error(t, err)
}

func TestEmptyPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Panics(t, func() { Random{}.Choose(rng, nil) })
	assert.Panics(t, func() { ImmediateValue{}.Choose(rng, nil) })
}
