package value

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/zeroclone/executor/inference"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/rules/connect4"
)

func board(t *testing.T, rows ...string) *connect4.State {
	t.Helper()
	s, ok := connect4.FromRows(rows)
	require.True(t, ok)
	return s
}

// X just completed four in a row, so O (to move) has lost.
func lostForMover(t *testing.T) *connect4.State {
	return board(t,
		".......",
		".......",
		".......",
		".......",
		"OOO....",
		"XXXX...",
	)
}

type noEvalBackend struct{ game.Backend }

func TestRolloutDecided(t *testing.T) {
	b := connect4.New()
	r := NewRollout(1)

	v, err := r.Evaluate(context.Background(), b, lostForMover(t))
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)
}

func TestRolloutStaysInRange(t *testing.T) {
	b := connect4.New()
	// X to move with an open three.
	s := board(t,
		".......",
		".......",
		".......",
		".......",
		"OOO....",
		"XXX....",
	)
	r := NewRollout(3)
	for i := 0; i < 20; i++ {
		v, err := r.Evaluate(context.Background(), b, s)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestRolloutBatchOrder(t *testing.T) {
	b := connect4.New()
	r := NewRollout(1)
	vals, err := r.EvaluateBatch(context.Background(), b, []game.State{lostForMover(t), b.InitialState()})
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Equal(t, -1.0, vals[0])
}

func TestHeuristic(t *testing.T) {
	b := connect4.New()
	h, err := NewHeuristic(b, 0)
	require.NoError(t, err)

	v, err := h.Evaluate(context.Background(), b, lostForMover(t))
	require.NoError(t, err)
	assert.Equal(t, -float64(DefaultWinScore), v)

	v, err = h.Evaluate(context.Background(), b, b.InitialState())
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = NewHeuristic(noEvalBackend{b}, 0)
	assert.ErrorIs(t, err, ErrNoEvaluator)
}

type fakePredictor struct {
	mu      sync.Mutex
	batches []int
	value   float32
	err     error
}

func (f *fakePredictor) Predict(ctx context.Context, input []float32) (float32, error) {
	v, err := f.PredictBatch(ctx, [][]float32{input})
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (f *fakePredictor) PredictBatch(_ context.Context, inputs [][]float32) ([]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(inputs))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, len(inputs))
	for i := range out {
		out[i] = f.value
	}
	return out, nil
}

func (f *fakePredictor) Stats() inference.RuntimeStats { return inference.RuntimeStats{} }
func (f *fakePredictor) Close() error                  { return nil }

func TestNetworkClampsAndBatches(t *testing.T) {
	b := connect4.New()
	p := &fakePredictor{value: 3}
	n := NewNetwork(p)

	v, err := n.Evaluate(context.Background(), b, b.InitialState())
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	vals, err := n.EvaluateBatch(context.Background(), b, []game.State{b.InitialState(), b.InitialState(), b.InitialState()})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, vals)
	assert.Equal(t, []int{1, 3}, p.batches)

	p.err = errors.New("boom")
	_, err = n.Evaluate(context.Background(), b, b.InitialState())
	assert.ErrorContains(t, err, "boom")
}

func TestTerminalSkipsInner(t *testing.T) {
	b := connect4.New()
	p := &fakePredictor{value: 0.25}
	src := Terminal{Inner: NewNetwork(p)}

	vals, err := src.EvaluateBatch(context.Background(), b, []game.State{lostForMover(t), b.InitialState()})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0.25}, vals)
	assert.Equal(t, []int{1}, p.batches)

	p.batches = nil
	vals, err = src.EvaluateBatch(context.Background(), b, []game.State{lostForMover(t)})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1}, vals)
	assert.Empty(t, p.batches)
}

func TestNew(t *testing.T) {
	b := connect4.New()
	cases := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"random_rollout", Options{Backend: b}, false},
		{"crude_score", Options{Backend: b}, false},
		{"network", Options{Backend: b}, true},
		{"network", Options{Backend: b, Predictor: &fakePredictor{}}, false},
		{"oracle", Options{Backend: b}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := New(tc.name, tc.opts)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, src)
		})
	}

	src, err := New("random_rollout", Options{ExactTerminals: true})
	require.NoError(t, err)
	assert.IsType(t, Terminal{}, src)
}

func TestIsJoint(t *testing.T) {
	assert.True(t, IsJoint(NewNetwork(&fakePredictor{})))
	assert.True(t, IsJoint(Terminal{Inner: NewNetwork(&fakePredictor{})}))
	assert.False(t, IsJoint(NewRollout(1)))
}

func TestReseedIsIndependentOfUse(t *testing.T) {
	b := connect4.New()
	playout := func(src Source) []float64 {
		out := make([]float64, 30)
		for i := range out {
			v, err := src.Evaluate(context.Background(), b, b.InitialState())
			require.NoError(t, err)
			out[i] = v
		}
		return out
	}

	base := NewRollout(7)
	first, ok := Reseed(base, 42)
	require.True(t, ok)
	want := playout(first)

	// Draws on the base source must not leak into later copies.
	playout(base)
	second, _ := Reseed(base, 42)
	assert.Equal(t, want, playout(second))

	wrapped, ok := Reseed(Terminal{Inner: base}, 42)
	require.True(t, ok)
	assert.IsType(t, Terminal{}, wrapped)
	assert.Equal(t, want, playout(wrapped))

	h, err := NewHeuristic(b, 0)
	require.NoError(t, err)
	same, ok := Reseed(Terminal{Inner: h}, 42)
	assert.False(t, ok)
	assert.Equal(t, Terminal{Inner: h}, same)
}
