package connect4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/zeroclone/game"
)

func mustRows(t *testing.T, rows ...string) *State {
	t.Helper()
	s, ok := FromRows(rows)
	require.True(t, ok, "bad board")
	return s
}

func ids(moves []game.Move) []int32 {
	out := make([]int32, len(moves))
	for i, m := range moves {
		out[i] = m.ID
	}
	return out
}

func TestInitialState(t *testing.T) {
	b := New()
	s := b.InitialState()
	assert.Equal(t, 0, s.Turn())
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6}, ids(b.LegalMoves(s)))
	assert.False(t, b.IsWin(s))
	assert.False(t, b.IsDraw(s))
	assert.Equal(t, 2*Rows*Cols, game.TensorSize(b))
}

func TestPlayDoesNotMutate(t *testing.T) {
	b := New()
	s := b.InitialState()
	next := b.Play(s, game.Move{ID: 3})

	assert.Equal(t, 0, s.Turn())
	assert.Equal(t, empty, s.(*State).At(Rows-1, 3))
	assert.Equal(t, 1, next.Turn())
	assert.Equal(t, token0, next.(*State).At(Rows-1, 3))
}

func TestCentreScoresHigher(t *testing.T) {
	b := New()
	moves := b.LegalMoves(b.InitialState())
	require.Len(t, moves, Cols)
	assert.Equal(t, float32(3), moves[3].Score)
	assert.Equal(t, float32(0), moves[0].Score)
	assert.Equal(t, float32(0), moves[6].Score)
}

func TestWinningMoveScoresBonus(t *testing.T) {
	b := New()
	s := mustRows(t,
		".......",
		".......",
		".......",
		".......",
		"OOO....",
		"XXX....",
	)
	require.Equal(t, 0, s.Turn())
	moves := b.LegalMoves(s)
	require.Equal(t, int32(3), moves[3].ID)
	assert.Equal(t, float32(3+WinBonus), moves[3].Score)

	next := b.Play(s, moves[3])
	assert.True(t, b.IsWin(next))
	assert.Empty(t, b.LegalMoves(next), "finished positions have no legal moves")

	outcome, done := game.OutcomeOf(b, next)
	assert.True(t, done)
	assert.Equal(t, game.Player0Won, outcome)
}

func TestWinDirections(t *testing.T) {
	cases := []struct {
		name string
		rows []string
	}{
		{"vertical", []string{".......", ".......", "X......", "XO.....", "XO.....", "XO....."}},
		{"diagonal", []string{".......", ".......", "...X...", "..XO...", ".XOO...", "XOOXX.."}},
		{"anti-diagonal", []string{".......", ".......", "X......", "OX.....", "OOX....", "XOXXO.."}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := mustRows(t, tc.rows...)
			assert.True(t, New().IsWin(s))
		})
	}
}

func TestFullColumnNotLegal(t *testing.T) {
	s := mustRows(t,
		"X......",
		"O......",
		"X......",
		"O......",
		"X......",
		"O......",
	)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, ids(New().LegalMoves(s)))
}

func TestDraw(t *testing.T) {
	s := mustRows(t,
		"XOXOXOX",
		"XOXOXOX",
		"OXOXOXO",
		"OXOXOXO",
		"XOXOXOX",
		"OXOXOXO",
	)
	b := New()
	assert.False(t, b.IsWin(s))
	assert.True(t, b.IsDraw(s))
	assert.Empty(t, b.LegalMoves(s))
}

func TestEncodeIsMoverRelative(t *testing.T) {
	b := New()
	s := b.Play(b.InitialState(), game.Move{ID: 0})
	enc := b.Encode(s)
	require.Len(t, enc, 2*Rows*Cols)
	idx := (Rows-1)*Cols + 0
	// player 1 to move, so X sits on the opponent plane
	assert.Equal(t, float32(0), enc[idx])
	assert.Equal(t, float32(1), enc[Rows*Cols+idx])
}

func TestEvaluateSymmetric(t *testing.T) {
	b := New()
	assert.Equal(t, 0.0, b.Evaluate(b.InitialState()))

	s := mustRows(t,
		".......",
		".......",
		".......",
		".......",
		"..OO...",
		"..XXX..",
	)
	// O to move facing an open three
	v := b.Evaluate(s)
	assert.Less(t, v, 0.0)
	assert.Greater(t, v, -1.0)
}

func TestDescribe(t *testing.T) {
	b := New()
	s := b.Play(b.InitialState(), game.Move{ID: 6})
	out := b.Describe(s)
	assert.Contains(t, out, "......X\n0123456")
}
