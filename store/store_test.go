package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameRows builds a finished game of plies moves whose outcome is +1, -1 or 0
// from player 0's point of view.
func gameRows(id string, plies int, outcome float32) []TrainingRow {
	rows := make([]TrainingRow, 0, plies+1)
	for ply := 0; ply <= plies; ply++ {
		turn := int32(ply % 2)
		label := outcome
		if turn == 1 {
			label = -outcome
		}
		move := int32(ply % 7)
		if ply == plies {
			move = -1
		}
		rows = append(rows, TrainingRow{
			GameID: id,
			Game:   "connect4",
			Ply:    int32(ply),
			Turn:   turn,
			Shape:  []int32{1, 2},
			State:  []byte{0, 0, 128, 63, 0, 0, 0, 0},
			Move:   move,
			Label:  label,
			Source: "selfplay",
		})
	}
	return rows
}

func TestWriteBatchParquetAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rows := gameRows("g1", 3, 1)

	path, err := WriteBatchParquetAtomic(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	got, err := ReadRows(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	leftovers, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	require.NoError(t, err)

	require.NoError(t, w.WriteGame(gameRows("a", 4, 1)))
	require.NoError(t, w.WriteGame(gameRows("b", 2, -1)))
	require.NoError(t, w.WriteGame(nil))
	assert.Equal(t, 2, w.BufferedGames())
	assert.Equal(t, 8, w.BufferedRows())

	path, rows, games, err := w.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 8, rows)
	assert.Equal(t, 2, games)

	got, err := ReadRows(path)
	require.NoError(t, err)
	assert.Len(t, got, 8)

	assert.Error(t, w.WriteGame(gameRows("c", 1, 0)))
}

func TestBatchWriterEmptyFinalize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	require.NoError(t, err)
	path, rows, _, err := w.Finalize()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Zero(t, rows)
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteBatchParquetAtomic(dir, append(gameRows("a", 4, 1), gameRows("b", 6, -1)...))
	require.NoError(t, err)
	_, err = WriteBatchParquetAtomic(filepath.Join(dir, "cycle_1"), gameRows("c", 8, 0))
	require.NoError(t, err)

	s, err := Summarize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(5+7+9), s.Rows)
	assert.Equal(t, int64(3), s.Games)
	assert.Equal(t, int64(1), s.Player0Wins)
	assert.Equal(t, int64(1), s.Player1Wins)
	assert.Equal(t, int64(1), s.Draws)
	assert.InDelta(t, 6.0, s.AvgPlies, 1e-9)
}

func TestSummarizeEmptyDir(t *testing.T) {
	s, err := Summarize(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, s.Games)
}
