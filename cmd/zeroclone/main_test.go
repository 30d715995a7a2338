package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/zeroclone/executor/selfplay"
	"github.com/brensch/zeroclone/store"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c4.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
game: connect4
value_function: crude_score
policy_function: immediate_value
mcts:
  simulations: 20
  c_puct: 1.4
threads: 2
`), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", path, "--log-level", "warn"}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestPlayWritesGame(t *testing.T) {
	dir := t.TempDir()
	out := runCLI(t, "play", "--sims", "10", "--trace", "--out-dir", dir)
	assert.Contains(t, out, "ply 0, player 0 to move")
	assert.Contains(t, out, "result:")
	assert.Contains(t, out, "--- TRACE encoded input ---")

	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	rows, err := store.ReadRows(files[0])
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
	assert.Equal(t, int32(-1), rows[len(rows)-1].Move)
}

func TestWriteDatasetOneGamePerID(t *testing.T) {
	ds := selfplay.Dataset{Rows: []store.TrainingRow{
		{GameID: "a", Ply: 0, Move: 3},
		{GameID: "a", Ply: 1, Move: -1},
		{GameID: "b", Ply: 0, Move: 2},
		{GameID: "b", Ply: 1, Move: 4},
		{GameID: "b", Ply: 2, Move: -1},
	}, Labels: []float32{1, -1, 1, -1, 1}}

	path, rows, games, err := writeDataset(t.TempDir(), ds)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, 5, rows)
	assert.Equal(t, 2, games)

	path, rows, games, err = writeDataset(t.TempDir(), selfplay.Dataset{})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Zero(t, rows+games)
}

func TestBenchAndArena(t *testing.T) {
	out := runCLI(t, "bench", "--loops", "2", "--sims", "10", "--batch", "2")
	assert.Contains(t, out, "average")

	out = runCLI(t, "arena", "--games", "2", "--sims", "5", "--other", "random_rollout")
	assert.Contains(t, out, "crude_score vs random_rollout over 2 games")
}
