package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/zeroclone/executor/mcts"
	"github.com/brensch/zeroclone/executor/selfplay"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/store"
)

var (
	playSims   int
	playC      float64
	playOutDir string
	playTrace  bool

	playCmd = &cobra.Command{
		Use:   "play",
		Short: "Play one bot-versus-bot game and print the board after every move",
		RunE:  runPlay,
	}
)

func init() {
	playCmd.Flags().IntVar(&playSims, "sims", 0, "Simulations per move (overrides mcts.simulations)")
	playCmd.Flags().Float64Var(&playC, "c", 0, "Exploration constant (overrides mcts.c_puct)")
	playCmd.Flags().BoolVar(&playTrace, "trace", false, "Print root search statistics and encoded planes for every move")
	playCmd.Flags().StringVar(&playOutDir, "out-dir", "", "If set, write the finished game to a parquet file in this directory")
}

func runPlay(cmd *cobra.Command, args []string) error {
	sims := cfg.MCTS.Simulations
	if playSims > 0 {
		sims = playSims
	}
	c := cfg.MCTS.CPuct
	if playC > 0 {
		c = playC
	}

	engine, err := selfplay.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	b := engine.Backend()
	out := cmd.OutOrStdout()
	if playTrace {
		engine.SetSearchHook(func(_ int, state game.State, res mcts.Result) {
			selfplay.WriteTrace(out, b, state, res)
		})
	}
	id := engine.AddGame(nil)
	for ply := 0; ; ply++ {
		state, err := engine.State(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "ply %d, player %d to move\n%s\n", ply, state.Turn(), game.Describe(b, state))

		st, err := engine.PlayMCTS(cmd.Context(), id, sims, c)
		if err != nil {
			return err
		}
		if st.Done {
			final, _ := engine.State(id)
			fmt.Fprintf(out, "final position\n%s\nresult: %s\n", game.Describe(b, final), st.Outcome)
			break
		}
	}

	if playOutDir == "" {
		return nil
	}
	path, err := store.WriteBatchParquetAtomic(playOutDir, engine.Dataset().Rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}
