package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brensch/zeroclone/executor/mcts"
	"github.com/brensch/zeroclone/executor/selfplay"
)

var (
	benchLoops int
	benchSims  int
	benchBatch int

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Time complete searches from the initial position",
		RunE:  runBench,
	}
)

func init() {
	benchCmd.Flags().IntVar(&benchLoops, "loops", 20, "Number of searches to time")
	benchCmd.Flags().IntVar(&benchSims, "sims", 0, "Simulations per search (overrides mcts.simulations)")
	benchCmd.Flags().IntVar(&benchBatch, "batch", 0, "Leaf batch size (overrides mcts.batch_size)")
}

func runBench(cmd *cobra.Command, args []string) error {
	benchCfg := cfg
	if benchSims > 0 {
		benchCfg.MCTS.Simulations = benchSims
	}
	if benchBatch > 0 {
		benchCfg.MCTS.BatchSize = benchBatch
	}

	b, err := selfplay.Backend(benchCfg)
	if err != nil {
		return err
	}
	searcher, closer, err := selfplay.NewSearcher(benchCfg, b, benchCfg.SideValueFunctions()[0], benchCfg.Seed)
	if err != nil {
		return err
	}
	defer closeIf(closer)

	out := cmd.OutOrStdout()
	var total time.Duration
	for i := 0; i < benchLoops; i++ {
		start := time.Now()
		res, err := searcher.Search(cmd.Context(), mcts.Request{
			State:       b.InitialState(),
			Simulations: benchCfg.MCTS.Simulations,
			C:           benchCfg.MCTS.CPuct,
			Seed:        benchCfg.Seed + int64(i),
		})
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		total += elapsed
		fmt.Fprintf(out, "loop %d: move %s in %s\n", i, res.Move, elapsed)
	}
	if benchLoops > 0 {
		avg := total / time.Duration(benchLoops)
		perSim := avg / time.Duration(max(benchCfg.MCTS.Simulations, 1))
		fmt.Fprintf(out, "average %s per search, %s per simulation (sims=%d batch=%d)\n", avg, perSim, benchCfg.MCTS.Simulations, benchCfg.MCTS.BatchSize)
	}
	return nil
}
