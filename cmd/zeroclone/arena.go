package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/brensch/zeroclone/executor/selfplay"
)

var (
	arenaLatest      string
	arenaOther       string
	arenaLatestModel string
	arenaOtherModel  string
	arenaGames       int
	arenaSims        int
	arenaC           float64

	arenaCmd = &cobra.Command{
		Use:   "arena",
		Short: "Play two value functions against each other with both colour assignments",
		RunE:  runArena,
	}
)

func init() {
	arenaCmd.Flags().StringVar(&arenaLatest, "latest", "", "Value function under test (defaults to player 0's configured value function)")
	arenaCmd.Flags().StringVar(&arenaOther, "other", "random_rollout", "Value function to compare against")
	arenaCmd.Flags().StringVar(&arenaLatestModel, "latest-model", "", "Model path for a network latest side")
	arenaCmd.Flags().StringVar(&arenaOtherModel, "other-model", "", "Model path for a network other side")
	arenaCmd.Flags().IntVar(&arenaGames, "games", 40, "Total games, split evenly between colours")
	arenaCmd.Flags().IntVar(&arenaSims, "sims", 0, "Simulations per move (overrides mcts.simulations)")
	arenaCmd.Flags().Float64Var(&arenaC, "c", 0, "Exploration constant (overrides mcts.c_puct)")
}

func runArena(cmd *cobra.Command, args []string) error {
	latestName := arenaLatest
	if latestName == "" {
		latestName = cfg.SideValueFunctions()[0]
	}
	sims := cfg.MCTS.Simulations
	if arenaSims > 0 {
		sims = arenaSims
	}
	c := cfg.MCTS.CPuct
	if arenaC > 0 {
		c = arenaC
	}

	b, err := selfplay.Backend(cfg)
	if err != nil {
		return err
	}

	latestCfg := cfg
	if arenaLatestModel != "" {
		latestCfg.Value.ModelPath = arenaLatestModel
	}
	latest, latestCloser, err := selfplay.NewSearcher(latestCfg, b, latestName, cfg.Seed)
	if err != nil {
		return fmt.Errorf("latest: %w", err)
	}
	defer closeIf(latestCloser)

	otherCfg := cfg
	if arenaOtherModel != "" {
		otherCfg.Value.ModelPath = arenaOtherModel
	}
	other, otherCloser, err := selfplay.NewSearcher(otherCfg, b, arenaOther, cfg.Seed+1)
	if err != nil {
		return fmt.Errorf("other: %w", err)
	}
	defer closeIf(otherCloser)

	rate, err := selfplay.EvaluatePair(cmd.Context(), b, latest, other, selfplay.ArenaOptions{
		Games:       arenaGames,
		Simulations: sims,
		C:           c,
		Threads:     cfg.Threads,
		Seed:        cfg.Seed,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s vs %s over %d games: win rate %.3f\n", latestName, arenaOther, arenaGames, rate)
	return nil
}

func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
