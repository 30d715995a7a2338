package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/zeroclone/store"
)

var (
	datasetCmd = &cobra.Command{
		Use:   "dataset",
		Short: "Inspect self-play parquet output",
	}

	datasetStatsCmd = &cobra.Command{
		Use:   "stats [dir]",
		Short: "Summarize rows, games and results under a dataset directory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDatasetStats,
	}
)

func init() {
	datasetCmd.AddCommand(datasetStatsCmd)
}

func runDatasetStats(cmd *cobra.Command, args []string) error {
	dir := cfg.Dataset.OutDir
	if len(args) == 1 {
		dir = args[0]
	}
	sum, err := store.Summarize(cmd.Context(), dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dir:          %s\n", dir)
	fmt.Fprintf(out, "rows:         %d\n", sum.Rows)
	fmt.Fprintf(out, "games:        %d\n", sum.Games)
	fmt.Fprintf(out, "player0 wins: %d\n", sum.Player0Wins)
	fmt.Fprintf(out, "player1 wins: %d\n", sum.Player1Wins)
	fmt.Fprintf(out, "draws:        %d\n", sum.Draws)
	fmt.Fprintf(out, "avg plies:    %.1f\n", sum.AvgPlies)
	return nil
}
