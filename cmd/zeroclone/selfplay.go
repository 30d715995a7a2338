package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brensch/zeroclone/executor/selfplay"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/logging"
	"github.com/brensch/zeroclone/store"
	"github.com/brensch/zeroclone/tui"
)

var (
	selfplayCycles     int
	selfplayStartCycle int
	selfplayGames      int
	selfplayOutDir     string
	selfplayTUI        bool

	selfplayCmd = &cobra.Command{
		Use:   "selfplay",
		Short: "Play cycles of self-play games and write the positions to parquet",
		RunE:  runSelfplay,
	}
)

func init() {
	selfplayCmd.Flags().IntVar(&selfplayCycles, "cycles", 1, "Number of self-play cycles to run")
	selfplayCmd.Flags().IntVar(&selfplayStartCycle, "start-cycle", 0, "Cycle number to start the schedule from")
	selfplayCmd.Flags().IntVar(&selfplayGames, "games", 0, "Games per cycle; 0 follows the schedule")
	selfplayCmd.Flags().StringVar(&selfplayOutDir, "out-dir", "", "Output directory for parquet batches (overrides dataset.out_dir)")
	selfplayCmd.Flags().BoolVar(&selfplayTUI, "tui", false, "Show a terminal progress view instead of periodic log lines")
}

type cycleRunner struct {
	engine *selfplay.Engine
	outDir string
	moves  atomic.Int64
	notify func(tea.Msg)
}

func runSelfplay(cmd *cobra.Command, args []string) error {
	outDir := cfg.Dataset.OutDir
	if selfplayOutDir != "" {
		outDir = selfplayOutDir
	}

	engine, err := selfplay.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	r := &cycleRunner{engine: engine, outDir: outDir, notify: func(tea.Msg) {}}
	var cycle atomic.Int64
	engine.SetHooks(
		func(int, int) { r.moves.Add(1) },
		func(id, plies int, outcome game.Outcome) {
			r.notify(tui.GameUpdate{Cycle: int(cycle.Load()), Game: id, Outcome: outcome, Plies: plies})
		},
	)

	ctx := cmd.Context()
	run := func(ctx context.Context) error {
		for c := selfplayStartCycle; c < selfplayStartCycle+selfplayCycles; c++ {
			cycle.Store(int64(c))
			if err := r.runCycle(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}

	if !selfplayTUI {
		stopStats := r.logStats(ctx)
		defer stopStats()
		return run(ctx)
	}
	return r.runWithTUI(ctx, run)
}

func (r *cycleRunner) runCycle(ctx context.Context, cycle int) error {
	hp := selfplay.Schedule(cycle)
	if selfplayGames > 0 {
		hp.Games = selfplayGames
	}
	r.engine.SetCycle(cycle)
	r.notify(tui.CycleUpdate{Cycle: cycle, Games: hp.Games, Simulations: hp.Simulations, C: hp.C})
	log.Info().
		Int("cycle", cycle).
		Int("games", hp.Games).
		Int("simulations", hp.Simulations).
		Float64("c", hp.C).
		Float64("lr", hp.LearningRate).
		Msg("starting cycle")

	start := time.Now()
	outcomes, err := r.engine.SimulateGames(ctx, hp.Games, hp.Simulations, hp.C)
	if err != nil {
		return fmt.Errorf("cycle %d: %w", cycle, err)
	}

	ds := r.engine.Dataset()
	path, rows, games, err := writeDataset(r.outDir, ds)
	if err != nil {
		return fmt.Errorf("cycle %d: %w", cycle, err)
	}
	r.engine.ResetAllGames()

	var wins [3]int
	for _, o := range outcomes {
		wins[o+1]++
	}
	log.Info().
		Int("cycle", cycle).
		Int("player0_wins", wins[game.Player0Won+1]).
		Int("player1_wins", wins[game.Player1Won+1]).
		Int("draws", wins[game.Draw+1]).
		Str("path", path).
		Int("rows", rows).
		Int("games", games).
		Dur("elapsed", time.Since(start)).
		Msg("cycle complete")
	return nil
}

// writeDataset streams one parquet file per cycle, one WriteGame call per
// finished game.
func writeDataset(outDir string, ds selfplay.Dataset) (string, int, int, error) {
	if ds.Len() == 0 {
		return "", 0, 0, nil
	}
	w, err := store.NewBatchWriter(outDir)
	if err != nil {
		return "", 0, 0, err
	}
	start := 0
	for i := 1; i <= len(ds.Rows); i++ {
		if i < len(ds.Rows) && ds.Rows[i].GameID == ds.Rows[start].GameID {
			continue
		}
		if err := w.WriteGame(ds.Rows[start:i]); err != nil {
			_, _, _, _ = w.Finalize()
			return "", 0, 0, err
		}
		start = i
	}
	return w.Finalize()
}

func (r *cycleRunner) logStats(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				movesPerSec := float64(r.moves.Load()) / time.Since(startTime).Seconds()
				ev := log.Info().Float64("moves_per_sec", movesPerSec)
				if st, ok := r.engine.InferenceStats(); ok {
					ev = ev.Float64("batch_avg", st.AvgBatchSize).Int64("batch_last", st.LastBatchSize).Int("queue", st.QueueLen).Float64("run_avg_ms", st.AvgRunMs)
				}
				ev.Msg("stats")
			}
		}
	}()
	return cancel
}

// runWithTUI runs the cycles in the background and keeps the log away from
// the terminal the view is drawing on.
func (r *cycleRunner) runWithTUI(ctx context.Context, run func(context.Context) error) error {
	f, err := os.OpenFile("selfplay.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if err := logging.SetupWriter(f, logLevel, logging.FormatJSON); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan tea.Msg, 256)
	r.notify = func(msg tea.Msg) {
		// Avoid blocking games if the view stops consuming.
		select {
		case updates <- msg:
		default:
		}
	}

	runErr := make(chan error, 1)
	go func() {
		err := run(ctx)
		runErr <- err
		select {
		case updates <- tui.DoneMsg{Err: err}:
		default:
		}
	}()

	p := tea.NewProgram(tui.New(updates, tui.Counters{
		Moves:     r.moves.Load,
		Inference: r.engine.InferenceStats,
	}), tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := p.Run()
	cancel()
	err = <-runErr
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	// Quitting the view stops the run early; that is not a failure.
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
