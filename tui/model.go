// Package tui is the terminal progress view for self-play runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/zeroclone/executor/inference"
	"github.com/brensch/zeroclone/game"
)

const recentGames = 10

// GameUpdate is sent once per finished game.
type GameUpdate struct {
	Cycle   int
	Game    int
	Outcome game.Outcome
	Plies   int
}

// CycleUpdate announces the start of a self-play cycle.
type CycleUpdate struct {
	Cycle       int
	Games       int
	Simulations int
	C           float64
}

// Counters is polled on every tick.
type Counters struct {
	Moves     func() int64
	Inference func() (inference.RuntimeStats, bool)
}

type TickMsg time.Time

// DoneMsg stops the program once the run is over.
type DoneMsg struct{ Err error }

type Model struct {
	gamesPlayed int
	outcomes    map[game.Outcome]int
	moves       int64
	stats       inference.RuntimeStats
	hasStats    bool
	cycle       CycleUpdate
	startTime   time.Time
	recentGames []string
	err         error

	updates  <-chan tea.Msg
	counters Counters
}

// New reads GameUpdate, CycleUpdate and DoneMsg values from updates.
func New(updates <-chan tea.Msg, counters Counters) Model {
	return Model{
		startTime: time.Now(),
		outcomes:  make(map[game.Outcome]int),
		updates:   updates,
		counters:  counters,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return DoneMsg{}
		}
		return msg
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		if m.counters.Moves != nil {
			m.moves = m.counters.Moves()
		}
		if m.counters.Inference != nil {
			m.stats, m.hasStats = m.counters.Inference()
		}
		return m, tickCmd()
	case CycleUpdate:
		m.cycle = msg
		return m, waitForUpdate(m.updates)
	case GameUpdate:
		m.gamesPlayed++
		m.outcomes[msg.Outcome]++
		line := fmt.Sprintf("Cycle %d game %d: %s in %d plies", msg.Cycle, msg.Game, msg.Outcome, msg.Plies)
		m.recentGames = append([]string{line}, m.recentGames...)
		if len(m.recentGames) > recentGames {
			m.recentGames = m.recentGames[:recentGames]
		}
		return m, waitForUpdate(m.updates)
	case DoneMsg:
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) Err() error { return m.err }

func (m Model) GamesPlayed() int { return m.gamesPlayed }

func (m Model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := float64(m.gamesPlayed) / duration.Seconds()
	movesPerSec := float64(m.moves) / duration.Seconds()
	if duration.Seconds() < 1 {
		gamesPerSec = 0
		movesPerSec = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cycle:          %d (games %d, sims %d, c %.3f)\n", m.cycle.Cycle, m.cycle.Games, m.cycle.Simulations, m.cycle.C)
	fmt.Fprintf(&b, "Games Played:   %d\n", m.gamesPlayed)
	fmt.Fprintf(&b, "Results:        X %d / O %d / draw %d\n", m.outcomes[game.Player0Won], m.outcomes[game.Player1Won], m.outcomes[game.Draw])
	fmt.Fprintf(&b, "Total Moves:    %d\n", m.moves)
	fmt.Fprintf(&b, "Duration:       %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "Games/Sec:      %.2f\n", gamesPerSec)
	fmt.Fprintf(&b, "Moves/Sec:      %.2f\n", movesPerSec)
	if m.hasStats {
		fmt.Fprintf(&b, "Inference:      batch avg=%.1f last=%d q=%d run avg=%.2fms\n", m.stats.AvgBatchSize, m.stats.LastBatchSize, m.stats.QueueLen, m.stats.AvgRunMs)
	}

	b.WriteString("\nRecent Games:\n")
	for _, g := range m.recentGames {
		b.WriteString(g + "\n")
	}

	b.WriteString("\nPress q to quit.\n")
	return b.String()
}
