// Package selfplay runs many independent games against the search engine,
// records their histories and turns finished games into training data.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/zeroclone/executor/inference"
	"github.com/brensch/zeroclone/executor/mcts"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/metrics"
)

// Status is what a move or search returns for one game.
type Status struct {
	Done    bool
	Outcome game.Outcome
}

type Options struct {
	Seed int64
	// Threads bounds the worker pool and the number of games kept in flight
	// by SimulateGames.
	Threads int
	// Source tags dataset rows, for example "selfplay" or "arena".
	Source string
	Cycle  int

	// Callbacks run on the goroutine that played the move, with the game
	// locked, so they must not call back into the engine for the same id.
	OnMove   func(id int, ply int)
	OnFinish func(id int, plies int, outcome game.Outcome)
	// OnSearch sees every search result before its move is played.
	OnSearch func(id int, state game.State, res mcts.Result)
}

type gameSlot struct {
	mu sync.Mutex

	uuid    string
	state   game.State
	history []game.State
	moves   []game.Move
	done    bool
	outcome game.Outcome
	rng     *rand.Rand
}

// Engine owns an array of games addressed by index. Tasks for different
// games never share state; the per-game mutex only guards against two
// callers driving the same game at once.
type Engine struct {
	backend   game.Backend
	searchers [2]mcts.Searcher
	opts      Options
	closers   []io.Closer

	mu         sync.RWMutex
	games      []*gameSlot
	generation int64
}

// NewEngine uses searchers[p] to choose moves for player p.
func NewEngine(b game.Backend, searchers [2]mcts.Searcher, opts Options, closers ...io.Closer) *Engine {
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	if opts.Source == "" {
		opts.Source = "selfplay"
	}
	return &Engine{backend: b, searchers: searchers, opts: opts, closers: closers}
}

func (e *Engine) Backend() game.Backend { return e.backend }

func (e *Engine) Threads() int { return e.opts.Threads }

// SetCycle tags rows of games finished from now on.
func (e *Engine) SetCycle(cycle int) {
	e.mu.Lock()
	e.opts.Cycle = cycle
	e.mu.Unlock()
}

// SetHooks replaces the move and finish callbacks. Call it before any game
// is played.
func (e *Engine) SetHooks(onMove func(id, ply int), onFinish func(id, plies int, outcome game.Outcome)) {
	e.mu.Lock()
	e.opts.OnMove = onMove
	e.opts.OnFinish = onFinish
	e.mu.Unlock()
}

// SetSearchHook installs OnSearch. Call it before any game is played.
func (e *Engine) SetSearchHook(fn func(id int, state game.State, res mcts.Result)) {
	e.mu.Lock()
	e.opts.OnSearch = fn
	e.mu.Unlock()
}

// InferenceStats reports the batching statistics of the first model pool
// behind the engine, if any.
func (e *Engine) InferenceStats() (inference.RuntimeStats, bool) {
	for _, c := range e.closers {
		if sp, ok := c.(interface{ Stats() inference.RuntimeStats }); ok {
			return sp.Stats(), true
		}
	}
	return inference.RuntimeStats{}, false
}

func (e *Engine) newSlot(idx int, init game.State) *gameSlot {
	if init == nil {
		init = e.backend.InitialState()
	}
	seed := e.opts.Seed + e.generation*1_000_003 + int64(idx)*7919
	return &gameSlot{
		uuid:    uuid.NewString(),
		state:   init,
		history: []game.State{init},
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// AddGame starts a game from init, or the backend's initial state when init
// is nil, and returns its id.
func (e *Engine) AddGame(init game.State) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := len(e.games)
	e.games = append(e.games, e.newSlot(id, init))
	return id
}

// ResetAllGames puts every tracked game back at the initial position with
// an empty history.
func (e *Engine) ResetAllGames() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	for i := range e.games {
		e.games[i] = e.newSlot(i, nil)
	}
}

func (e *Engine) NumGames() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.games)
}

func (e *Engine) slot(id int) (*gameSlot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if id < 0 || id >= len(e.games) {
		return nil, fmt.Errorf("%w: %d", game.ErrUnknownGame, id)
	}
	return e.games[id], nil
}

func (e *Engine) State(id int) (game.State, error) {
	g, err := e.slot(id)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, nil
}

// History returns a copy of the positions of game id, starting with the
// initial one.
func (e *Engine) History(id int) ([]game.State, error) {
	g, err := e.slot(id)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]game.State(nil), g.history...), nil
}

func (e *Engine) Status(id int) (Status, error) {
	g, err := e.slot(id)
	if err != nil {
		return Status{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return Status{Done: g.done, Outcome: g.outcome}, nil
}

// GameID is the stable identifier written to the dataset.
func (e *Engine) GameID(id int) (string, error) {
	g, err := e.slot(id)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uuid, nil
}

// PlayMove applies move to game id. An illegal move leaves the game as it was.
func (e *Engine) PlayMove(id int, move game.Move) (Status, error) {
	g, err := e.slot(id)
	if err != nil {
		return Status{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := game.FindMove(e.backend, g.state, move.ID)
	if !ok {
		return Status{}, fmt.Errorf("%w: %d in game %d", game.ErrIllegalMove, move.ID, id)
	}
	return e.applyLocked(id, g, m), nil
}

// PlayMCTS searches with the mover's searcher and plays the chosen move. A
// game that is already over returns its result without searching.
func (e *Engine) PlayMCTS(ctx context.Context, id, simulations int, c float64) (Status, error) {
	g, err := e.slot(id)
	if err != nil {
		return Status{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return Status{Done: true, Outcome: g.outcome}, nil
	}
	if outcome, done := game.OutcomeOf(e.backend, g.state); done {
		e.finishLocked(id, g, outcome)
		return Status{Done: true, Outcome: outcome}, nil
	}

	side := g.state.Turn()
	res, err := e.searchers[side].Search(ctx, mcts.Request{
		State:       g.state,
		Simulations: simulations,
		C:           c,
		Seed:        g.rng.Int63(),
	})
	if err != nil {
		return Status{}, fmt.Errorf("game %d: %w", id, err)
	}
	if e.opts.OnSearch != nil {
		e.opts.OnSearch(id, g.state, res)
	}
	return e.applyLocked(id, g, res.Move), nil
}

func (e *Engine) applyLocked(id int, g *gameSlot, m game.Move) Status {
	next := e.backend.Play(g.state, m)
	g.state = next
	g.history = append(g.history, next)
	g.moves = append(g.moves, m)
	metrics.MovePlayed()
	if e.opts.OnMove != nil {
		e.opts.OnMove(id, len(g.moves))
	}

	if outcome, done := game.OutcomeOf(e.backend, next); done {
		e.finishLocked(id, g, outcome)
		return Status{Done: true, Outcome: outcome}
	}
	return Status{}
}

func (e *Engine) finishLocked(id int, g *gameSlot, outcome game.Outcome) {
	if g.done {
		return
	}
	g.done = true
	g.outcome = outcome
	metrics.GameFinished(outcome.String())
	log.Debug().Int("game", id).Str("game_id", g.uuid).Int("plies", len(g.moves)).Stringer("outcome", outcome).Msg("game finished")
	if e.opts.OnFinish != nil {
		e.opts.OnFinish(id, len(g.moves), outcome)
	}
}

// PlayMCTSParallel runs PlayMCTS for every id on at most maxWorkers
// goroutines. A failed game does not stop the others: every game that
// completed is in the result map, and the error joins one error per failed
// game.
func (e *Engine) PlayMCTSParallel(ctx context.Context, ids []int, simulations int, c float64, maxWorkers int) (map[int]Status, error) {
	return e.parallel(ctx, ids, maxWorkers, func(ctx context.Context, id int) (Status, error) {
		return e.PlayMCTS(ctx, id, simulations, c)
	})
}

// PlayMovesParallel applies one move per game concurrently.
func (e *Engine) PlayMovesParallel(ctx context.Context, moves map[int]game.Move, maxWorkers int) (map[int]Status, error) {
	ids := make([]int, 0, len(moves))
	for id := range moves {
		ids = append(ids, id)
	}
	return e.parallel(ctx, ids, maxWorkers, func(_ context.Context, id int) (Status, error) {
		return e.PlayMove(id, moves[id])
	})
}

func (e *Engine) parallel(ctx context.Context, ids []int, maxWorkers int, task func(context.Context, int) (Status, error)) (map[int]Status, error) {
	if maxWorkers <= 0 {
		maxWorkers = e.opts.Threads
	}
	results := make(map[int]Status, len(ids))
	failed := make(map[int]error)
	var mu sync.Mutex

	// A failed game does not cancel its siblings, so every task runs to
	// completion on ctx.
	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for _, id := range ids {
		g.Go(func() error {
			st, err := task(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = fmt.Errorf("game %d: %w", id, err)
				return nil
			}
			results[id] = st
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) == 0 {
		return results, nil
	}
	errIDs := make([]int, 0, len(failed))
	for id := range failed {
		errIDs = append(errIDs, id)
	}
	slices.Sort(errIDs)
	errs := make([]error, len(errIDs))
	for i, id := range errIDs {
		errs[i] = failed[id]
	}
	return results, errors.Join(errs...)
}

// Close releases the model sessions behind the engine's value sources.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range e.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
