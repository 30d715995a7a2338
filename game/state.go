// Package game defines the contract between the search engine and the
// per-game rules backends.
//
// A State is an immutable position. Backends never mutate a State in place;
// Play returns a fresh value. The search only ever reads Turn from a State,
// everything else goes through the Backend.
package game

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLegalMoves is returned when a search is requested on a position
	// without any legal move. Callers should check for a finished game first.
	ErrNoLegalMoves = errors.New("no legal moves")
	// ErrIllegalMove is returned when a move is not legal in the given state.
	ErrIllegalMove = errors.New("illegal move")
	// ErrUnknownGame is returned for game ids that were never added.
	ErrUnknownGame = errors.New("unknown game")
)

// State is one immutable game position.
// Turn reports the player to move: 0 or 1.
type State interface {
	Turn() int
}

// Move identifies an action. ID is backend defined and must be stable for
// identical states. Score is an optional heuristic used only by expansion
// policies; tree statistics never look at it.
type Move struct {
	ID    int32
	Score float32
}

func (m Move) String() string {
	return fmt.Sprintf("%d", m.ID)
}

// Backend implements the rules of one game.
type Backend interface {
	Name() string
	InitialState() State
	// LegalMoves returns the ordered, deduplicated moves for state. The
	// order must be deterministic; the search breaks ties by it.
	// A finished position has no legal moves.
	LegalMoves(state State) []Move
	// Play applies move and flips the mover. Behaviour is undefined when
	// move is not legal in state.
	Play(state State, move Move) State
	// IsWin reports whether the player who moved into state (1 - Turn) won.
	IsWin(state State) bool
	IsDraw(state State) bool
	// Encode returns a fixed size float32 encoding, laid out as TensorShape.
	Encode(state State) []float32
	TensorShape() []int64
}

// Evaluator is implemented by backends that provide a static heuristic.
// The score is from the perspective of the player to move.
type Evaluator interface {
	Evaluate(state State) float64
}

// Describer is implemented by backends that can render a state for humans.
type Describer interface {
	Describe(state State) string
}

// Describe renders state with b's Describer when it has one.
func Describe(b Backend, state State) string {
	if d, ok := b.(Describer); ok {
		return d.Describe(state)
	}
	return fmt.Sprintf("%+v", state)
}

// TensorSize is the number of float32 values in one encoded state.
func TensorSize(b Backend) int {
	size := int64(1)
	for _, d := range b.TensorShape() {
		size *= d
	}
	return int(size)
}

// IsLegal reports whether move is legal in state, matching on ID.
func IsLegal(b Backend, state State, move Move) bool {
	for _, m := range b.LegalMoves(state) {
		if m.ID == move.ID {
			return true
		}
	}
	return false
}

// FindMove returns the legal move with the given ID, carrying the backend's
// own Score.
func FindMove(b Backend, state State, id int32) (Move, bool) {
	for _, m := range b.LegalMoves(state) {
		if m.ID == id {
			return m, true
		}
	}
	return Move{}, false
}
