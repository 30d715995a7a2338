package game

// Outcome is the result of a finished game from player 0's perspective.
type Outcome int8

const (
	Player1Won Outcome = -1
	Draw       Outcome = 0
	Player0Won Outcome = 1
)

func (o Outcome) String() string {
	switch o {
	case Player0Won:
		return "player0"
	case Player1Won:
		return "player1"
	default:
		return "draw"
	}
}

// ForPlayer returns the outcome as +1/-1/0 from player's perspective.
func (o Outcome) ForPlayer(player int) float64 {
	if player == 0 {
		return float64(o)
	}
	return -float64(o)
}

// OutcomeOf reports the fixed-perspective result of state, and whether the
// game is over. A win is credited to the player who moved into state.
func OutcomeOf(b Backend, state State) (Outcome, bool) {
	if b.IsWin(state) {
		if state.Turn() == 1 {
			return Player0Won, true
		}
		return Player1Won, true
	}
	if b.IsDraw(state) {
		return Draw, true
	}
	return Draw, false
}

// IsTerminal reports whether state is a won or drawn position.
func IsTerminal(b Backend, state State) bool {
	_, done := OutcomeOf(b, state)
	return done
}
