// Package connect4 implements the Connect Four rules on a 6x7 board.
package connect4

import (
	"math"
	"strings"

	"github.com/brensch/zeroclone/game"
)

const (
	Rows = 6
	Cols = 7

	// WinBonus is added to the score of a move that wins on the spot.
	WinBonus = 100

	empty  int8 = 0
	token0 int8 = 1
	token1 int8 = 2
)

const Name = "connect4"

// State is one Connect Four position. Cells are stored row-major with row 0
// at the top of the board.
type State struct {
	Cells [Rows * Cols]int8
	Mover int
	Plies int
	Won   bool
}

func (s *State) Turn() int { return s.Mover }

func (s *State) At(row, col int) int8 { return s.Cells[row*Cols+col] }

// Backend is stateless and safe for concurrent use.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return Name }

func (b *Backend) InitialState() game.State { return &State{} }

func (b *Backend) TensorShape() []int64 { return []int64{2, Rows, Cols} }

func (b *Backend) LegalMoves(st game.State) []game.Move {
	s := st.(*State)
	if s.Won || s.Plies == Rows*Cols {
		return nil
	}
	moves := make([]game.Move, 0, Cols)
	for col := 0; col < Cols; col++ {
		if s.At(0, col) != empty {
			continue
		}
		score := float32(3 - abs(col-3))
		if _, won := drop(s, col); won {
			score += WinBonus
		}
		moves = append(moves, game.Move{ID: int32(col), Score: score})
	}
	return moves
}

func (b *Backend) Play(st game.State, m game.Move) game.State {
	s := st.(*State)
	next, won := drop(s, int(m.ID))
	next.Won = won
	return next
}

func (b *Backend) IsWin(st game.State) bool { return st.(*State).Won }

func (b *Backend) IsDraw(st game.State) bool {
	s := st.(*State)
	return !s.Won && s.Plies == Rows*Cols
}

// Encode returns two planes: the mover's tokens then the opponent's.
func (b *Backend) Encode(st game.State) []float32 {
	s := st.(*State)
	out := make([]float32, 2*Rows*Cols)
	mine, theirs := tokenFor(s.Mover), tokenFor(1-s.Mover)
	for i, c := range s.Cells {
		switch c {
		case mine:
			out[i] = 1
		case theirs:
			out[Rows*Cols+i] = 1
		}
	}
	return out
}

// Evaluate scores open windows of four: windows holding only the mover's
// tokens count for, windows holding only the opponent's count against.
func (b *Backend) Evaluate(st game.State) float64 {
	s := st.(*State)
	mine, theirs := tokenFor(s.Mover), tokenFor(1-s.Mover)
	var score float64
	forEachWindow(func(idx [4]int) {
		var m, t int
		for _, i := range idx {
			switch s.Cells[i] {
			case mine:
				m++
			case theirs:
				t++
			}
		}
		switch {
		case m > 0 && t == 0:
			score += windowWeight[m]
		case t > 0 && m == 0:
			score -= windowWeight[t]
		}
	})
	return math.Tanh(score / 32)
}

var windowWeight = [5]float64{0, 1, 4, 16, 64}

func (b *Backend) Describe(st game.State) string {
	s := st.(*State)
	var sb strings.Builder
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			switch s.At(row, col) {
			case token0:
				sb.WriteByte('X')
			case token1:
				sb.WriteByte('O')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("0123456\n")
	return sb.String()
}

// FromRows builds a state from six strings of 'X', 'O' and '.', top row
// first. The mover is derived from the token count. Used by tests and the
// HTTP API.
func FromRows(rows []string) (*State, bool) {
	if len(rows) != Rows {
		return nil, false
	}
	s := &State{}
	var x, o int
	for r, line := range rows {
		if len(line) != Cols {
			return nil, false
		}
		for c := 0; c < Cols; c++ {
			switch line[c] {
			case 'X':
				s.Cells[r*Cols+c] = token0
				x++
			case 'O':
				s.Cells[r*Cols+c] = token1
				o++
			case '.':
			default:
				return nil, false
			}
		}
	}
	switch x - o {
	case 0:
		s.Mover = 0
	case 1:
		s.Mover = 1
	default:
		return nil, false
	}
	s.Plies = x + o
	s.Won = hasFour(s, tokenFor(1-s.Mover))
	return s, true
}

func drop(s *State, col int) (*State, bool) {
	next := *s
	row := Rows - 1
	for row >= 0 && next.At(row, col) != empty {
		row--
	}
	if row < 0 {
		// Column full; callers only pass legal moves.
		return &next, false
	}
	tok := tokenFor(s.Mover)
	next.Cells[row*Cols+col] = tok
	next.Mover = 1 - s.Mover
	next.Plies++
	return &next, connectsFour(&next, row, col, tok)
}

var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

func connectsFour(s *State, row, col int, tok int8) bool {
	for _, d := range directions {
		n := 1 + run(s, row, col, d[0], d[1], tok) + run(s, row, col, -d[0], -d[1], tok)
		if n >= 4 {
			return true
		}
	}
	return false
}

func run(s *State, row, col, dr, dc int, tok int8) int {
	n := 0
	for {
		row += dr
		col += dc
		if row < 0 || row >= Rows || col < 0 || col >= Cols || s.At(row, col) != tok {
			return n
		}
		n++
	}
}

func hasFour(s *State, tok int8) bool {
	found := false
	forEachWindow(func(idx [4]int) {
		if found {
			return
		}
		for _, i := range idx {
			if s.Cells[i] != tok {
				return
			}
		}
		found = true
	})
	return found
}

func forEachWindow(fn func([4]int)) {
	for row := 0; row < Rows; row++ {
		for col := 0; col < Cols; col++ {
			for _, d := range directions {
				endR, endC := row+3*d[0], col+3*d[1]
				if endR < 0 || endR >= Rows || endC < 0 || endC >= Cols {
					continue
				}
				var idx [4]int
				for k := 0; k < 4; k++ {
					idx[k] = (row+k*d[0])*Cols + col + k*d[1]
				}
				fn(idx)
			}
		}
	}
}

func tokenFor(player int) int8 {
	if player == 0 {
		return token0
	}
	return token1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
