package selfplay

import (
	"github.com/brensch/zeroclone/executor/convert"
	"github.com/brensch/zeroclone/game"
	"github.com/brensch/zeroclone/store"
)

// Dataset is every position of every finished game. States is laid out as
// Shape, whose first dimension is the number of positions.
type Dataset struct {
	Shape  []int64
	States []float32
	Labels []float32
	Rows   []store.TrainingRow
}

func (d Dataset) Len() int { return len(d.Labels) }

// Label is the final outcome seen by the player to move at a position. Movers
// alternate, so consecutive positions get opposite signs. A draw is 0 for
// both players, never negative zero.
func Label(outcome game.Outcome, turn int) float32 {
	if outcome == game.Draw {
		return 0
	}
	return float32(outcome.ForPlayer(turn))
}

// Dataset collects finished games only. With none finished it is empty but
// still carries the per-state shape.
func (e *Engine) Dataset() Dataset {
	stateShape := e.backend.TensorShape()
	size := game.TensorSize(e.backend)
	shape32 := make([]int32, len(stateShape))
	for i, d := range stateShape {
		shape32[i] = int32(d)
	}

	e.mu.RLock()
	games := append([]*gameSlot(nil), e.games...)
	cycle := e.opts.Cycle
	e.mu.RUnlock()

	var ds Dataset
	for _, g := range games {
		g.mu.Lock()
		if !g.done {
			g.mu.Unlock()
			continue
		}
		for ply, s := range g.history {
			enc := e.backend.Encode(s)
			label := Label(g.outcome, s.Turn())
			move := int32(-1)
			if ply < len(g.moves) {
				move = g.moves[ply].ID
			}
			ds.States = append(ds.States, enc[:size]...)
			ds.Labels = append(ds.Labels, label)
			ds.Rows = append(ds.Rows, store.TrainingRow{
				GameID: g.uuid,
				Game:   e.backend.Name(),
				Ply:    int32(ply),
				Turn:   int32(s.Turn()),
				Shape:  shape32,
				State:  convert.FloatsToBytes(enc),
				Move:   move,
				Label:  label,
				Source: e.opts.Source,
				Cycle:  int32(cycle),
			})
		}
		g.mu.Unlock()
	}

	ds.Shape = append([]int64{int64(len(ds.Labels))}, stateShape...)
	if ds.States == nil {
		ds.States = []float32{}
		ds.Labels = []float32{}
	}
	return ds
}
