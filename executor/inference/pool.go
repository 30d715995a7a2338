package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// Pool fans Predict calls across several batchers, each with its own model
// session, so inference for independent games can run in parallel.
type Pool struct {
	batchers []*Batcher
	closers  []io.Closer
	rr       atomic.Uint64
}

// NewPool wraps already built batchers. closers are closed after the batchers
// stop, typically the model sessions.
func NewPool(batchers []*Batcher, closers ...io.Closer) (*Pool, error) {
	if len(batchers) == 0 {
		return nil, errors.New("inference: pool needs at least one batcher")
	}
	return &Pool{batchers: batchers, closers: closers}, nil
}

// NewOnnxPool opens sessions ONNX sessions behind one batcher each.
func NewOnnxPool(cfg OnnxConfig, sessions, batchSize int) (*Pool, error) {
	if sessions <= 0 {
		sessions = 1
	}

	batchers := make([]*Batcher, 0, sessions)
	closers := make([]io.Closer, 0, sessions)
	for i := 0; i < sessions; i++ {
		model, err := NewOnnxModel(cfg)
		if err != nil {
			for _, b := range batchers {
				_ = b.Close()
			}
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, sessions, err)
		}
		batchers = append(batchers, NewBatcher(model, batchSize))
		closers = append(closers, model)
	}
	return NewPool(batchers, closers...)
}

func (p *Pool) next() *Batcher {
	idx := int(p.rr.Add(1)-1) % len(p.batchers)
	return p.batchers[idx]
}

func (p *Pool) Predict(ctx context.Context, input []float32) (float32, error) {
	return p.next().Predict(ctx, input)
}

// PredictBatch keeps one caller's batch on a single batcher so it coalesces.
func (p *Pool) PredictBatch(ctx context.Context, inputs [][]float32) ([]float32, error) {
	return p.next().PredictBatch(ctx, inputs)
}

func (p *Pool) Stats() RuntimeStats {
	var batches, items, runNanos, last int64
	queue := 0

	for _, b := range p.batchers {
		st := b.Stats()
		batches += st.TotalBatches
		items += st.TotalItems
		runNanos += st.TotalRunNanos
		queue += st.QueueLen
		if st.LastBatchSize > last {
			last = st.LastBatchSize
		}
	}

	avgBatch := 0.0
	avgRunMs := 0.0
	if batches > 0 {
		avgBatch = float64(items) / float64(batches)
		avgRunMs = (float64(runNanos) / 1e6) / float64(batches)
	}

	return RuntimeStats{
		TotalBatches:  batches,
		TotalItems:    items,
		TotalRunNanos: runNanos,
		LastBatchSize: last,
		QueueLen:      queue,
		AvgBatchSize:  avgBatch,
		AvgRunMs:      avgRunMs,
	}
}

func (p *Pool) Close() error {
	var firstErr error
	for _, b := range p.batchers {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
