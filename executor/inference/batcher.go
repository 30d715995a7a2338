package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brensch/zeroclone/metrics"
)

const DefaultBatchSize = 64

var (
	// ErrClosed is returned for requests made after, or still queued at, Close.
	ErrClosed = errors.New("inference: batcher closed")
	// ErrInputSize is returned when an input does not match the model input size.
	ErrInputSize = errors.New("inference: wrong input size")
	// ErrModelPanic wraps a panic raised inside Model.Run.
	ErrModelPanic = errors.New("inference: model panicked")
)

// Model scores a flattened batch of inputs, returning one value per item.
// Run is only ever called from one goroutine per Batcher.
type Model interface {
	Run(input []float32, batch int) ([]float32, error)
	InputSize() int
}

// Predictor is what value sources talk to. Batcher and Pool implement it.
type Predictor interface {
	Predict(ctx context.Context, input []float32) (float32, error)
	// PredictBatch enqueues every input before waiting on any, so a single
	// caller can fill a batch on its own.
	PredictBatch(ctx context.Context, inputs [][]float32) ([]float32, error)
	Stats() RuntimeStats
	Close() error
}

type request struct {
	input    []float32
	respChan chan response
}

type response struct {
	value float32
	err   error
}

type RuntimeStats struct {
	TotalBatches  int64
	TotalItems    int64
	TotalRunNanos int64
	LastBatchSize int64
	QueueLen      int
	AvgBatchSize  float64
	AvgRunMs      float64
}

// Batcher owns one Model and one consumer goroutine. Any number of callers
// may submit concurrently; each waits only on its own response channel.
type Batcher struct {
	model     Model
	batchSize int
	requests  chan request
	done      chan struct{}
	stopped   chan struct{}

	mu     sync.RWMutex
	closed bool

	totalBatches  atomic.Int64
	totalItems    atomic.Int64
	totalRunNanos atomic.Int64
	lastBatchSize atomic.Int64
}

func NewBatcher(model Model, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	b := &Batcher{
		model:     model,
		batchSize: batchSize,
		requests:  make(chan request, batchSize*2),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.batchLoop()
	return b
}

func (b *Batcher) Predict(ctx context.Context, input []float32) (float32, error) {
	ch, err := b.submit(ctx, input)
	if err != nil {
		return 0, err
	}
	return wait(ctx, ch)
}

func (b *Batcher) PredictBatch(ctx context.Context, inputs [][]float32) ([]float32, error) {
	chans := make([]chan response, len(inputs))
	for i, in := range inputs {
		ch, err := b.submit(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		chans[i] = ch
	}
	out := make([]float32, len(inputs))
	var firstErr error
	for i, ch := range chans {
		v, err := wait(ctx, ch)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = v
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (b *Batcher) submit(ctx context.Context, input []float32) (chan response, error) {
	if len(input) != b.model.InputSize() {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInputSize, len(input), b.model.InputSize())
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch := make(chan response, 1)
	select {
	case b.requests <- request{input: input, respChan: ch}:
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func wait(ctx context.Context, ch chan response) (float32, error) {
	select {
	case resp := <-ch:
		return resp.value, resp.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops the worker. Requests still queued fail with ErrClosed.
func (b *Batcher) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()
	<-b.stopped
	return nil
}

func (b *Batcher) Stats() RuntimeStats {
	batches := b.totalBatches.Load()
	items := b.totalItems.Load()
	runNanos := b.totalRunNanos.Load()
	st := RuntimeStats{
		TotalBatches:  batches,
		TotalItems:    items,
		TotalRunNanos: runNanos,
		LastBatchSize: b.lastBatchSize.Load(),
		QueueLen:      len(b.requests),
	}
	if batches > 0 {
		st.AvgBatchSize = float64(items) / float64(batches)
		st.AvgRunMs = (float64(runNanos) / 1e6) / float64(batches)
	}
	return st
}

// batchLoop blocks for one request, then takes whatever else is already
// queued up to batchSize. The first request in a batch never waits for more
// than one model call.
func (b *Batcher) batchLoop() {
	defer close(b.stopped)
	batch := make([]request, 0, b.batchSize)
	input := make([]float32, 0, b.batchSize*b.model.InputSize())

	for {
		select {
		case <-b.done:
			b.failQueued()
			return
		case req := <-b.requests:
			batch = append(batch[:0], req)
		}

	fill:
		for len(batch) < b.batchSize {
			select {
			case req := <-b.requests:
				batch = append(batch, req)
			default:
				break fill
			}
		}

		input = input[:0]
		for _, req := range batch {
			input = append(input, req.input...)
		}
		b.runBatch(batch, input)
	}
}

func (b *Batcher) runBatch(batch []request, input []float32) {
	start := time.Now()
	out, err := b.safeRun(input, len(batch))
	elapsed := time.Since(start)

	b.totalBatches.Add(1)
	b.totalItems.Add(int64(len(batch)))
	b.totalRunNanos.Add(elapsed.Nanoseconds())
	b.lastBatchSize.Store(int64(len(batch)))
	metrics.ObserveBatch(len(batch), elapsed)

	if err == nil {
		for i, req := range batch {
			req.respChan <- response{value: out[i]}
		}
		return
	}

	if len(batch) == 1 {
		b.failBatch(batch, err)
		return
	}

	// The joint call failed; retry one by one so only the bad input fails.
	size := b.model.InputSize()
	for i, req := range batch {
		single, err := b.safeRun(input[i*size:(i+1)*size], 1)
		if err != nil {
			b.failBatch(batch[i:i+1], err)
			continue
		}
		req.respChan <- response{value: single[0]}
	}
}

func (b *Batcher) safeRun(input []float32, n int) (out []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrModelPanic, r)
		}
	}()
	out, err = b.model.Run(input, n)
	if err != nil {
		return nil, err
	}
	if len(out) != n {
		return nil, fmt.Errorf("inference: model returned %d values for %d inputs", len(out), n)
	}
	return out, nil
}

func (b *Batcher) failBatch(batch []request, err error) {
	metrics.InferenceFailed(len(batch))
	for _, req := range batch {
		req.respChan <- response{err: err}
	}
}

func (b *Batcher) failQueued() {
	for {
		select {
		case req := <-b.requests:
			b.failBatch([]request{req}, ErrClosed)
		default:
			return
		}
	}
}
