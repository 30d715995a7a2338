package inference

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

// sumModel returns the sum of each input; a NaN first element fails the
// whole call and a negative first element panics.
type sumModel struct {
	size int

	mu    sync.Mutex
	calls []int
	gate  chan struct{}
}

func (m *sumModel) InputSize() int { return m.size }

func (m *sumModel) Run(input []float32, batch int) ([]float32, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	m.calls = append(m.calls, batch)
	m.mu.Unlock()

	out := make([]float32, batch)
	for i := 0; i < batch; i++ {
		item := input[i*m.size : (i+1)*m.size]
		if item[0] != item[0] {
			return nil, errors.New("nan input")
		}
		if item[0] < 0 {
			panic("negative input")
		}
		for _, v := range item {
			out[i] += v
		}
	}
	return out, nil
}

func (m *sumModel) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.calls...)
}

func nan() float32 {
	var zero float32
	return zero / zero
}

func TestPredict(t *testing.T) {
	b := NewBatcher(&sumModel{size: 2}, 4)
	defer b.Close()

	v, err := b.Predict(context.Background(), []float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, float32(3), v)
}

func TestPredictBatchCoalesces(t *testing.T) {
	m := &sumModel{size: 1, gate: make(chan struct{})}
	b := NewBatcher(m, 8)
	defer b.Close()

	// Hold the worker on the first call so the rest queue up behind it.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := b.Predict(context.Background(), []float32{0})
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)

	resCh := make(chan []float32, 1)
	go func() {
		out, err := b.PredictBatch(context.Background(), [][]float32{{1}, {2}, {3}, {4}})
		assert.NoError(t, err)
		resCh <- out
	}()
	time.Sleep(20 * time.Millisecond)
	close(m.gate)

	<-done
	assert.Equal(t, []float32{1, 2, 3, 4}, <-resCh)
	assert.Equal(t, []int{1, 4}, m.batchSizes())

	st := b.Stats()
	assert.Equal(t, int64(2), st.TotalBatches)
	assert.Equal(t, int64(5), st.TotalItems)
	assert.Equal(t, 2.5, st.AvgBatchSize)
}

func TestBatchSizeCap(t *testing.T) {
	m := &sumModel{size: 1, gate: make(chan struct{})}
	b := NewBatcher(m, 2)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Predict(context.Background(), []float32{1})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(m.gate)
	wg.Wait()

	for _, n := range m.batchSizes() {
		assert.LessOrEqual(t, n, 2)
	}
}

func TestFailureIsolatedPerRequest(t *testing.T) {
	m := &sumModel{size: 1, gate: make(chan struct{})}
	b := NewBatcher(m, 8)
	defer b.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(m.gate)
	}()
	_, err := b.PredictBatch(context.Background(), [][]float32{{1}, {nan()}, {3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 1")

	// The worker survives and keeps serving.
	v, err := b.Predict(context.Background(), []float32{5})
	require.NoError(t, err)
	assert.Equal(t, float32(5), v)
}

func TestFailureRetriesSingles(t *testing.T) {
	m := &sumModel{size: 1, gate: make(chan struct{})}
	b := NewBatcher(m, 8)
	defer b.Close()

	type result struct {
		v   float32
		err error
	}
	inputs := []float32{1, -1, 3}
	results := make([]chan result, len(inputs))
	for i, in := range inputs {
		results[i] = make(chan result, 1)
		go func(i int, in float32) {
			v, err := b.Predict(context.Background(), []float32{in})
			results[i] <- result{v, err}
		}(i, in)
		time.Sleep(5 * time.Millisecond)
	}
	close(m.gate)

	good := <-results[0]
	bad := <-results[1]
	other := <-results[2]
	assert.NoError(t, good.err)
	assert.Equal(t, float32(1), good.v)
	assert.ErrorIs(t, bad.err, ErrModelPanic)
	assert.NoError(t, other.err)
	assert.Equal(t, float32(3), other.v)
}

func TestWrongInputSize(t *testing.T) {
	b := NewBatcher(&sumModel{size: 3}, 4)
	defer b.Close()

	_, err := b.Predict(context.Background(), []float32{1})
	assert.ErrorIs(t, err, ErrInputSize)
}

func TestClose(t *testing.T) {
	b := NewBatcher(&sumModel{size: 1}, 4)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Predict(context.Background(), []float32{1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestContextCancelWhileWaiting(t *testing.T) {
	m := &sumModel{size: 1, gate: make(chan struct{})}
	b := NewBatcher(m, 4)
	defer func() {
		close(m.gate)
		b.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Predict(ctx, []float32{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolRoundRobin(t *testing.T) {
	m1, m2 := &sumModel{size: 1}, &sumModel{size: 1}
	p, err := NewPool([]*Batcher{NewBatcher(m1, 4), NewBatcher(m2, 4)})
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 4; i++ {
		_, err := p.Predict(context.Background(), []float32{1})
		require.NoError(t, err)
	}
	assert.Len(t, m1.batchSizes(), 2)
	assert.Len(t, m2.batchSizes(), 2)
	assert.Equal(t, int64(4), p.Stats().TotalItems)

	_, err = NewPool(nil)
	assert.Error(t, err)
}

func TestCheckShapes(t *testing.T) {
	in := []ort.InputOutputInfo{{Name: "input", Dimensions: ort.NewShape(-1, 2, 6, 7)}}
	out := []ort.InputOutputInfo{{Name: "value", Dimensions: ort.NewShape(-1, 1)}}

	assert.NoError(t, checkShapes(in, out, []int64{2, 6, 7}))
	assert.ErrorIs(t, checkShapes(in, out, []int64{2, 7, 6}), ErrShapeMismatch)
	assert.ErrorIs(t, checkShapes(in, out, []int64{84}), ErrShapeMismatch)
	assert.ErrorIs(t, checkShapes(in, nil, []int64{2, 6, 7}), ErrShapeMismatch)
}

func TestNewOnnxModelMissingFile(t *testing.T) {
	_, err := NewOnnxModel(OnnxConfig{ModelPath: "does-not-exist.onnx", StateShape: []int64{2, 6, 7}})
	assert.Error(t, err)
}
