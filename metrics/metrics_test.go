package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(gamesFinished.WithLabelValues("draw"))
	GameFinished("draw")
	assert.Equal(t, before+1, testutil.ToFloat64(gamesFinished.WithLabelValues("draw")))

	beforeFail := testutil.ToFloat64(inferenceFailures)
	InferenceFailed(3)
	assert.Equal(t, beforeFail+3, testutil.ToFloat64(inferenceFailures))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveBatch(4, time.Millisecond)
	ObserveSearch("reference", time.Millisecond)
	MovePlayed()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "zeroclone_inference_batch_size")
	assert.Contains(t, body, "zeroclone_mcts_searches_total")
	assert.Contains(t, body, "zeroclone_selfplay_moves_total")
}
