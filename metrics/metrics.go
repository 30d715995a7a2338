// Package metrics exposes Prometheus collectors for the inference batcher,
// the searchers and the self-play engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zeroclone"

var (
	inferenceBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "inference",
		Name:      "batch_size",
		Help:      "Number of requests coalesced into one model call",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	inferenceRunSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "inference",
		Name:      "run_seconds",
		Help:      "Wall time of one model call",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	inferenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inference",
		Name:      "failed_requests_total",
		Help:      "Requests answered with an error",
	})

	// searches is labelled by searcher: "reference", "accelerated" or "fallback".
	searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mcts",
		Name:      "searches_total",
		Help:      "Completed searches by searcher",
	}, []string{"searcher"})

	searchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "mcts",
		Name:      "search_seconds",
		Help:      "Wall time of one move selection",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	searchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mcts",
		Name:      "fallbacks_total",
		Help:      "Searches rerun on the reference searcher after a failure",
	})

	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selfplay",
		Name:      "games_finished_total",
		Help:      "Finished games by outcome",
	}, []string{"outcome"})

	movesPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "selfplay",
		Name:      "moves_total",
		Help:      "Moves applied across all games",
	})
)

func ObserveBatch(size int, d time.Duration) {
	inferenceBatchSize.Observe(float64(size))
	inferenceRunSeconds.Observe(d.Seconds())
}

func InferenceFailed(n int) {
	inferenceFailures.Add(float64(n))
}

func ObserveSearch(searcher string, d time.Duration) {
	searches.WithLabelValues(searcher).Inc()
	searchSeconds.Observe(d.Seconds())
}

func ObserveSearchFallback() {
	searchFallbacks.Inc()
}

func GameFinished(outcome string) {
	gamesFinished.WithLabelValues(outcome).Inc()
}

func MovePlayed() {
	movesPlayed.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
