// Package metrics exposes Prometheus instrumentation for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PostAttemptsTotal counts post attempts by outcome: posted,
	// rate-limited, duplicate, upstream-error, timeout.
	PostAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_attempts_total",
			Help: "Total number of post attempts by outcome",
		},
		[]string{"outcome"},
	)

	// FeedFetchesTotal counts feed fetches by source and whether the cache
	// served them.
	FeedFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of feed fetches by source and cache status",
		},
		[]string{"source", "cache"},
	)

	// GenerationsTotal counts LLM generations by result (ok, error).
	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Total number of LLM generations by result",
		},
		[]string{"result"},
	)
)

// Handler returns the /metrics HTTP handler backed by a dedicated registry.
func Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PostAttemptsTotal,
		FeedFetchesTotal,
		GenerationsTotal,
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordPostOutcome increments the post attempt counter for an outcome.
func RecordPostOutcome(outcome string) {
	PostAttemptsTotal.WithLabelValues(outcome).Inc()
}
