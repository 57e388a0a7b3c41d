package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UtterancesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_utterances_scored_total",
		Help: "Utterances scored, by mode (single, compare)",
	}, []string{"mode"})

	InputErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_input_errors_total",
		Help: "Utterances rejected because a required text was missing",
	}, []string{"mode"})

	UndefinedRates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_undefined_rates_total",
		Help: "Word error rates reported as undefined (empty reference, non-empty hypothesis)",
	})

	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engine_batch_duration_seconds",
		Help:    "Wall time of a dataset evaluation",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
	}, []string{"mode"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alignment_cache_lookups_total",
		Help: "Alignment cache lookups by result (hit, miss)",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "API requests by route and status code",
	}, []string{"route", "code"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_finished_total",
		Help: "Evaluation jobs finished, by status",
	}, []string{"status"})
)
