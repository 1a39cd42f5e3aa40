// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_answers_total",
			Help: "Questions answered, by outcome and query source",
		},
		[]string{"outcome", "source"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_cache_lookups_total",
			Help: "Cached query matcher lookups by result",
		},
		[]string{"result", "role"},
	)

	SynthesisAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_synthesis_attempts_total",
			Help: "Text generation attempts made while synthesizing queries",
		},
		[]string{"provider", "result"},
	)

	IdentityResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_identity_resolutions_total",
			Help: "Identity resolution results by strategy",
		},
		[]string{"strategy", "result"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)
)
