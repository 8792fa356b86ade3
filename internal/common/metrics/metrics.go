// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certflow_step_transitions_total",
			Help: "Step navigator transitions by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	SubmissionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certflow_submission_attempts_total",
			Help: "Submission gate calls by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "certflow_submission_duration_seconds",
			Help:    "Duration of submission network calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "certflow_sessions_active",
			Help: "Number of live flow sessions held in memory",
		},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of jobs currently being processed by worker",
		},
		[]string{"task_type"},
	)

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
)

// Submission outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeCached     = "cached"
	OutcomeInvalid    = "invalid"
	OutcomeFailed     = "failed"
	OutcomeTimeout    = "timeout"
	OutcomeRejected   = "rejected"
	OutcomeInFlight   = "in_flight"
	OutcomeMoved      = "moved"
	OutcomeHeld       = "held"
	OutcomeNoop       = "noop"
	DirectionForward  = "forward"
	DirectionBackward = "backward"
	DirectionJump     = "jump"
)
