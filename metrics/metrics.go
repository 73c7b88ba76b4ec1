package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SubmissionsTotal counts processed submissions by outcome.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudverify",
		Subsystem: "engine",
		Name:      "submissions_total",
		Help:      "Total number of issue submissions processed, labeled by outcome.",
	}, []string{"outcome"})

	// DuplicatesRejectedTotal counts submissions rejected as replays.
	DuplicatesRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fraudverify",
		Subsystem: "engine",
		Name:      "duplicates_rejected_total",
		Help:      "Total number of submissions rejected as duplicate/replay.",
	})

	// RiskLevelTotal counts fraud assessments by resulting risk level.
	RiskLevelTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudverify",
		Subsystem: "engine",
		Name:      "risk_level_total",
		Help:      "Total number of fraud assessments, labeled by risk level.",
	}, []string{"level"})

	// VerificationsTotal counts resolution verifications by recommendation.
	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fraudverify",
		Subsystem: "engine",
		Name:      "verifications_total",
		Help:      "Total number of resolution verifications, labeled by recommendation.",
	}, []string{"recommendation"})

	// ExternalCallDuration measures time spent in external collaborators.
	ExternalCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fraudverify",
		Subsystem: "engine",
		Name:      "external_call_duration_seconds",
		Help:      "Time spent in external collaborator calls (model inference can be slow).",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"call"})
)

// Register registers all collectors with the default registry exactly once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			DuplicatesRejectedTotal,
			RiskLevelTotal,
			VerificationsTotal,
			ExternalCallDuration,
		)
	})
}
