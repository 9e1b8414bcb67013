package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pass outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics provides observability for the policy expiration monitor.
type Metrics struct {
	Passes              *prometheus.CounterVec
	PassDuration        prometheus.Histogram
	RecordsCreated      prometheus.Counter
	OutsideWindow       prometheus.Counter
	DuplicatesSkipped   prometheus.Counter
	InvalidCandidates   prometheus.Counter
	NotificationsFailed prometheus.Counter
	LastSuccess         prometheus.Gauge
}

// New creates the monitor metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Passes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carinsurance_expiration_passes_total",
			Help: "Reconciliation passes by outcome",
		}, []string{"outcome"}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "carinsurance_expiration_pass_duration_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RecordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "carinsurance_expiration_records_created_total",
			Help: "Expiration records committed",
		}),
		OutsideWindow: factory.NewCounter(prometheus.CounterOpts{
			Name: "carinsurance_expiration_outside_window_total",
			Help: "Candidates skipped because their expiration fell outside the freshness window",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "carinsurance_expiration_duplicates_skipped_total",
			Help: "Staged records dropped because a concurrent writer recorded the policy first",
		}),
		InvalidCandidates: factory.NewCounter(prometheus.CounterOpts{
			Name: "carinsurance_expiration_invalid_candidates_total",
			Help: "Candidates excluded because of malformed policy data",
		}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "carinsurance_expiration_notifications_failed_total",
			Help: "Post-commit expiration notifications that could not be published",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "carinsurance_expiration_last_success_timestamp_seconds",
			Help: "Unix time of the last successful reconciliation pass",
		}),
	}
}

// ObservePass records a finished pass. Call with time.Now() captured at the
// start of the pass.
func (m *Metrics) ObservePass(outcome string, start time.Time) {
	m.Passes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSkipped {
		return
	}
	m.PassDuration.Observe(time.Since(start).Seconds())
	if outcome == OutcomeSuccess {
		m.LastSuccess.SetToCurrentTime()
	}
}
