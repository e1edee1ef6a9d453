package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Finalize outcomes.
const (
	OutcomeCommitted  = "committed"
	OutcomeIncomplete = "incomplete"
	OutcomeRejected   = "rejected"
)

// Generation outcomes.
const (
	GenerationSucceeded = "succeeded"
	GenerationTerminal  = "terminal"
	GenerationExhausted = "exhausted"
	GenerationCancelled = "cancelled"
	// GenerationIncomplete means the record was refused before any attempt.
	GenerationIncomplete = "incomplete"
)

// Metrics covers commits, repairs and document generation.
type Metrics struct {
	Finalizations      *prometheus.CounterVec
	Repairs            *prometheus.CounterVec
	CommitDuration     prometheus.Histogram
	Generations        *prometheus.CounterVec
	GenerationAttempts prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Finalizations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_finalizations_total",
			Help: "Finalize calls by document type and outcome",
		}, []string{"document_type", "outcome"}),
		Repairs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_finalize_repairs_total",
			Help: "Required fields filled from raw answers during finalize",
		}, []string{"field"}),
		CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wizard_commit_duration_seconds",
			Help:    "Duration of the deed commit call",
			Buckets: prometheus.DefBuckets,
		}),
		Generations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_generations_total",
			Help: "Document generation requests by outcome",
		}, []string{"outcome"}),
		GenerationAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wizard_generation_attempts",
			Help:    "Attempts used per generation request",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
	}
}

func (m *Metrics) ObserveFinalize(documentType, outcome string) {
	if m == nil {
		return
	}
	m.Finalizations.WithLabelValues(documentType, outcome).Inc()
}

func (m *Metrics) ObserveRepair(field string) {
	if m == nil {
		return
	}
	m.Repairs.WithLabelValues(field).Inc()
}

// ObserveCommit records commit latency.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCommit(start time.Time) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveGeneration(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.GenerationAttempts.Observe(float64(attempts))
	}
}
