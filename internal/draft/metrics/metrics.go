package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Write outcomes.
const (
	WriteApplied            = "applied"
	WriteDroppedUnhydrated  = "dropped_not_hydrated"
	WriteDroppedStorage     = "dropped_storage"
	WriteDroppedEncodeError = "dropped_encode"
)

// Metrics provides observability for the draft store.
// Tracks write outcomes, hydration latency and remote refreshes.
type Metrics struct {
	Writes            *prometheus.CounterVec
	HydrationDuration prometheus.Histogram
	LoadFailures      prometheus.Counter
	RemoteRefreshes   prometheus.Counter
	Evictions         prometheus.Counter
}

// New registers the draft metrics against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_draft_writes_total",
			Help: "Draft writes by outcome",
		}, []string{"mode", "result"}),
		HydrationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wizard_draft_hydration_duration_seconds",
			Help:    "Duration of loading both mode drafts for a session",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		LoadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wizard_draft_load_failures_total",
			Help: "Draft reads that failed during hydration or refresh",
		}),
		RemoteRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "wizard_draft_remote_refreshes_total",
			Help: "Drafts reloaded after a change from another process or tab",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "wizard_draft_store_evictions_total",
			Help: "Idle session stores dropped from the cache",
		}),
	}
}

// ObserveWrite records one write outcome.
func (m *Metrics) ObserveWrite(mode, result string) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(mode, result).Inc()
}

// ObserveHydration records hydration latency.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveHydration(start time.Time) {
	if m == nil {
		return
	}
	m.HydrationDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementLoadFailures() {
	if m == nil {
		return
	}
	m.LoadFailures.Inc()
}

func (m *Metrics) IncrementRemoteRefreshes() {
	if m == nil {
		return
	}
	m.RemoteRefreshes.Inc()
}

func (m *Metrics) AddEvictions(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evictions.Add(float64(n))
}
