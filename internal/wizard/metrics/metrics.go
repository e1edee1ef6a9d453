package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics covers wizard service operations.
type Metrics struct {
	Operations      *prometheus.CounterVec
	SharedCalls     *prometheus.CounterVec
	PartnerFailures prometheus.Counter
	Lookups         *prometheus.CounterVec
	Subscribers     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_operations_total",
			Help: "Wizard service operations by name and result",
		}, []string{"operation", "result"}),
		SharedCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_shared_calls_total",
			Help: "Finalize or generate calls that joined one already in flight for the same draft",
		}, []string{"operation"}),
		PartnerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wizard_partner_directory_failures_total",
			Help: "Partner directory failures that degraded to no suggestions",
		}),
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wizard_property_lookups_total",
			Help: "Property verification lookups by result category",
		}, []string{"result"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wizard_event_subscribers",
			Help: "Open draft change subscriptions",
		}),
	}
}

func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) IncrementShared(operation string) {
	if m == nil {
		return
	}
	m.SharedCalls.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementPartnerFailures() {
	if m == nil {
		return
	}
	m.PartnerFailures.Inc()
}

func (m *Metrics) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) AddSubscribers(delta float64) {
	if m == nil {
		return
	}
	m.Subscribers.Add(delta)
}
