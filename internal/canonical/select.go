package canonical

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
)

// ErrUnknownDocumentType is returned by strict selection for spellings that
// do not normalize to a supported type.
var ErrUnknownDocumentType = dErrors.New(dErrors.CodeInvalidInput, "unknown document type")

var adapters = map[domain.DocumentType]Adapter{
	domain.DocumentGrantDeed:            deedAdapter{docType: domain.DocumentGrantDeed},
	domain.DocumentQuitclaimDeed:        deedAdapter{docType: domain.DocumentQuitclaimDeed},
	domain.DocumentWarrantyDeed:         deedAdapter{docType: domain.DocumentWarrantyDeed},
	domain.DocumentInterspousalTransfer: interspousalAdapter{},
	domain.DocumentTaxDeed:              taxDeedAdapter{},
}

// For returns the adapter of a canonical document type.
func For(t domain.DocumentType) (Adapter, bool) {
	a, ok := adapters[t]
	return a, ok
}

// Metrics counts fallback selections.
type Metrics struct {
	Fallbacks prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Fallbacks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wizard_canonical_document_type_fallbacks_total",
			Help: "Drafts with an unrecognized document type mapped with the grant deed adapter",
		}),
	}
}

func (m *Metrics) IncrementFallbacks() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}

// Selector picks the adapter for a draft's stored document type.
type Selector struct {
	logger  *slog.Logger
	metrics *Metrics
}

type SelectorOption func(*Selector)

func WithLogger(logger *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) SelectorOption {
	return func(s *Selector) {
		s.metrics = m
	}
}

func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select normalizes raw (legacy spellings included) and returns its adapter.
// Unrecognized values fall back to the grant deed adapter with a warning;
// fallback reports that this happened.
func (s *Selector) Select(raw string) (adapter Adapter, docType domain.DocumentType, fallback bool) {
	if t, ok := domain.NormalizeDocumentType(raw); ok {
		return adapters[t], t, false
	}
	s.logger.Warn("unrecognized document type; using grant deed mapping",
		"document_type", raw,
	)
	s.metrics.IncrementFallbacks()
	return adapters[domain.DefaultDocumentType], domain.DefaultDocumentType, true
}

// SelectStrict is Select without the fallback.
func (s *Selector) SelectStrict(raw string) (Adapter, domain.DocumentType, error) {
	t, ok := domain.NormalizeDocumentType(raw)
	if !ok {
		return nil, "", ErrUnknownDocumentType
	}
	return adapters[t], t, nil
}
