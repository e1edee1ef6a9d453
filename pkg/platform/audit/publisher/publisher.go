// Package publisher emits audit events to a Store, either inline or through
// a bounded buffer drained by one background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"deedwizard/pkg/domain"
	audit "deedwizard/pkg/platform/audit"
)

var (
	// ErrBufferFull is returned by Emit in async mode when the buffer has no room.
	ErrBufferFull = errors.New("audit buffer full")
	ErrClosed     = errors.New("audit publisher closed")
)

// appendTimeout bounds a single background write.
const appendTimeout = 5 * time.Second

// Publisher captures structured audit events.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time

	bufferSize int
	dropped    prometheus.Counter

	mu     sync.RWMutex
	inbox  chan audit.Event
	closed bool
	done   chan struct{}
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue instead of writing inline.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics registers a dropped-events counter against reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(p *Publisher) {
		p.dropped = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "deedwizard_audit_events_dropped_total",
			Help: "Audit events dropped because the publisher buffer was full",
		})
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit stamps and stores event. In async mode it never blocks: a full buffer
// drops the event and returns ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.dropped != nil {
			p.dropped.Inc()
		}
		p.logger.WarnContext(ctx, "audit buffer full; event dropped",
			"action", event.Action,
			"session", event.Session.String(),
		)
		return ErrBufferFull
	}
}

func (p *Publisher) List(ctx context.Context, session domain.SessionID) ([]audit.Event, error) {
	return p.store.ListBySession(ctx, session)
}

// Close drains buffered events and stops the background writer. It is safe
// to call more than once.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"session", event.Session.String(),
				"error", err,
			)
		}
		cancel()
	}
}
