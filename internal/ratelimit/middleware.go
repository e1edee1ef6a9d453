package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"deedwizard/internal/ratelimit/metrics"
	dErrors "deedwizard/pkg/domain-errors"
	"deedwizard/pkg/platform/httputil"
	"deedwizard/pkg/requestcontext"
)

// KeyFunc extracts the identity a budget is charged to. An empty key skips
// the check.
type KeyFunc func(r *http.Request) string

// Middleware applies per-class policies to HTTP handlers.
type Middleware struct {
	store    Store
	policies map[Class]Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithPolicy sets the budget of one class. Classes without a policy are not
// limited.
func WithPolicy(class Class, p Policy) Option {
	return func(m *Middleware) {
		m.policies[class] = p
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		policies: make(map[Class]Policy),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit charges each request to key's budget for class.
func (m *Middleware) Limit(class Class, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy, ok := m.policies[class]
			id := key(r)
			if m.disabled || !ok || id == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, err := m.store.Allow(ctx, string(class)+":"+id, policy.Limit, policy.Window)
			if err != nil {
				m.metrics.IncrementStoreFailures()
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"request_id", requestcontext.RequestID(ctx),
					"class", string(class),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			m.metrics.ObserveDecision(string(class), result.Allowed)

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"class", string(class),
					"retry_after", result.RetryAfter,
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests for this session; try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
