package draft

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"deedwizard/internal/draft/metrics"
	"deedwizard/pkg/domain"
	dErrors "deedwizard/pkg/domain-errors"
	"deedwizard/pkg/platform/sentinel"
)

const (
	// DefaultKeyPrefix namespaces draft keys in shared backends.
	DefaultKeyPrefix = "wizard:draft"
	// DefaultHydrateTimeout bounds the first load of a session's drafts.
	DefaultHydrateTimeout = 5 * time.Second
	// DefaultIdleTTL is how long an unused session store stays cached.
	DefaultIdleTTL = 30 * time.Minute
)

var (
	errUnreadableDraft = errors.New("unreadable draft")

	// ErrDocumentTypeConflict is returned by Start when the stored draft was
	// begun for another document type and still holds answers.
	ErrDocumentTypeConflict = dErrors.New(dErrors.CodeConflict, "draft belongs to another document type; clear it first")
	// ErrNotHydrated is returned by operations that must not run before the
	// store has loaded its drafts.
	ErrNotHydrated = dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeUnavailable, "draft store is not hydrated yet")
)

// State is the hydration lifecycle of a Store.
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateHydrated
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateHydrated:
		return "hydrated"
	default:
		return "uninitialized"
	}
}

// Change describes a draft mutation delivered to subscribers.
type Change struct {
	Mode    domain.Mode `json:"mode"`
	Draft   Draft       `json:"draft"`
	Cleared bool        `json:"cleared"`
	// Remote is set when the change came from another process through the
	// backend watch rather than from this store.
	Remote bool `json:"remote"`
}

type options struct {
	logger         *slog.Logger
	metrics        *metrics.Metrics
	prefix         string
	now            func() time.Time
	hydrateTimeout time.Duration
	idleTTL        time.Duration
}

// Option configures a Store or Manager.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithKeyPrefix overrides DefaultKeyPrefix. Blank prefixes are ignored.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithClock overrides time.Now for LastModified stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithHydrateTimeout bounds the backend reads a Manager runs when it first
// hands out a session's store.
func WithHydrateTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.hydrateTimeout = d
		}
	}
}

// WithIdleTTL sets how long a Manager keeps a session's store after its last
// use. Zero disables eviction.
func WithIdleTTL(d time.Duration) Option {
	return func(o *options) {
		o.idleTTL = d
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:         slog.Default(),
		prefix:         DefaultKeyPrefix,
		now:            time.Now,
		hydrateTimeout: DefaultHydrateTimeout,
		idleTTL:        DefaultIdleTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Key returns the backend key of one session mode.
func Key(prefix string, session domain.SessionID, mode domain.Mode) string {
	return prefix + ":" + session.String() + ":" + mode.String()
}

// Store caches the drafts of one session, one per mode.
type Store struct {
	backend Backend
	session domain.SessionID
	opts    options

	mu     sync.RWMutex
	state  State
	drafts map[domain.Mode]Draft
	raw    map[domain.Mode][]byte
	// unloaded marks modes whose backend read failed. Their cached draft is a
	// placeholder, so writes are refused until a reload succeeds.
	unloaded map[domain.Mode]bool

	subMu   sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

// NewStore creates an unhydrated store. Call Hydrate before use.
func NewStore(backend Backend, session domain.SessionID, opts ...Option) *Store {
	return &Store{
		backend:  backend,
		session:  session,
		opts:     buildOptions(opts),
		drafts:   make(map[domain.Mode]Draft),
		raw:      make(map[domain.Mode][]byte),
		unloaded: make(map[domain.Mode]bool),
		subs:     make(map[int]chan Change),
	}
}

func (s *Store) Session() domain.SessionID {
	return s.session
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) key(mode domain.Mode) string {
	return Key(s.opts.prefix, s.session, mode)
}

// Hydrate loads every mode's draft concurrently. The store always ends
// hydrated. A mode whose backend read failed reads as empty but refuses writes
// until Reload succeeds; an unreadable stored value is treated as no draft.
// Calls after the first are no-ops.
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return
	}
	s.state = StateHydrating
	s.mu.Unlock()

	start := time.Now()
	type loaded struct {
		draft  Draft
		raw    []byte
		failed bool
	}
	modes := domain.AllModes()
	results := make([]loaded, len(modes))

	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range modes {
		g.Go(func() error {
			d, raw, err := s.load(gctx, mode)
			if err != nil {
				results[i] = loaded{draft: Empty(), failed: !errors.Is(err, errUnreadableDraft)}
				return nil
			}
			results[i] = loaded{draft: d, raw: raw}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	for i, mode := range modes {
		s.drafts[mode] = results[i].draft
		s.raw[mode] = results[i].raw
		if results[i].failed {
			s.unloaded[mode] = true
		}
	}
	s.state = StateHydrated
	s.mu.Unlock()

	s.opts.metrics.ObserveHydration(start)
	s.opts.logger.DebugContext(ctx, "draft store hydrated",
		"session", s.session.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// load reads one key. A missing key is an empty draft with no error.
func (s *Store) load(ctx context.Context, mode domain.Mode) (Draft, []byte, error) {
	raw, err := s.backend.Get(ctx, s.key(mode))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Empty(), nil, nil
		}
		s.opts.metrics.IncrementLoadFailures()
		s.opts.logger.WarnContext(ctx, "failed to read draft",
			"session", s.session.String(),
			"mode", mode.String(),
			"error", err,
		)
		return Draft{}, nil, err
	}
	d, err := Decode(raw)
	if err != nil {
		s.opts.metrics.IncrementLoadFailures()
		s.opts.logger.WarnContext(ctx, "discarding unreadable draft",
			"session", s.session.String(),
			"mode", mode.String(),
			"error", err,
		)
		return Draft{}, nil, errors.Join(errUnreadableDraft, err)
	}
	return d, raw, nil
}

// Read returns a copy of the mode's draft, or an empty draft when nothing is
// stored or the store has not hydrated yet.
func (s *Store) Read(mode domain.Mode) Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateHydrated {
		return Empty()
	}
	d, ok := s.drafts[mode]
	if !ok {
		return Empty()
	}
	return d.Clone()
}

// IsPropertyVerified reports whether the property was confirmed by lookup.
func (s *Store) IsPropertyVerified(mode domain.Mode) bool {
	return s.Read(mode).PropertyVerified()
}

// Write merges patch into the mode's answers and persists the result. It
// reports whether the write was applied. Writes before hydration and writes
// the backend rejects are dropped and leave the cache untouched.
func (s *Store) Write(ctx context.Context, mode domain.Mode, patch Answers) bool {
	return s.update(ctx, mode, func(d *Draft) {
		d.Answers = d.Answers.Merge(patch)
	})
}

// MarkVerified records verified property facts and tags the draft as verified.
func (s *Store) MarkVerified(ctx context.Context, mode domain.Mode, facts PropertyFacts) bool {
	return s.update(ctx, mode, func(d *Draft) {
		f := facts.Clone()
		d.VerifiedProperty = &f
		d.Answers = d.Answers.Merge(Answers{FieldPropertyVerified: true})
	})
}

// Start binds the mode's draft to a document type on first visit. Returning to
// a draft of the same type (legacy spellings included) is a no-op.
func (s *Store) Start(ctx context.Context, mode domain.Mode, docType domain.DocumentType) error {
	if s.State() != StateHydrated {
		return ErrNotHydrated
	}
	current := s.Read(mode)
	if current.DocumentType != "" {
		if normalized, ok := domain.NormalizeDocumentType(string(current.DocumentType)); ok && normalized == docType {
			return nil
		}
		if len(current.Answers) > 0 {
			return ErrDocumentTypeConflict
		}
	}
	if !s.update(ctx, mode, func(d *Draft) { d.DocumentType = docType }) {
		return dErrors.New(dErrors.CodeUnavailable, "failed to persist draft")
	}
	return nil
}

// Loaded reports whether the mode's draft was read from the backend. It is
// false before hydration and after a failed read until Reload succeeds.
func (s *Store) Loaded(mode domain.Mode) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateHydrated && !s.unloaded[mode]
}

// Reload retries the backend read of every mode whose load failed.
func (s *Store) Reload(ctx context.Context) {
	if s.State() != StateHydrated {
		return
	}
	for _, mode := range domain.AllModes() {
		s.mu.RLock()
		failed := s.unloaded[mode]
		s.mu.RUnlock()
		if failed {
			s.Refresh(ctx, mode)
		}
	}
}

func (s *Store) update(ctx context.Context, mode domain.Mode, mutate func(*Draft)) bool {
	s.mu.Lock()
	if s.state != StateHydrated || s.unloaded[mode] {
		s.mu.Unlock()
		s.opts.metrics.ObserveWrite(mode.String(), metrics.WriteDroppedUnhydrated)
		s.opts.logger.DebugContext(ctx, "dropping draft write before the draft was loaded",
			"session", s.session.String(),
			"mode", mode.String(),
		)
		return false
	}

	next := s.drafts[mode].Clone()
	mutate(&next)
	next.LastModified = s.opts.now().UTC()

	raw, err := Encode(next)
	if err != nil {
		s.mu.Unlock()
		s.opts.metrics.ObserveWrite(mode.String(), metrics.WriteDroppedEncodeError)
		s.opts.logger.WarnContext(ctx, "failed to encode draft",
			"session", s.session.String(),
			"mode", mode.String(),
			"error", err,
		)
		return false
	}
	if err := s.backend.Set(ctx, s.key(mode), raw); err != nil {
		s.mu.Unlock()
		s.opts.metrics.ObserveWrite(mode.String(), metrics.WriteDroppedStorage)
		s.opts.logger.WarnContext(ctx, "failed to persist draft",
			"session", s.session.String(),
			"mode", mode.String(),
			"error", err,
		)
		return false
	}
	s.drafts[mode] = next
	s.raw[mode] = raw
	s.mu.Unlock()

	s.opts.metrics.ObserveWrite(mode.String(), metrics.WriteApplied)
	s.publish(Change{Mode: mode, Draft: next.Clone()})
	return true
}

// Clear removes the mode's draft from cache and backend.
func (s *Store) Clear(ctx context.Context, mode domain.Mode) bool {
	s.mu.Lock()
	if s.state != StateHydrated {
		s.mu.Unlock()
		return false
	}
	if err := s.backend.Delete(ctx, s.key(mode)); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.mu.Unlock()
		s.opts.logger.WarnContext(ctx, "failed to clear draft",
			"session", s.session.String(),
			"mode", mode.String(),
			"error", err,
		)
		return false
	}
	s.drafts[mode] = Empty()
	s.raw[mode] = nil
	delete(s.unloaded, mode)
	s.mu.Unlock()

	s.publish(Change{Mode: mode, Draft: Empty(), Cleared: true})
	return true
}

// Refresh reloads one mode from the backend after a change notification. Our
// own writes come back through the watch too; identical bytes are ignored.
// A failed reload keeps the cached draft. A successful one makes a mode whose
// hydration read failed writable again.
func (s *Store) Refresh(ctx context.Context, mode domain.Mode) {
	if s.State() != StateHydrated {
		return
	}
	d, raw, err := s.load(ctx, mode)
	if err != nil {
		if errors.Is(err, errUnreadableDraft) {
			s.mu.Lock()
			delete(s.unloaded, mode)
			s.mu.Unlock()
		}
		return
	}

	s.mu.Lock()
	delete(s.unloaded, mode)
	if bytes.Equal(s.raw[mode], raw) {
		s.mu.Unlock()
		return
	}
	s.drafts[mode] = d
	s.raw[mode] = raw
	s.mu.Unlock()

	s.opts.metrics.IncrementRemoteRefreshes()
	s.publish(Change{Mode: mode, Draft: d.Clone(), Cleared: raw == nil, Remote: true})
}

// Subscribe returns a channel of changes and a cancel func that closes it.
// Slow subscribers miss changes rather than block writers.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}
