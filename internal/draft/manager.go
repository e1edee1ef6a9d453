package draft

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deedwizard/pkg/domain"
)

// Manager hands out one hydrated Store per session and fans backend change
// notifications out to the owning store. Stores unused for longer than the
// idle TTL are evicted from Run.
type Manager struct {
	backend Backend
	opts    options
	extra   []Option

	mu     sync.Mutex
	stores map[domain.SessionID]*entry
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

func NewManager(backend Backend, opts ...Option) *Manager {
	return &Manager{
		backend: backend,
		opts:    buildOptions(opts),
		extra:   opts,
		stores:  make(map[domain.SessionID]*entry),
	}
}

// Session returns the session's store, creating and hydrating it on first use.
// Backend reads run detached from ctx cancellation under the hydrate timeout,
// so a dropped request cannot leave the store with a failed load. Modes whose
// earlier load failed are retried.
func (m *Manager) Session(ctx context.Context, id domain.SessionID) *Store {
	m.mu.Lock()
	e, ok := m.stores[id]
	if !ok {
		e = &entry{store: NewStore(m.backend, id, m.extra...)}
		m.stores[id] = e
	}
	e.lastSeen = m.opts.now()
	st := e.store
	m.mu.Unlock()

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.hydrateTimeout)
	defer cancel()
	st.Hydrate(hctx)
	st.Reload(hctx)
	return st
}

// Lookup returns the session's store without creating one.
func (m *Manager) Lookup(id domain.SessionID) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.stores[id]
	if !ok {
		return nil, false
	}
	return e.store, true
}

// Len returns the number of cached session stores.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// EvictIdle drops stores unused since before now minus the idle TTL. Stores
// with live subscribers are kept. It returns the number evicted.
func (m *Manager) EvictIdle(now time.Time) int {
	if m.opts.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.opts.idleTTL)

	m.mu.Lock()
	evicted := 0
	for id, e := range m.stores {
		if e.lastSeen.After(cutoff) || e.store.Subscribers() > 0 {
			continue
		}
		delete(m.stores, id)
		evicted++
	}
	m.mu.Unlock()

	m.opts.metrics.AddEvictions(evicted)
	return evicted
}

// Run consumes the backend watch until ctx ends, refreshing the store that
// owns each changed key, and sweeps idle stores. Keys of sessions with no live
// store are ignored.
func (m *Manager) Run(ctx context.Context) error {
	changes, err := m.backend.Watch(ctx)
	if err != nil {
		return err
	}
	m.opts.logger.InfoContext(ctx, "draft watch started", "prefix", m.opts.prefix)

	var sweep <-chan time.Time
	if m.opts.idleTTL > 0 {
		ticker := time.NewTicker(max(m.opts.idleTTL/4, time.Second))
		defer ticker.Stop()
		sweep = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweep:
			if n := m.EvictIdle(m.opts.now()); n > 0 {
				m.opts.logger.DebugContext(ctx, "evicted idle draft stores", "count", n)
			}
		case key, ok := <-changes:
			if !ok {
				return nil
			}
			session, mode, ok := ParseKey(m.opts.prefix, key)
			if !ok {
				continue
			}
			if st, found := m.Lookup(session); found {
				st.Refresh(ctx, mode)
			}
		}
	}
}

// ParseKey splits a key produced by Key. It reports false for foreign keys.
func ParseKey(prefix, key string) (domain.SessionID, domain.Mode, bool) {
	rest, ok := strings.CutPrefix(key, prefix+":")
	if !ok {
		return domain.SessionID{}, "", false
	}
	sessionPart, modePart, ok := strings.Cut(rest, ":")
	if !ok {
		return domain.SessionID{}, "", false
	}
	u, err := uuid.Parse(sessionPart)
	if err != nil {
		return domain.SessionID{}, "", false
	}
	mode := domain.Mode(modePart)
	if !mode.IsValid() {
		return domain.SessionID{}, "", false
	}
	return domain.SessionID(u), mode, true
}
