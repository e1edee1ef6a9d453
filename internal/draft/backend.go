package draft

import (
	"context"
	"sync"

	"deedwizard/pkg/platform/sentinel"
)

// Backend is the key/value medium behind a Store. Implementations must return
// sentinel.ErrNotFound (optionally wrapped) from Get for a missing key, and
// deliver changed keys on Watch channels, including their own writes.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Watch(ctx context.Context) (<-chan string, error)
}

// watchBuffer bounds undelivered change notifications per watcher. Slow
// watchers miss notifications rather than blocking writers.
const watchBuffer = 64

// MemoryBackend keeps drafts in process memory. It is the default backend for
// development and the substitute used in tests.
type MemoryBackend struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers map[chan string]struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values:   make(map[string][]byte),
		watchers: make(map[chan string]struct{}),
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.values[key] = append([]byte(nil), value...)
	b.mu.Unlock()
	b.notify(key)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.values, key)
	b.mu.Unlock()
	b.notify(key)
	return nil
}

// Watch streams changed keys until ctx ends.
func (b *MemoryBackend) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, watchBuffer)
	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

func (b *MemoryBackend) notify(key string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.watchers {
		select {
		case ch <- key:
		default:
		}
	}
}
