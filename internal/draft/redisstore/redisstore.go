// Package redisstore keeps wizard drafts in Redis and announces every change
// on a pub/sub channel so other instances can refresh their caches.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"deedwizard/pkg/platform/sentinel"
)

// DefaultChannel carries the keys of changed drafts.
const DefaultChannel = "wizard:draft:changes"

// Backend is a Redis implementation of draft.Backend.
type Backend struct {
	client  *redis.Client
	channel string
	ttl     time.Duration
	logger  *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

func WithChannel(channel string) Option {
	return func(b *Backend) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithTTL expires idle drafts. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New constructs a Redis-backed draft backend.
func New(client *redis.Client, opts ...Option) *Backend {
	b := &Backend{
		client:  client,
		channel: DefaultChannel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return v, nil
}

// Set stores the draft and publishes its key in one MULTI block.
func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, b.ttl)
		pipe.Publish(ctx, b.channel, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set draft: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Publish(ctx, b.channel, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Watch subscribes to the change channel. The subscription is confirmed
// before Watch returns so no change published afterwards is missed.
func (b *Backend) Watch(ctx context.Context) (<-chan string, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to draft changes: %w", err)
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					b.logger.Warn("draft change subscription closed", "channel", b.channel)
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
