// Package pgstore keeps wizard drafts in PostgreSQL. Changes are announced
// with NOTIFY inside the writing transaction, so listeners only hear about
// committed drafts.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deedwizard/pkg/platform/sentinel"
)

// DefaultChannel is the LISTEN/NOTIFY channel for changed draft keys.
const DefaultChannel = "wizard_draft_changes"

const schema = `
	CREATE TABLE IF NOT EXISTS wizard_drafts (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Backend is a PostgreSQL implementation of draft.Backend.
type Backend struct {
	pool    *pgxpool.Pool
	channel string
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

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

func New(pool *pgxpool.Pool, opts ...Option) *Backend {
	b := &Backend{
		pool:    pool,
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

// Migrate creates the drafts table if it does not exist.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate wizard_drafts: %w", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.pool.QueryRow(ctx, `SELECT value FROM wizard_drafts WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return value, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO wizard_drafts (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	return b.inTx(ctx, key, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, key, value); err != nil {
			return fmt.Errorf("upsert draft: %w", err)
		}
		return nil
	})
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.inTx(ctx, key, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM wizard_drafts WHERE key = $1`, key); err != nil {
			return fmt.Errorf("delete draft: %w", err)
		}
		return nil
	})
}

// inTx runs fn and notifies listeners of key in the same transaction.
func (b *Backend) inTx(ctx context.Context, key string, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, b.channel, key); err != nil {
			return fmt.Errorf("notify draft change: %w", err)
		}
		return nil
	})
}

// Watch holds one pooled connection in LISTEN until ctx ends.
func (b *Backend) Watch(ctx context.Context) (<-chan string, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{b.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen for draft changes: %w", err)
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer func() {
			// The connection goes back to the pool; drop the subscription first.
			_, _ = conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *")
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Warn("draft change listener stopped", "channel", b.channel, "error", err)
				}
				return
			}
			select {
			case out <- n.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
