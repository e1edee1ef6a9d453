// Package ratelimit bounds how often one wizard session may hit the write and
// commit endpoints, using a sliding window per session and endpoint class.
//
// Limits fail open: when the store cannot answer, the request proceeds and
// the failure is logged.
package ratelimit

import (
	"context"
	"time"
)

// Class groups endpoints that share a budget.
type Class string

const (
	// ClassWrite covers draft mutations: start, answers, verify, clear.
	ClassWrite Class = "write"
	// ClassCommit covers calls that reach the deeds backend.
	ClassCommit Class = "commit"
)

// Policy is the number of requests allowed per window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in whole seconds, zero when allowed.
	RetryAfter int
}

// Store counts requests per key in a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

func retryAfter(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
