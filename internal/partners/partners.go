// Package partners lists the contacts (title companies, escrow officers,
// requesters) offered as suggestions on selectable wizard steps.
package partners

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	dErrors "deedwizard/pkg/domain-errors"
)

// Partner is one directory entry.
type Partner struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Directory lists partners.
type Directory interface {
	List(ctx context.Context) ([]Partner, error)
}

// StaticDirectory serves a fixed list.
type StaticDirectory []Partner

func (d StaticDirectory) List(context.Context) ([]Partner, error) {
	return slices.Clone(d), nil
}

// HTTPDirectory fetches the list from a JSON endpoint and caches it for a TTL.
// When a refresh fails and a previous list exists, the stale list is served.
type HTTPDirectory struct {
	url    string
	ttl    time.Duration
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	cached    []Partner
	fetchedAt time.Time
}

// Option configures an HTTPDirectory.
type Option func(*HTTPDirectory)

func WithHTTPClient(c *http.Client) Option {
	return func(d *HTTPDirectory) {
		d.client = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *HTTPDirectory) {
		d.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *HTTPDirectory) {
		d.now = now
	}
}

func NewHTTPDirectory(url string, ttl time.Duration, opts ...Option) *HTTPDirectory {
	d := &HTTPDirectory{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *HTTPDirectory) List(ctx context.Context) ([]Partner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && d.now().Sub(d.fetchedAt) < d.ttl {
		return slices.Clone(d.cached), nil
	}

	list, err := d.fetch(ctx)
	if err != nil {
		if d.cached != nil {
			d.logger.WarnContext(ctx, "partner directory refresh failed; serving stale list",
				"error", err,
				"age", d.now().Sub(d.fetchedAt).String(),
			)
			return slices.Clone(d.cached), nil
		}
		return nil, err
	}
	d.cached = list
	d.fetchedAt = d.now()
	return slices.Clone(list), nil
}

// listResponse accepts either a bare array or {"items": [...]}.
type listResponse struct {
	Items []Partner `json:"items"`
}

func (d *HTTPDirectory) fetch(ctx context.Context) ([]Partner, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build partner request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "partner directory unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "read partner directory")
	}
	if resp.StatusCode/100 != 2 {
		return nil, dErrors.New(dErrors.CodeUpstream, fmt.Sprintf("partner directory returned %d", resp.StatusCode))
	}

	var list []Partner
	if trimmed := strings.TrimSpace(string(body)); strings.HasPrefix(trimmed, "{") {
		var wrapped listResponse
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "decode partner directory")
		}
		list = wrapped.Items
	} else if err := json.Unmarshal(body, &list); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "decode partner directory")
	}
	return clean(list), nil
}

// clean drops entries without a label and fills a missing id from the label.
func clean(list []Partner) []Partner {
	out := make([]Partner, 0, len(list))
	for _, p := range list {
		p.Label = strings.TrimSpace(p.Label)
		if p.Label == "" {
			continue
		}
		if p.ID = strings.TrimSpace(p.ID); p.ID == "" {
			p.ID = p.Label
		}
		out = append(out, p)
	}
	return out
}
