package finalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"deedwizard/pkg/domain"
)

const maxResponseBytes = 10 << 20

// DeedRef identifies a committed deed.
type DeedRef struct {
	ID           domain.DeedID       `json:"id"`
	DocumentType domain.DocumentType `json:"documentType"`
}

// Document is a rendered deed returned by the generation endpoint.
type Document struct {
	ContentType string
	Body        []byte
}

// StatusError is a non-2xx response. Message is the backend's own
// explanation when it sent one.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// ServerError reports whether the failure is on the backend side.
func (e *StatusError) ServerError() bool {
	return e.StatusCode >= 500
}

// Client talks to the deeds persistence and generation API.
//
//	POST <base>/deeds            -> 2xx {"id"} (or deedId, deed_id, data.id)
//	POST <generation URL>        -> 2xx document bytes
type Client struct {
	baseURL       string
	generationURL string
	http          *http.Client
	tokens        TokenSource
	logger        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithGenerationURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.generationURL = url
		}
	}
}

func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) { c.tokens = ts }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	base := strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL:       base,
		generationURL: base + "/deeds/generate",
		http:          &http.Client{Timeout: timeout},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateDeed commits the payload. It never retries.
func (c *Client) CreateDeed(ctx context.Context, p Payload, meta Meta) (DeedRef, error) {
	resp, err := c.post(ctx, c.baseURL+"/deeds", p, meta)
	if err != nil {
		return DeedRef{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return DeedRef{}, fmt.Errorf("read deeds response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DeedRef{}, &StatusError{StatusCode: resp.StatusCode, Message: backendMessage(body)}
	}
	id, err := deedID(body)
	if err != nil {
		return DeedRef{}, err
	}
	return DeedRef{ID: id, DocumentType: p.DocumentType}, nil
}

// GenerateDocument asks the backend to render the deed. A single call; the
// Generator owns retries.
func (c *Client) GenerateDocument(ctx context.Context, p Payload, meta Meta) (Document, error) {
	resp, err := c.post(ctx, c.generationURL, p, meta)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Document{}, &StatusError{StatusCode: resp.StatusCode, Message: backendMessage(body)}
	}
	return Document{ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

func (c *Client) post(ctx context.Context, url string, p Payload, meta Meta) (*http.Response, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = meta.Header()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("service token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "deeds request failed",
			"url", url,
			"request_id", meta.RequestID,
			"error", err,
		)
		return nil, fmt.Errorf("deeds request: %w", err)
	}
	return resp, nil
}

// deedID accepts every id spelling the backend has used.
func deedID(body []byte) (domain.DeedID, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode deeds response: %w", err)
	}
	for _, key := range []string{"id", "deedId", "deed_id"} {
		if id := idString(doc[key]); id != "" {
			return domain.DeedID(id), nil
		}
	}
	if data, ok := doc["data"].(map[string]any); ok {
		if id := idString(data["id"]); id != "" {
			return domain.DeedID(id), nil
		}
	}
	return "", fmt.Errorf("deeds response carries no id")
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// backendMessage pulls a human readable message out of an error body.
func backendMessage(body []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil {
		for _, key := range []string{"message", "error_description", "error", "detail"} {
			if msg, ok := doc[key].(string); ok && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
