package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deedwizard/internal/draft"
)

// HTTPProvider calls a property lookup API:
//
//	POST <url>  {"address","city","state","zip"}
//	200 {"parcelId"|"apn", "county", "legalDescription", "ownerNames", "address"}
type HTTPProvider struct {
	url    string
	client *http.Client
}

func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{url: url, client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProvider) ID() string {
	return "http"
}

type lookupResponse struct {
	Address          string   `json:"address"`
	ParcelID         string   `json:"parcelId"`
	APN              string   `json:"apn"`
	County           string   `json:"county"`
	LegalDescription string   `json:"legalDescription"`
	OwnerNames       []string `json:"ownerNames"`
}

func (p *HTTPProvider) Lookup(ctx context.Context, address AddressFacts) (draft.PropertyFacts, error) {
	if err := address.Validate(); err != nil {
		return draft.PropertyFacts{}, NewProviderError(ErrorBadData, p.ID(), "invalid address", err)
	}
	body, err := json.Marshal(address)
	if err != nil {
		return draft.PropertyFacts{}, NewProviderError(ErrorInternal, p.ID(), "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return draft.PropertyFacts{}, NewProviderError(ErrorInternal, p.ID(), "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return draft.PropertyFacts{}, NewProviderError(ErrorTimeout, p.ID(), "lookup timed out", err)
		}
		return draft.PropertyFacts{}, NewProviderError(ErrorProviderOutage, p.ID(), "lookup unreachable", err)
	}
	defer resp.Body.Close()

	if category, failed := categoryForStatus(resp.StatusCode); failed {
		return draft.PropertyFacts{}, NewProviderError(category, p.ID(), fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var out lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return draft.PropertyFacts{}, NewProviderError(ErrorBadData, p.ID(), "decode response", err)
	}
	parcel := strings.TrimSpace(out.ParcelID)
	if parcel == "" {
		parcel = strings.TrimSpace(out.APN)
	}
	if parcel == "" {
		return draft.PropertyFacts{}, NewProviderError(ErrorContractMismatch, p.ID(), "response has no parcel id", nil)
	}
	addr := strings.TrimSpace(out.Address)
	if addr == "" {
		addr = address.OneLine()
	}
	return draft.PropertyFacts{
		Address:          addr,
		ParcelID:         parcel,
		County:           strings.TrimSpace(out.County),
		LegalDescription: strings.TrimSpace(out.LegalDescription),
		OwnerNames:       out.OwnerNames,
	}, nil
}

func categoryForStatus(status int) (ErrorCategory, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusNotFound:
		return ErrorNotFound, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorAuthentication, true
	case status == http.StatusTooManyRequests:
		return ErrorRateLimited, true
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return ErrorTimeout, true
	case status >= 500:
		return ErrorProviderOutage, true
	default:
		return ErrorBadData, true
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
