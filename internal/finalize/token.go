package finalize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenSource yields the bearer token for outbound calls. An empty token
// means the request goes out without an Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// ServiceClaims are the claims of a minted service token.
type ServiceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTSource mints short-lived HS256 service tokens and reuses each one
// until it is close to expiry.
type JWTSource struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	cached  string
	expires time.Time
}

// JWTOption configures a JWTSource.
type JWTOption func(*JWTSource)

func WithAudience(audience string) JWTOption {
	return func(s *JWTSource) { s.audience = audience }
}

func WithTTL(ttl time.Duration) JWTOption {
	return func(s *JWTSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithTokenClock(now func() time.Time) JWTOption {
	return func(s *JWTSource) { s.now = now }
}

const (
	defaultTokenTTL = 5 * time.Minute
	refreshMargin   = 30 * time.Second
	deedsScope      = "deeds:write"
	defaultAudience = "deeds-api"
)

func NewJWTSource(signingKey, issuer string, opts ...JWTOption) *JWTSource {
	s := &JWTSource{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   defaultAudience,
		ttl:        defaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JWTSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != "" && now.Add(refreshMargin).Before(s.expires) {
		return s.cached, nil
	}

	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ServiceClaims{
		Scope: deedsScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	s.cached = signed
	s.expires = expires
	return signed, nil
}
