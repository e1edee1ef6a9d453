// Package config loads service configuration from an optional YAML file and
// environment variables. Environment values always win so deployments can
// override a checked-in file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxGenerationAttempts caps document generation attempts, retries included.
const MaxGenerationAttempts = 3

// Draft backend kinds.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string `yaml:"addr"`
	BuildSHA string `yaml:"build_sha"`
	// StrictDocumentTypes rejects unrecognized document-type spellings instead
	// of falling back to the grant deed adapter.
	StrictDocumentTypes bool `yaml:"strict_document_types"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Draft selects where wizard drafts live.
type Draft struct {
	Backend        string        `yaml:"backend"`
	KeyPrefix      string        `yaml:"key_prefix"`
	HydrateTimeout time.Duration `yaml:"hydrate_timeout"`
	// IdleTTL is how long a session's cached drafts outlive their last use.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig configures the pgx pool.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// Deeds configures the external persistence and generation endpoints.
type Deeds struct {
	BaseURL       string        `yaml:"base_url"`
	GenerationURL string        `yaml:"generation_url"`
	Token         string        `yaml:"token"`
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	JWTIssuer     string        `yaml:"jwt_issuer"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Generation configures the bounded retry for document generation.
type Generation struct {
	MaxAttempts int             `yaml:"max_attempts"`
	Backoff     []time.Duration `yaml:"backoff"`
	MaxDelay    time.Duration   `yaml:"max_delay"`
}

// Partners configures the contact/partner directory.
type Partners struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Enrichment configures the property lookup provider. An empty URL selects
// the deterministic development provider.
type Enrichment struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Audit configures the session audit trail. Events go to PostgreSQL when the
// postgres draft backend is selected and stay in memory otherwise.
type Audit struct {
	BufferSize int `yaml:"buffer_size"`
}

// RateLimit bounds how often one session may call the write and commit
// endpoints.
type RateLimit struct {
	Enabled      bool          `yaml:"enabled"`
	WriteLimit   int           `yaml:"write_limit"`
	WriteWindow  time.Duration `yaml:"write_window"`
	CommitLimit  int           `yaml:"commit_limit"`
	CommitWindow time.Duration `yaml:"commit_window"`
}

// Flow points at an optional override of the embedded flow definitions.
type Flow struct {
	DefinitionsFile string `yaml:"definitions_file"`
}

// Config is the full service configuration.
type Config struct {
	Server     Server         `yaml:"server"`
	Logging    Logging        `yaml:"logging"`
	Draft      Draft          `yaml:"draft"`
	Redis      RedisConfig    `yaml:"redis"`
	Postgres   PostgresConfig `yaml:"postgres"`
	Deeds      Deeds          `yaml:"deeds"`
	Generation Generation     `yaml:"generation"`
	Partners   Partners       `yaml:"partners"`
	Enrichment Enrichment     `yaml:"enrichment"`
	Flow       Flow           `yaml:"flow"`
	Audit      Audit          `yaml:"audit"`
	RateLimit  RateLimit      `yaml:"rate_limit"`
}

// Default returns development defaults.
func Default() Config {
	return Config{
		Server:  Server{Addr: ":8080", BuildSHA: "dev"},
		Logging: Logging{Level: "info", Format: "json"},
		Draft:   Draft{Backend: BackendMemory, KeyPrefix: "wizard:draft", HydrateTimeout: 5 * time.Second, IdleTTL: 30 * time.Minute},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{MaxConns: 10},
		Deeds: Deeds{
			BaseURL:   "http://localhost:9090",
			JWTIssuer: "deedwizard",
			Timeout:   15 * time.Second,
		},
		Generation: Generation{
			MaxAttempts: 3,
			Backoff:     []time.Duration{250 * time.Millisecond, 750 * time.Millisecond, 2 * time.Second},
			MaxDelay:    2 * time.Second,
		},
		Partners:   Partners{CacheTTL: 5 * time.Minute},
		Enrichment: Enrichment{Timeout: 10 * time.Second},
		Audit:      Audit{BufferSize: 256},
		RateLimit: RateLimit{
			Enabled:      true,
			WriteLimit:   120,
			WriteWindow:  time.Minute,
			CommitLimit:  10,
			CommitWindow: time.Minute,
		},
	}
}

// Load builds a Config from defaults, the YAML file named by
// WIZARD_CONFIG_FILE (if any), then environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("WIZARD_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "WIZARD_ADDR")
	setString(&c.Server.BuildSHA, "WIZARD_BUILD_SHA")
	setBool(&c.Server.StrictDocumentTypes, "WIZARD_STRICT_DOCUMENT_TYPES")
	setString(&c.Logging.Level, "WIZARD_LOG_LEVEL")
	setString(&c.Logging.Format, "WIZARD_LOG_FORMAT")
	setString(&c.Draft.Backend, "WIZARD_DRAFT_BACKEND")
	setString(&c.Draft.KeyPrefix, "WIZARD_DRAFT_KEY_PREFIX")
	setDuration(&c.Draft.HydrateTimeout, "WIZARD_DRAFT_HYDRATE_TIMEOUT")
	setDuration(&c.Draft.IdleTTL, "WIZARD_DRAFT_IDLE_TTL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Postgres.URL, "DATABASE_URL")
	setString(&c.Deeds.BaseURL, "DEEDS_API_URL")
	setString(&c.Deeds.GenerationURL, "DEEDS_GENERATION_URL")
	setString(&c.Deeds.Token, "DEEDS_API_TOKEN")
	setString(&c.Deeds.JWTSigningKey, "DEEDS_JWT_SIGNING_KEY")
	setDuration(&c.Deeds.Timeout, "DEEDS_API_TIMEOUT")
	setInt(&c.Generation.MaxAttempts, "GENERATION_MAX_ATTEMPTS")
	setString(&c.Partners.URL, "PARTNERS_URL")
	setDuration(&c.Partners.CacheTTL, "PARTNERS_CACHE_TTL")
	setString(&c.Enrichment.URL, "ENRICHMENT_URL")
	setDuration(&c.Enrichment.Timeout, "ENRICHMENT_TIMEOUT")
	setString(&c.Flow.DefinitionsFile, "WIZARD_FLOW_DEFINITIONS")
	setInt(&c.Audit.BufferSize, "WIZARD_AUDIT_BUFFER")
	setBool(&c.RateLimit.Enabled, "WIZARD_RATE_LIMIT_ENABLED")
	setInt(&c.RateLimit.CommitLimit, "WIZARD_COMMIT_LIMIT")
	setInt(&c.RateLimit.WriteLimit, "WIZARD_WRITE_LIMIT")
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Draft.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("draft backend redis requires REDIS_URL"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("draft backend postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown draft backend %q", c.Draft.Backend))
	}
	if strings.TrimSpace(c.Draft.KeyPrefix) == "" {
		errs = append(errs, errors.New("draft key prefix cannot be empty"))
	}
	if c.Deeds.BaseURL == "" {
		errs = append(errs, errors.New("DEEDS_API_URL is required"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.WriteLimit < 1 || c.RateLimit.CommitLimit < 1) {
		errs = append(errs, errors.New("rate limits must be at least 1 when enabled"))
	}
	if c.Generation.MaxAttempts < 1 || c.Generation.MaxAttempts > MaxGenerationAttempts {
		errs = append(errs, fmt.Errorf("generation max attempts must be between 1 and %d", MaxGenerationAttempts))
	}
	if c.Draft.HydrateTimeout <= 0 {
		errs = append(errs, errors.New("draft hydrate timeout must be positive"))
	}
	if c.Draft.IdleTTL < 0 {
		errs = append(errs, errors.New("draft idle ttl cannot be negative"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
