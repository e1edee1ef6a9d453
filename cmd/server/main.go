package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	draftmetrics "deedwizard/internal/draft/metrics"
	"deedwizard/internal/draft/pgstore"
	"deedwizard/internal/draft/redisstore"
	"deedwizard/internal/enrichment"
	"deedwizard/internal/finalize"
	finalizemetrics "deedwizard/internal/finalize/metrics"
	"deedwizard/internal/flow"
	"deedwizard/internal/partners"
	"deedwizard/internal/platform/config"
	"deedwizard/internal/platform/httpserver"
	"deedwizard/internal/platform/logger"
	"deedwizard/internal/platform/metrics"
	"deedwizard/internal/platform/postgres"
	"deedwizard/internal/platform/redis"
	"deedwizard/internal/ratelimit"
	ratelimitmetrics "deedwizard/internal/ratelimit/metrics"
	"deedwizard/internal/wizard"
	"deedwizard/internal/wizard/handler"
	wizardmetrics "deedwizard/internal/wizard/metrics"
	audit "deedwizard/pkg/platform/audit"
	"deedwizard/pkg/platform/audit/publisher"
	auditmemory "deedwizard/pkg/platform/audit/store/memory"
	auditpostgres "deedwizard/pkg/platform/audit/store/postgres"
	"deedwizard/pkg/platform/circuit"
	"deedwizard/pkg/platform/retry"
)

// main wires the wizard service and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	reg := metrics.New()

	in, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	store, err := auditStore(ctx, in)
	if err != nil {
		return err
	}
	auditor := publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
		publisher.WithMetrics(reg),
	)
	defer auditor.Close()

	drafts := draft.NewManager(in.backend,
		draft.WithLogger(log),
		draft.WithMetrics(draftmetrics.New(reg)),
		draft.WithKeyPrefix(cfg.Draft.KeyPrefix),
		draft.WithHydrateTimeout(cfg.Draft.HydrateTimeout),
		draft.WithIdleTTL(cfg.Draft.IdleTTL),
	)

	registry := flow.DefaultRegistry()
	if cfg.Flow.DefinitionsFile != "" {
		registry, err = flow.NewRegistry(cfg.Flow.DefinitionsFile)
		if err != nil {
			return fmt.Errorf("load flow definitions: %w", err)
		}
	}

	client := finalize.NewClient(cfg.Deeds.BaseURL, cfg.Deeds.Timeout,
		finalize.WithGenerationURL(cfg.Deeds.GenerationURL),
		finalize.WithTokenSource(tokenSource(cfg.Deeds)),
		finalize.WithClientLogger(log),
	)
	finalizeMetrics := finalizemetrics.New(reg)
	finalizer := finalize.New(client,
		finalize.WithLogger(log),
		finalize.WithMetrics(finalizeMetrics),
	)
	generator := finalize.NewGenerator(client, retryConfig(cfg.Generation),
		finalize.WithLogger(log),
		finalize.WithMetrics(finalizeMetrics),
	)

	service, err := wizard.New(drafts, registry, finalizer, generator,
		wizard.WithLogger(log),
		wizard.WithMetrics(wizardmetrics.New(reg)),
		wizard.WithSelector(canonical.NewSelector(
			canonical.WithLogger(log),
			canonical.WithMetrics(canonical.NewMetrics(reg)),
		)),
		wizard.WithStrictDocumentTypes(cfg.Server.StrictDocumentTypes),
		wizard.WithBuildSHA(cfg.Server.BuildSHA),
		wizard.WithEnrichment(enrichmentProvider(cfg.Enrichment, log)),
		wizard.WithPartners(partnerDirectory(cfg.Partners, log)),
		wizard.WithAuditor(auditor),
	)
	if err != nil {
		return fmt.Errorf("build wizard service: %w", err)
	}

	h := handler.New(service, log,
		handler.WithRateLimiter(rateLimiter(cfg.RateLimit, in, reg, log)),
	)
	router := handler.NewRouter(h, log, metrics.NewHTTP(reg), reg.Handler())
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := drafts.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("draft watch: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting deed wizard", "addr", cfg.Server.Addr, "draft_backend", cfg.Draft.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped cleanly")
		return nil
	})
	return g.Wait()
}

// infra holds the connections the configured draft backend needs. At most
// one of redis and pool is set.
type infra struct {
	backend draft.Backend
	redis   *redis.Client
	pool    *pgxpool.Pool
}

func (i infra) close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.pool != nil {
		i.pool.Close()
	}
}

// openBackend connects the configured draft backend.
func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (infra, error) {
	switch cfg.Draft.Backend {
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return infra{}, fmt.Errorf("connect redis: %w", err)
		}
		return infra{backend: redisstore.New(client.Client, redisstore.WithLogger(log)), redis: client}, nil
	case config.BackendPostgres:
		pool, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return infra{}, fmt.Errorf("connect postgres: %w", err)
		}
		backend := pgstore.New(pool, pgstore.WithLogger(log))
		if err := backend.Migrate(ctx); err != nil {
			pool.Close()
			return infra{}, fmt.Errorf("migrate drafts table: %w", err)
		}
		return infra{backend: backend, pool: pool}, nil
	default:
		return infra{backend: draft.NewMemoryBackend()}, nil
	}
}

func auditStore(ctx context.Context, in infra) (audit.Store, error) {
	if in.pool == nil {
		return auditmemory.NewInMemoryStore(), nil
	}
	store := auditpostgres.New(in.pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate audit table: %w", err)
	}
	return store, nil
}

func rateLimiter(cfg config.RateLimit, in infra, reg prometheus.Registerer, log *slog.Logger) *ratelimit.Middleware {
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if in.redis != nil {
		store = ratelimit.NewRedisStore(in.redis.Client)
	}
	return ratelimit.New(store, log,
		ratelimit.WithPolicy(ratelimit.ClassWrite, ratelimit.Policy{Limit: cfg.WriteLimit, Window: cfg.WriteWindow}),
		ratelimit.WithPolicy(ratelimit.ClassCommit, ratelimit.Policy{Limit: cfg.CommitLimit, Window: cfg.CommitWindow}),
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)),
		ratelimit.WithDisabled(!cfg.Enabled),
	)
}

func tokenSource(cfg config.Deeds) finalize.TokenSource {
	if cfg.JWTSigningKey != "" {
		return finalize.NewJWTSource(cfg.JWTSigningKey, cfg.JWTIssuer)
	}
	return finalize.StaticToken(cfg.Token)
}

func retryConfig(cfg config.Generation) retry.Config {
	return retry.Config{
		MaxAttempts: cfg.MaxAttempts,
		Schedule:    cfg.Backoff,
		MaxDelay:    cfg.MaxDelay,
	}
}

func enrichmentProvider(cfg config.Enrichment, log *slog.Logger) enrichment.Provider {
	if cfg.URL == "" {
		return enrichment.StaticProvider{}
	}
	breaker := circuit.New("enrichment",
		circuit.WithFailureThreshold(5),
		circuit.WithSuccessThreshold(2),
		circuit.WithCooldown(30*time.Second),
	)
	return enrichment.NewGuardedProvider(enrichment.NewHTTPProvider(cfg.URL, cfg.Timeout), breaker, log)
}

func partnerDirectory(cfg config.Partners, log *slog.Logger) partners.Directory {
	if cfg.URL == "" {
		return partners.StaticDirectory{}
	}
	return partners.NewHTTPDirectory(cfg.URL, cfg.CacheTTL, partners.WithLogger(log))
}
