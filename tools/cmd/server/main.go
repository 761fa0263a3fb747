package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/analytics"
	"github.com/patrickwarner/trustsafety/internal/api"
	"github.com/patrickwarner/trustsafety/internal/classifier"
	"github.com/patrickwarner/trustsafety/internal/config"
	"github.com/patrickwarner/trustsafety/internal/content"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/escalation"
	"github.com/patrickwarner/trustsafety/internal/geoip"
	"github.com/patrickwarner/trustsafety/internal/moderation"
	"github.com/patrickwarner/trustsafety/internal/notify"
	"github.com/patrickwarner/trustsafety/internal/observability"
	"github.com/patrickwarner/trustsafety/internal/prefilter"
	"github.com/patrickwarner/trustsafety/internal/ratelimit"
	"github.com/patrickwarner/trustsafety/internal/reports"
	"github.com/patrickwarner/trustsafety/internal/screening"
	"github.com/patrickwarner/trustsafety/internal/suspension"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TokenSecret == "" {
		return errors.New("TOKEN_SECRET must be set")
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, observability.TracingOptions{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.TempoEndpoint,
			SampleRate:  cfg.TracingSampleRate,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional: without it limits, idempotency keys and
	// notifications stay in-process.
	redisStore, err := db.InitRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, using in-process fallbacks", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	} else {
		defer redisStore.Close()
	}

	var analyticsSvc analytics.AnalyticsService
	if cfg.ClickHouseDSN != "" {
		ch, err := analytics.InitClickHouse(ctx, cfg.ClickHouseDSN, logger)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer ch.Close()
		analyticsSvc = ch
	}

	var geo *geoip.Resolver
	if cfg.GeoIPDB != "" {
		geo, err = geoip.Open(cfg.GeoIPDB)
		if err != nil {
			return fmt.Errorf("failed to load geoip db: %w", err)
		}
		defer func() { _ = geo.Close() }()
	}

	limits, err := ratelimit.ParseLimits(cfg.RateLimits, ratelimit.DefaultLimits())
	if err != nil {
		return fmt.Errorf("parse RATE_LIMITS: %w", err)
	}
	var limiter ratelimit.Limiter
	switch {
	case !cfg.RateLimitEnabled:
		limiter = ratelimit.AllowAll{}
	case redisStore != nil:
		limiter = ratelimit.NewRedisLimiter(redisStore, limits, metricsRegistry, logger)
	default:
		limiter = ratelimit.NewMemoryLimiter(limits, cfg.RateLimitMaxKeys, metricsRegistry)
	}

	tiers, err := escalation.ParseTiers(cfg.EscalationSuspendTiers)
	if err != nil {
		return fmt.Errorf("parse ESCALATION_SUSPEND_TIERS: %w", err)
	}
	policy, err := escalation.NewPolicy(tiers, cfg.EscalationBanThreshold)
	if err != nil {
		return fmt.Errorf("escalation policy: %w", err)
	}

	words, err := prefilter.NewFromFile(cfg.PrefilterWordlist)
	if err != nil {
		return fmt.Errorf("load prefilter word list: %w", err)
	}

	cls := classifier.NewClient(classifier.Options{
		BaseURL: cfg.ClassifierURL,
		APIKey:  cfg.ClassifierAPIKey,
		Model:   cfg.ClassifierModel,
		Timeout: cfg.ClassifierTimeout,
	}, logger, metricsRegistry)
	if cfg.ClassifierAPIKey == "" {
		logger.Warn("CLASSIFIER_API_KEY not set, all content will be allowed")
	}

	var contentSvc interface {
		content.Remover
		content.Previewer
	} = content.Unavailable{}
	if cfg.ContentServiceURL != "" {
		contentSvc = content.NewClient(content.Options{
			BaseURL: cfg.ContentServiceURL,
			Timeout: cfg.ContentServiceTimeout,
		}, logger)
	}

	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(logger)
	execOpts := []moderation.Option{
		moderation.WithMetrics(metricsRegistry),
		moderation.WithLogger(logger),
		moderation.WithKeyStore(moderation.NewMemoryKeyStore(cfg.RateLimitMaxKeys, cfg.IdempotencyKeyTTL)),
	}
	if redisStore != nil {
		dispatcher = notify.NewRedisDispatcher(redisStore, cfg.NotificationChannel, logger)
		execOpts = append(execOpts, moderation.WithKeyStore(moderation.NewRedisKeyStore(redisStore, cfg.IdempotencyKeyTTL)))
	}
	if analyticsSvc != nil {
		execOpts = append(execOpts, moderation.WithAnalytics(analyticsSvc))
	}

	guard := suspension.NewGuard(store, metricsRegistry, logger)
	catalog := reports.NewCatalog(store)
	if err := catalog.Reload(ctx); err != nil {
		return fmt.Errorf("load report reasons: %w", err)
	}

	srvDeps := &api.Server{
		Logger:      logger,
		Store:       store,
		Gate:        screening.NewGate(cls, words, analyticsSvc, metricsRegistry, logger),
		Limiter:     limiter,
		Guard:       guard,
		Intake:      reports.NewIntake(store, guard, limiter, analyticsSvc, metricsRegistry, logger),
		Catalog:     catalog,
		Ledger:      escalation.NewLedger(store, policy),
		Executor:    moderation.NewExecutor(store, contentSvc, dispatcher, execOpts...),
		Queue:       api.NewQueue(store, contentSvc, catalog, logger),
		GeoIP:       geo,
		Metrics:     metricsRegistry,
		TokenSecret: []byte(cfg.TokenSecret),
		TokenTTL:    cfg.TokenTTL,
	}

	r := srvDeps.Routes()
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, cfg.ServiceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Trust and safety service running",
		zap.String("addr", addr),
		zap.String("store", cfg.StoreBackend),
		zap.Bool("redis", redisStore != nil),
		zap.Bool("analytics", analyticsSvc != nil))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(cfg.ReloadInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					if err := srvDeps.Reload(ctx); err != nil {
						logger.Error("auto reload", zap.Error(err))
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// openStore returns the configured store and its close function.
func openStore(ctx context.Context, cfg config.Config) (db.Store, func(), error) {
	if cfg.StoreBackend == "memory" {
		return db.NewMemoryStore(), func() {}, nil
	}
	pg, err := db.InitPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	return pg, pg.Close, nil
}
