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

	"github.com/boddenberg/bizdesk-bfa-go/internal/config"
	"github.com/boddenberg/bizdesk-bfa-go/internal/domain"
	"github.com/boddenberg/bizdesk-bfa-go/internal/handler"
	"github.com/boddenberg/bizdesk-bfa-go/internal/i18n"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/api"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/cache"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/observability"
	"github.com/boddenberg/bizdesk-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/bizdesk-bfa-go/internal/service"
	"github.com/boddenberg/bizdesk-bfa-go/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Example: `  # Local development with a .env file
  bizdesk serve --env-file .env`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	return cmd
}

func serve(ctx context.Context, envFile string) error {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(envFile)

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if !i18n.SetDefault(cfg.DefaultLocale) {
		logger.Warn("unsupported default locale, keeping english", zap.String("locale", cfg.DefaultLocale))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("api_base_url", cfg.APIBaseURL),
		zap.Bool("api_token_set", cfg.APIToken != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("rate_limit", cfg.RateLimit),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	cb := resilience.NewCircuitBreaker(cfg.BreakerName)

	// --- Upstream API ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	opts := api.Options{
		GenericMessage: i18n.MsgGenericRequest,
		OnError:        metrics.IncrExternalError,
		OnUnauthorized: func() {
			logger.Warn("upstream rejected credentials")
		},
	}
	if cfg.APIToken != "" {
		opts.Tokens = api.StaticToken(cfg.APIToken)
	}
	apiClient := api.NewClient(httpClient, cfg.APIBaseURL, cb, resilienceCfg, opts, logger)

	backend := store.Backend{
		Clients:      apiClient.Clients(),
		BankAccounts: apiClient.BankAccounts(),
		Items:        apiClient.Items(),
		Invoices:     apiClient.Invoices(),
		Transactions: apiClient.Transactions(),
	}

	// --- Cache ---
	caches, closeCaches, err := newCaches(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCaches()

	// --- Services ---
	registry := store.NewRegistry(backend, caches, metrics, logger)
	forms := service.NewForms(registry, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(forms, metrics, handler.Options{
		RateLimit:   cfg.RateLimit,
		SSLRedirect: cfg.SSLRedirect,
		Breaker:     cb,
	}, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newCaches builds the detail caches on the configured backend.
func newCaches(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Caches, func(), error) {
	if cfg.CacheBackend == "redis" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return store.Caches{}, nil, err
		}
		logger.Info("detail cache on redis", zap.String("addr", cfg.RedisAddr))
		return store.Caches{
			Clients:      cache.NewRedis[domain.Client](rdb, "bizdesk:clients", cfg.CacheTTL, logger),
			BankAccounts: cache.NewRedis[domain.BankAccount](rdb, "bizdesk:bank_accounts", cfg.CacheTTL, logger),
			Items:        cache.NewRedis[domain.Item](rdb, "bizdesk:items", cfg.CacheTTL, logger),
			Invoices:     cache.NewRedis[domain.Invoice](rdb, "bizdesk:invoices", cfg.CacheTTL, logger),
			Transactions: cache.NewRedis[domain.Transaction](rdb, "bizdesk:transactions", cfg.CacheTTL, logger),
		}, func() { _ = rdb.Close() }, nil
	}

	limit := cache.WithMaxEntries(cfg.CacheMaxEntries)
	clients := cache.New[domain.Client](cfg.CacheTTL, limit)
	accounts := cache.New[domain.BankAccount](cfg.CacheTTL, limit)
	items := cache.New[domain.Item](cfg.CacheTTL, limit)
	invoices := cache.New[domain.Invoice](cfg.CacheTTL, limit)
	transactions := cache.New[domain.Transaction](cfg.CacheTTL, limit)
	return store.Caches{
			Clients:      clients,
			BankAccounts: accounts,
			Items:        items,
			Invoices:     invoices,
			Transactions: transactions,
		}, func() {
			clients.Close()
			accounts.Close()
			items.Close()
			invoices.Close()
			transactions.Close()
		}, nil
}
