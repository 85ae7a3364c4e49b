package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opadata/checkout-api/internal/config"
	"github.com/opadata/checkout-api/internal/domain"
	"github.com/opadata/checkout-api/internal/handler"
	"github.com/opadata/checkout-api/internal/infra/cache"
	"github.com/opadata/checkout-api/internal/infra/client"
	"github.com/opadata/checkout-api/internal/infra/memory"
	"github.com/opadata/checkout-api/internal/infra/observability"
	"github.com/opadata/checkout-api/internal/infra/postgres"
	"github.com/opadata/checkout-api/internal/infra/resilience"
	"github.com/opadata/checkout-api/internal/port"
	"github.com/opadata/checkout-api/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_postgres", cfg.DatabaseURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cep_cache_ttl", cfg.CEPCacheTTL),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Float64("yearly_discount_factor", cfg.YearlyDiscountFactor),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "checkout-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Caches ---
	cepCache := cache.New[*domain.Address](cfg.CEPCacheTTL)
	sessions := cache.New[*service.CheckoutState](cfg.SessionTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cepBreaker := resilience.NewCircuitBreaker("viacep")
	gatewayBreaker := resilience.NewCircuitBreaker("payment-gateway")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	viacep := client.NewViaCEP(httpClient, cfg.ViaCEPBaseURL, cepBreaker, resilienceCfg, cepCache)
	gateway := client.NewPaymentGateway(httpClient, cfg.GatewayBaseURL, cfg.GatewayToken, gatewayBreaker, resilienceCfg)

	// --- Stores ---
	var (
		planStore     port.PlanStore
		orderStore    port.OrderStore
		customerStore port.CustomerStore
	)
	if cfg.DatabaseURL != "" {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		pool, err := postgres.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()

		store := postgres.NewStore(pool)
		planStore, orderStore, customerStore = store, store, store
		logger.Info("using Postgres store")
	} else {
		store := memory.NewStoreWithCatalog()
		planStore, orderStore, customerStore = store, store, store
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	// --- Services ---
	authSvc := service.NewAuthService(customerStore, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
	catalogSvc := service.NewCatalogService(planStore, logger)
	checkoutSvc := service.NewCheckoutService(
		sessions,
		customerStore,
		orderStore,
		viacep,
		gateway,
		authSvc,
		port.NopNotifier{},
		metrics,
		logger,
		cfg.YearlyDiscountFactor,
	)

	// --- Router ---
	router := handler.NewRouter(checkoutSvc, catalogSvc, authSvc, metrics, logger, cfg.AllowedOrigins)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
