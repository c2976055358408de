package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"pfm/internal/api"
	"pfm/internal/auth"
	"pfm/internal/backend"
	"pfm/internal/cache"
	"pfm/internal/cli"
	"pfm/internal/core"
	apphttp "pfm/internal/http"
	"pfm/internal/log"
	"pfm/internal/metrics"
	"pfm/internal/middleware/ratelimit"
	"pfm/internal/middleware/security"
	"pfm/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info", "text"))
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting pfm", "api", cfg.APIBaseURL, "broker", cfg.Broker)

	// Activity journal and its broker
	journal := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	publisher := backend.NewFactory(logger).CreatePublisher(context.Background(), backendCfg)
	activity := services.NewActivityService(journal, publisher)

	m := metrics.New()
	recorder := m.Recording(activity)

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithObserver(m.ObserveAPI),
		api.WithLogger(logger))

	// Per-user lists, swept by the cache manager
	lists := services.NewLists(cfg.ListCacheSize, cfg.ListCacheTTL)
	cacheManager := cache.NewManager(logger)
	lists.Register(cacheManager)
	cacheManager.StartCleanup(time.Minute)
	m.Gauge("cached_lists", "Per-user lists currently cached", func() float64 {
		return float64(lists.Banks.Size() + lists.Accounts.Size() + lists.Transactions.Size())
	})

	sessions := auth.NewManager(cfg.SessionMaxAge, logger)
	sessions.OnLogout = func(id core.Identity) {
		n := lists.Forget(id.Email)
		logger.Debug("Dropped cached lists", log.FieldUser, id.Email, "count", n)
	}

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, "error", err)
		}
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit,
		CleanupInterval:   5 * time.Minute,
	})
	m.Gauge("rate_limit_clients", "Clients tracked by the rate limiter", func() float64 {
		return float64(limiter.GetMetrics().ClientCount)
	})
	m.Gauge("rate_limit_hits", "Requests counted by the rate limiter since start", func() float64 {
		return float64(limiter.GetMetrics().TotalHits)
	})
	m.Gauge("suspicious_requests", "Requests flagged by the security detector since start", func() float64 {
		return float64(detector.GetMetrics().SuspiciousRequests)
	})

	srv, err := apphttp.NewServer(cfg.Addr(), apphttp.Deps{
		Auth:         client,
		API:          client,
		Banks:        services.NewBankService(client, lists.Banks, recorder),
		Accounts:     services.NewAccountService(client, lists.Accounts, recorder),
		Transactions: services.NewTransactionService(client, lists.Transactions, recorder),
		Dashboard:    services.NewDashboardService(client),
		Uploads:      services.NewUploadService(client, recorder),
		Activity:     activity,
		Journal:      journal,
		Sessions:     sessions,
		Metrics:      m,
		Limiter:      limiter,
		Detector:     detector,
		AssetURL:     cfg.APIAssetURL,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Failed to build server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := activity.Close(); err != nil {
			logger.Error("Failed to close activity journal", "error", err)
		}
	})

	logger.Info("Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "addr", srv.Addr)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
