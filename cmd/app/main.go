// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code-redemption/internal/config"
	"code-redemption/internal/domain/ports/adapter"
	"code-redemption/internal/domain/ports/repository"
	"code-redemption/internal/infra/api"
	"code-redemption/internal/infra/db/migrations"
	pg "code-redemption/internal/infra/db/postgres"
	"code-redemption/internal/infra/logging"
	"code-redemption/internal/infra/messages"
	"code-redemption/internal/infra/metrics"
	red "code-redemption/internal/infra/redis"
	"code-redemption/internal/infra/sched"
	"code-redemption/internal/infra/web"
	"code-redemption/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (unredacted logs, console output)")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Schema ----
	if *migrateOnly || cfg.Database.AutoMigrate {
		if err := migrations.Up(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migrations")
		}
		logger.Info().Msg("database schema is up to date")
		if *migrateOnly {
			return
		}
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	tm := pg.NewTxManager(pool)
	var codeRepo repository.CodeRepository = pg.NewCodeRepo(pool)
	attemptRepo := pg.NewAttemptRepo(pool)

	// ---- Redis (optional: limiter, lock, stats cache) ----
	var (
		limiter adapter.RateLimiter
		locker  adapter.Locker
		health  = func(ctx context.Context) error { return pool.Ping(ctx) }
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()

		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		codeRepo = pg.NewCodeRepoCacheDecorator(codeRepo, redisClient, cfg.Stats.CacheTTL, logger)
		health = func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := redisClient.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		}
	} else {
		if cfg.RateLimit.Enabled || cfg.Redemption.UseLock {
			logger.Warn().Msg("redis.url is empty; rate limiting and redemption lock are disabled")
		}
	}

	// ---- Messages ----
	renderer := messages.NewRenderer(cfg.Messages)
	if cfg.Messages.File != "" {
		if err := renderer.LoadFile(os.DirFS("."), cfg.Messages.File); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Messages.File).Msg("messages")
		}
	}

	// ---- Use cases ----
	redeemUC := usecase.NewRedemptionUseCase(codeRepo, attemptRepo, tm, renderer, limiter, locker, usecase.RedemptionOptions{
		LogFailedAttempts: cfg.Redemption.LogFailures(),
		UseLock:           cfg.Redemption.UseLock && locker != nil,
		LockTTL:           cfg.Redemption.LockTTL,
		RateLimitEnabled:  cfg.RateLimit.Enabled && limiter != nil,
		MaxAttempts:       cfg.RateLimit.MaxAttemptsPerHour,
		RateWindow:        cfg.RateLimit.Window,
		Dev:               cfg.Runtime.Dev,
	}, logger)
	codeUC := usecase.NewCodeUseCase(codeRepo, attemptRepo, logger)
	attemptUC := usecase.NewAttemptUseCase(attemptRepo, logger)

	// ---- Background workers ----
	statsWorker := sched.NewStatsWorker(cfg.Stats.PublishInterval, codeUC, func() { pg.PublishPoolStats(pool) }, logger)
	go func() {
		if err := statsWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("stats worker stopped")
		}
	}()

	// ---- HTTP ----
	mux := http.NewServeMux()
	api.NewServer(redeemUC, cfg.HTTP.TrustProxyHeaders, cfg.HTTP.RequestTimeout, health, logger).Register(mux)

	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	keys := web.NewKeyVerifier(cfg.Admin.APIKey, cfg.Admin.APIKeyHash)
	if !keys.Configured() {
		logger.Warn().Msg("admin.api_key is not set; admin API is disabled")
	} else if cfg.Admin.JWTSecret == "" {
		logger.Fatal().Msg("admin.jwt_secret is required when the admin API is enabled")
	}
	mux.Handle("/admin/", web.NewServer(codeUC, attemptUC, auth, keys, logger).Router())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
	}
	if err := api.ListenAndServe(ctx, srv, logger); err != nil {
		logger.Error().Err(err).Msg("http server")
	}
	logger.Info().Msg("shutdown complete")
}
