package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/instanti8/engine/internal/api"
	"github.com/instanti8/engine/internal/api/handlers"
	mw "github.com/instanti8/engine/internal/api/middleware"
	"github.com/instanti8/engine/internal/app"
	"github.com/instanti8/engine/internal/queue/tasks"
	"github.com/instanti8/engine/internal/services"
	"github.com/instanti8/engine/pkg/config"
	"github.com/instanti8/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting Instanti8 Engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Check{}

	// Background deployments need redis; without it deploys run inline only.
	var enq services.Enqueuer
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		enq = tasks.NewEnqueuer(client, cfg.DeployTimeout)
	} else {
		log.Warn("REDIS_ADDR not set, async deployments disabled")
	}

	a, err := app.Build(ctx, cfg, enq)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()
	checks["database"] = a.Ping
	log.Info("Database connected successfully", zap.String("driver", cfg.DatabaseDriver))

	// JWT Secret from environment
	jwtSecret := []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		if cfg.AppEnv == "production" {
			log.Fatal("JWT_SECRET must be set in production")
		}
		log.Warn("JWT_SECRET not set, using default (INSECURE for production)")
		jwtSecret = []byte("change-me-in-production-please")
	}

	limiter := mw.NewLimiter(10, 20)
	go limiter.Run(ctx)

	deps := api.Dependencies{
		HMACSecret:      jwtSecret,
		CORSOrigins:     strings.Split(cfg.CORSOrigins, ","),
		Limiter:         limiter,
		Health:          handlers.NewHealthHandler(checks),
		Infrastructures: handlers.NewInfrastructuresHandler(a.Infra, a.Deployments),
		Credentials:     handlers.NewCredentialsHandler(a.Credentials),
	}
	if cfg.MetricsEnabled {
		deps.Metrics = a.Metrics.Handler()
	}

	// Generation and inline deployments are long running; WriteTimeout is
	// left to the deploy timeout.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.DeployTimeout + cfg.ValidationTimeout + time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
