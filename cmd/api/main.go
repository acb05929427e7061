package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/expertease/consult-engine/internal/api/router"
	"github.com/expertease/consult-engine/internal/appointments"
	"github.com/expertease/consult-engine/internal/availability"
	appconfig "github.com/expertease/consult-engine/internal/config"
	httpmiddleware "github.com/expertease/consult-engine/internal/http/middleware"
	"github.com/expertease/consult-engine/internal/notify"
	"github.com/expertease/consult-engine/internal/observability/metrics"
	"github.com/expertease/consult-engine/internal/signaling"
	"github.com/expertease/consult-engine/internal/subscription"
	"github.com/expertease/consult-engine/internal/video"
	"github.com/expertease/consult-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting consult-engine API server", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	redisClient := connectRedis(cfg, logger)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	r := buildRouter(cfg, logger, pool, redisClient)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// connectPostgresPool opens a pgx pool, or returns nil when no URL is set.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to postgres")
	return pool
}

// connectRedis opens a Redis client, or returns nil when sessions should live
// in memory.
func connectRedis(cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.UseMemoryStores || cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("failed to ping redis, falling back to in-memory sessions", "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return client
}

// buildRouter wires stores, services, and handlers into the HTTP surface.
// Postgres and Redis are optional; absent backends fall back to in-memory
// stores so the engine still runs in development.
func buildRouter(cfg *appconfig.Config, logger *logging.Logger, pool *pgxpool.Pool, redisClient *redis.Client) http.Handler {
	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	var (
		slotStore  availability.Store
		apptStore  appointments.Store
		planStore  subscription.PlanStore
		quotaStore subscription.QuotaStore
	)
	if pool != nil && !cfg.UseMemoryStores {
		slotStore = availability.NewPostgresStore(pool)
		apptStore = appointments.NewPostgresStore(pool)
		planStore = subscription.NewPostgresPlanStore(pool)
		quotaStore = subscription.NewPostgresQuotaStore(pool)
	} else {
		logger.Info("using in-memory stores")
		slotStore = availability.NewMemoryStore()
		apptStore = appointments.NewMemoryStore()
		planStore = subscription.NewMemoryPlanStore()
		quotaStore = subscription.NewMemoryQuotaStore()
	}

	var sessionStore video.SessionStore
	if redisClient != nil {
		sessionStore = video.NewRedisStore(redisClient, cfg.SessionTTL)
	} else {
		sessionStore = video.NewMemoryStore()
	}

	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(emailSender, notify.NewMemoryDirectory(), logger.Component("notify")).
		WithBaseURL(cfg.PublicBaseURL)

	gate := subscription.NewGate(planStore, quotaStore, logger)
	sessions := video.NewManager(sessionStore, apptStore, notifier, engineMetrics, logger, cfg.OTPTTL)
	service := appointments.NewService(apptStore, slotStore, gate, sessions, notifier, engineMetrics, logger)

	hub := signaling.NewHub(sessions, engineMetrics, logger.Component("signaling"), cfg.RoomSendBuffer)
	sessions.SetAnnouncer(hub)

	return router.New(&router.Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(slotStore, logger),
		AppointmentsHandler: appointments.NewHandler(service, logger),
		SubscriptionHandler: subscription.NewHandler(gate, logger),
		VideoHandler:        video.NewHandler(sessions, logger),
		SignalingHandler:    signaling.NewHandler(hub, logger, cfg.CORSAllowedOrigins),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimiter:         httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		AuthJWTSecret:       cfg.AuthJWTSecret,
	})
}
