package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/doctor-portal/cmd/mainconfig"
	"github.com/wolfman30/doctor-portal/internal/api/router"
	"github.com/wolfman30/doctor-portal/internal/app/bootstrap"
	"github.com/wolfman30/doctor-portal/internal/appointments"
	appconfig "github.com/wolfman30/doctor-portal/internal/config"
	"github.com/wolfman30/doctor-portal/internal/doctors"
	httpmiddleware "github.com/wolfman30/doctor-portal/internal/http/middleware"
	"github.com/wolfman30/doctor-portal/internal/observability/metrics"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting doctor-portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; every authenticated route will return 401")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, schedulingMetrics := setupSchedulingMetrics()

	notifications, err := setupNotifications(ctx, cfg, pool, schedulingMetrics, logger)
	if err != nil {
		logger.Error("failed to configure notifications", "error", err)
		os.Exit(1)
	}
	if notifications.Deliverer != nil && cfg.NotifyOutboxInline {
		go notifications.Deliverer.Start(ctx)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go evictIdleClients(ctx, limiter, 10*time.Minute, logger)

	handler, err := buildHandler(cfg, pool, redisClient, notifications, schedulingMetrics, metricsHandler, limiter, logger)
	if err != nil {
		logger.Error("failed to configure scheduling", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupSchedulingMetrics registers scheduling metrics on a private registry
// alongside the Go runtime collectors.
func setupSchedulingMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSchedulingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func setupNotifications(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, m *metrics.SchedulingMetrics, logger *logging.Logger) (*bootstrap.Notifications, error) {
	deps := bootstrap.NotificationDeps{Pool: pool, Metrics: m, Logger: logger}
	if cfg.AppointmentEventsQueueURL != "" || cfg.SESFromEmail != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		deps.AWS = &awsCfg
	}
	return bootstrap.BuildNotifications(ctx, cfg, deps)
}

// buildHandler wires the scheduling service and HTTP routes. pool, redisClient,
// notifications and limiter may be nil.
func buildHandler(
	cfg *appconfig.Config,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	notifications *bootstrap.Notifications,
	m *metrics.SchedulingMetrics,
	metricsHandler http.Handler,
	limiter *httpmiddleware.RateLimiter,
	logger *logging.Logger,
) (http.Handler, error) {
	var (
		notifier appointments.Notifier
		hook     appointments.InsertHook
	)
	if notifications != nil {
		notifier, hook = notifications.Notifier, notifications.InsertHook
	}
	sched, err := bootstrap.BuildScheduling(cfg, pool, redisClient, hook, logger)
	if err != nil {
		return nil, err
	}

	service := appointments.NewService(sched.Store, sched.Hours, sched.Config,
		appointments.WithLocker(sched.Locker),
		appointments.WithNotifier(notifier),
		appointments.WithMetrics(m),
		appointments.WithLogger(logger),
	)

	var doctorsHandler *doctors.Handler
	if sched.HoursStore != nil {
		doctorsHandler = doctors.NewHandler(sched.HoursStore, logger)
	}

	checks := map[string]router.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	return router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointments.NewHandler(service, logger),
		DoctorsHandler:      doctorsHandler,
		JWTSecret:           cfg.JWTSecret,
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         limiter,
		HealthChecks:        checks,
	}), nil
}

func evictIdleClients(ctx context.Context, limiter *httpmiddleware.RateLimiter, idle time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Evict(idle); n > 0 {
				logger.Debug("evicted idle rate limit buckets", "count", n)
			}
		}
	}
}
