package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/doctor-portal/cmd/mainconfig"
	"github.com/wolfman30/doctor-portal/internal/app/bootstrap"
	"github.com/wolfman30/doctor-portal/internal/config"
	"github.com/wolfman30/doctor-portal/pkg/logging"
)

// outbox-worker drains booking notifications from the Postgres outbox when
// the API runs with NOTIFY_OUTBOX_INLINE=false.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("outbox worker requires DATABASE_URL")
		os.Exit(1)
	}
	cfg.NotifyUseOutbox = true

	pool := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if pool == nil {
		logger.Error("failed to connect postgres")
		os.Exit(1)
	}
	defer pool.Close()

	deps := bootstrap.NotificationDeps{Pool: pool, Logger: logger}
	if cfg.AppointmentEventsQueueURL != "" || cfg.SESFromEmail != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		deps.AWS = &awsCfg
	}

	notifications, err := bootstrap.BuildNotifications(ctx, cfg, deps)
	if err != nil {
		logger.Error("failed to configure notifications", "error", err)
		os.Exit(1)
	}
	if len(notifications.Sinks) == 0 {
		logger.Warn("no notification sinks configured; outbox entries will be acknowledged without delivery")
	}

	go notifications.Deliverer.Start(ctx)
	logger.Info("outbox worker started", "sinks", notifications.Sinks)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("outbox worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
