package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/reislab/travel-platform/internal/builder"
	"github.com/reislab/travel-platform/internal/config"
	"github.com/reislab/travel-platform/internal/dispatch"
	"github.com/reislab/travel-platform/internal/interactions"
	"github.com/reislab/travel-platform/internal/messaging"
	"github.com/reislab/travel-platform/internal/notify"
	"github.com/reislab/travel-platform/internal/templates"
	"github.com/reislab/travel-platform/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("dispatch worker requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	settings := messaging.NewSettingsResolver(
		messaging.NewSettingsStore(pool),
		redisClient,
		messaging.BrandSettings{
			AccountSID:     cfg.TwilioAccountSID,
			AuthToken:      cfg.TwilioAuthToken,
			WhatsAppNumber: cfg.TwilioWhatsAppFrom,
		},
		cfg.SettingsCacheTTL,
		logger,
	)
	sender := messaging.NewWhatsAppSender(settings, logger)

	dispatcher := dispatch.NewDispatcher(
		dispatch.NewStore(pool),
		sender,
		templates.NewRegistry(templates.NewStore(pool), redisClient, cfg.TemplateCacheTTL, logger),
		interactions.NewStore(pool),
		logger,
	).
		WithBatchSize(cfg.DispatchBatchSize).
		WithInteractionWindow(cfg.InteractionWindow).
		WithDefaultTemplate(cfg.DefaultTemplateName).
		WithMarkFailedAsSent(cfg.MarkFailedAsSent)

	var alerter *notify.DispatchAlerter
	if emailSender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); emailSender != nil && cfg.AlertEmail != "" {
		alerter = notify.NewDispatchAlerter(emailSender, cfg.AlertEmail, logger)
	}

	worker := dispatch.NewWorker(dispatcher, logger).
		WithInterval(cfg.DispatchInterval).
		WithReportFunc(alerter.AlertFailures)

	go worker.Run(ctx)

	// Expired builder sessions are useless rows; sweep them hourly.
	sessions := builder.NewStore(pool)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sessions.DeleteExpired(ctx, time.Now().UTC())
				if err != nil {
					logger.Error("builder session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("expired builder sessions removed", "count", n)
				}
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("dispatch worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
