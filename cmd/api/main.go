package main

import (
	"context"
	"fmt"
	"log"
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

	"github.com/reislab/travel-platform/internal/api/router"
	"github.com/reislab/travel-platform/internal/builder"
	appconfig "github.com/reislab/travel-platform/internal/config"
	"github.com/reislab/travel-platform/internal/dispatch"
	"github.com/reislab/travel-platform/internal/http/handlers"
	"github.com/reislab/travel-platform/internal/interactions"
	"github.com/reislab/travel-platform/internal/messaging"
	"github.com/reislab/travel-platform/internal/observability/metrics"
	"github.com/reislab/travel-platform/internal/templates"
	"github.com/reislab/travel-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting travel-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" {
		logger.Error("API server requires DATABASE_URL")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis is optional; caches fall through to postgres without it.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	registry := prometheus.NewRegistry()
	platformMetrics := metrics.NewPlatformMetrics(registry)

	// Initialize stores and services
	messageStore := dispatch.NewStore(pool)
	interactionStore := interactions.NewStore(pool)
	templateStore := templates.NewStore(pool)
	templateRegistry := templates.NewRegistry(templateStore, redisClient, cfg.TemplateCacheTTL, logger)

	settingsStore := messaging.NewSettingsStore(pool)
	settings := messaging.NewSettingsResolver(
		settingsStore,
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

	dispatcher := dispatch.NewDispatcher(messageStore, sender, templateRegistry, interactionStore, logger).
		WithBatchSize(cfg.DispatchBatchSize).
		WithInteractionWindow(cfg.InteractionWindow).
		WithDefaultTemplate(cfg.DefaultTemplateName).
		WithMarkFailedAsSent(cfg.MarkFailedAsSent).
		WithMetrics(platformMetrics)

	exchanger := builder.NewExchanger(builder.NewStore(pool), builder.NewSigner(cfg.BuilderJWTSecret), logger).
		WithSessionTTL(cfg.BuilderSessionTTL).
		WithTokenTTL(cfg.SessionTokenTTL)

	builderTokens := handlers.NewBuilderTokensHandler(exchanger, logger).
		WithMetrics(platformMetrics).
		WithPublicBaseURL(cfg.PublicBaseURL)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		DispatchHandler:    handlers.NewDispatchHandler(dispatcher, logger).WithLister(messageStore),
		BuilderTokens:      builderTokens,
		WhatsAppWebhook:    handlers.NewWhatsAppWebhookHandler(interactionStore, logger).WithMetrics(platformMetrics),
		Templates:          handlers.NewTemplatesHandler(templateStore, templateRegistry, logger),
		Settings:           handlers.NewSettingsHandler(settingsStore, settings, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
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
