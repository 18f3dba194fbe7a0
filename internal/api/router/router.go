// Package router wires the HTTP surface of the platform.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reislab/travel-platform/internal/http/handlers"
	httpmiddleware "github.com/reislab/travel-platform/internal/http/middleware"
	"github.com/reislab/travel-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	DispatchHandler    *handlers.DispatchHandler
	BuilderTokens      *handlers.BuilderTokensHandler
	WhatsAppWebhook    *handlers.WhatsAppWebhookHandler
	Templates          *handlers.TemplatesHandler
	Settings           *handlers.SettingsHandler
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.BrandContext)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.WhatsAppWebhook != nil {
			public.Post("/v1/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleInbound)
		}
		if cfg.BuilderTokens != nil {
			public.Post("/v1/builder/tokens/exchange", cfg.BuilderTokens.Exchange)
		}
	})

	// Admin endpoints (HMAC JWT)
	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.DispatchHandler != nil {
			admin.Post("/v1/messaging/dispatch", cfg.DispatchHandler.Run)
			admin.Get("/v1/messaging/sent", cfg.DispatchHandler.History)
		}
		if cfg.BuilderTokens != nil {
			admin.Post("/v1/builder/tokens", cfg.BuilderTokens.Mint)
		}
		if cfg.Templates != nil {
			admin.Post("/v1/templates", cfg.Templates.Register)
		}
		if cfg.Settings != nil {
			admin.Post("/v1/messaging/settings", cfg.Settings.Upsert)
		}
	})

	return r
}
