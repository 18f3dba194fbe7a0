package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DispatchBatchSize != 50 {
		t.Errorf("expected default batch size 50, got %d", cfg.DispatchBatchSize)
	}
	if cfg.InteractionWindow != 24*time.Hour {
		t.Errorf("expected 24h interaction window, got %v", cfg.InteractionWindow)
	}
	if cfg.SessionTokenTTL != 2*time.Hour {
		t.Errorf("expected 2h session token TTL, got %v", cfg.SessionTokenTTL)
	}
	if !cfg.MarkFailedAsSent {
		t.Error("expected MarkFailedAsSent to default true")
	}
	if cfg.DefaultTemplateName != "travelbro" {
		t.Errorf("unexpected default template name %s", cfg.DefaultTemplateName)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DISPATCH_BATCH_SIZE", "10")
	t.Setenv("INTERACTION_WINDOW", "12h")
	t.Setenv("MARK_FAILED_AS_SENT", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("expected port 9999, got %s", cfg.Port)
	}
	if cfg.DispatchBatchSize != 10 {
		t.Errorf("expected batch size 10, got %d", cfg.DispatchBatchSize)
	}
	if cfg.InteractionWindow != 12*time.Hour {
		t.Errorf("expected 12h window, got %v", cfg.InteractionWindow)
	}
	if cfg.MarkFailedAsSent {
		t.Error("expected MarkFailedAsSent false")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestGetEnvAsIntInvalid(t *testing.T) {
	t.Setenv("DISPATCH_BATCH_SIZE", "not-a-number")
	cfg := Load()
	if cfg.DispatchBatchSize != 50 {
		t.Errorf("expected fallback to default 50, got %d", cfg.DispatchBatchSize)
	}
}

func TestGetEnvAsDurationInvalid(t *testing.T) {
	t.Setenv("INTERACTION_WINDOW", "yesterday")
	cfg := Load()
	if cfg.InteractionWindow != 24*time.Hour {
		t.Errorf("expected fallback to 24h, got %v", cfg.InteractionWindow)
	}
}
