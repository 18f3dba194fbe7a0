package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Twilio WhatsApp system-level fallback credentials. Brand-scoped
	// credentials in brand_whatsapp_settings take precedence.
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWhatsAppFrom  string
	SettingsCacheTTL    time.Duration

	// Dispatcher tuning.
	DispatchInterval     time.Duration
	DispatchBatchSize    int
	DefaultTemplateName  string
	InteractionWindow    time.Duration
	MarkFailedAsSent     bool
	TemplateCacheTTL     time.Duration

	// Builder session tokens.
	BuilderJWTSecret  string
	SessionTokenTTL   time.Duration
	BuilderSessionTTL time.Duration

	AdminJWTSecret string

	RedisAddr     string
	RedisPassword string

	CORSAllowedOrigins []string

	// SendGrid dispatch-failure alerting (optional).
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	AlertEmail        string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886"),
		SettingsCacheTTL:   getEnvAsDuration("SETTINGS_CACHE_TTL", 10*time.Minute),

		DispatchInterval:    getEnvAsDuration("DISPATCH_INTERVAL", time.Minute),
		DispatchBatchSize:   getEnvAsInt("DISPATCH_BATCH_SIZE", 50),
		DefaultTemplateName: getEnv("DEFAULT_TEMPLATE_NAME", "travelbro"),
		InteractionWindow:   getEnvAsDuration("INTERACTION_WINDOW", 24*time.Hour),
		MarkFailedAsSent:    getEnvAsBool("MARK_FAILED_AS_SENT", true),
		TemplateCacheTTL:    getEnvAsDuration("TEMPLATE_CACHE_TTL", 5*time.Minute),

		BuilderJWTSecret:  getEnv("BUILDER_JWT_SECRET", ""),
		SessionTokenTTL:   getEnvAsDuration("SESSION_TOKEN_TTL", 2*time.Hour),
		BuilderSessionTTL: getEnvAsDuration("BUILDER_SESSION_TTL", 2*time.Hour),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Reislab Platform"),
		AlertEmail:        getEnv("DISPATCH_ALERT_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
