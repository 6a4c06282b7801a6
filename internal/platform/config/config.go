package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string

	// PublicBaseURL is the externally reachable address rendered into agent
	// manifests.
	PublicBaseURL string

	// WebhookSecret is the shared HMAC secret agents sign webhook payloads with.
	WebhookSecret string
	// SessionJWTSecret verifies first-party session tokens minted by the
	// external identity provider.
	SessionJWTSecret string
	// CronSecret guards the audit retention sweep endpoint.
	CronSecret string

	// RateLimitBypassToken lets trusted internal callers skip rate limiting.
	RateLimitBypassToken string

	AuditRetentionDays int

	DatabaseURL string
	Redis       RedisConfig
	Broker      BrokerConfig
}

// RedisConfig holds connection settings for the optional Redis backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BrokerConfig addresses the managed OAuth connection broker. The broker
// proxies authenticated provider calls so this service never sees raw tokens.
type BrokerConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SYLO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	webhookSecret := os.Getenv("WEBHOOK_SECRET")
	if webhookSecret == "" {
		// Use a default for development - should be overridden in production
		webhookSecret = "dev-webhook-secret-change-in-production"
	}

	sessionSecret := os.Getenv("SESSION_JWT_SECRET")
	if sessionSecret == "" {
		sessionSecret = "dev-session-secret-change-in-production"
	}

	brokerURL := os.Getenv("BROKER_URL")
	if brokerURL == "" {
		brokerURL = "https://api.nango.dev"
	}

	publicBaseURL := os.Getenv("PUBLIC_BASE_URL")
	if publicBaseURL == "" {
		publicBaseURL = "http://localhost:8080"
	}

	return Server{
		Addr:                 addr,
		PublicBaseURL:        publicBaseURL,
		WebhookSecret:        webhookSecret,
		SessionJWTSecret:     sessionSecret,
		CronSecret:           os.Getenv("CRON_SECRET"),
		RateLimitBypassToken: os.Getenv("RATE_LIMIT_BYPASS_TOKEN"),
		AuditRetentionDays:   envInt("AUDIT_RETENTION_DAYS", 90),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Broker: BrokerConfig{
			BaseURL:   brokerURL,
			SecretKey: os.Getenv("BROKER_SECRET_KEY"),
			Timeout:   envDuration("BROKER_TIMEOUT", 30*time.Second),
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
