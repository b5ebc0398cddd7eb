package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinConfirmSecret is the shortest accepted CONFIRM_SECRET.
const MinConfirmSecret = 16

type Config struct {
	ServiceName string
	HTTPAddr    string
	LogLevel    string

	// NATS configuration
	NatsURL            string
	NatsEnabled        bool
	NatsQuerySubject   string
	NatsConfirmSubject string
	NatsTimeout        time.Duration

	// Session storage. An empty RedisURL keeps sessions in memory.
	RedisURL             string
	SessionTTL           time.Duration
	SessionExpiry        time.Duration
	SessionSweepInterval time.Duration
	ContextWindow        int

	// Audit storage. An empty DatabaseURL only logs audit entries.
	DatabaseURL string

	// Cluster access. An empty Kubeconfig uses the in-cluster config.
	Kubeconfig       string
	ResourceTimeout  time.Duration
	DefaultNamespace string
	PrometheusURL    string

	ConfirmSecret string
	ConfirmTTL    time.Duration

	AuthMode           string
	RateLimitPerMinute int
	RateLimitBurst     int
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "rhoai-intent"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),

		NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		NatsEnabled:        getBoolEnv("NATS_ENABLED", true),
		NatsQuerySubject:   getEnv("NATS_QUERY_SUBJECT", "rhoai.query"),
		NatsConfirmSubject: getEnv("NATS_CONFIRM_SUBJECT", "rhoai.confirm"),
		NatsTimeout:        getDurationEnv("NATS_TIMEOUT", 30*time.Second),

		RedisURL:             getEnv("REDIS_URL", ""),
		SessionTTL:           getDurationEnv("SESSION_TTL", 720*time.Hour),
		SessionExpiry:        getDurationEnv("SESSION_EXPIRY", 720*time.Hour),
		SessionSweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", time.Hour),
		ContextWindow:        getIntEnv("CONTEXT_WINDOW", 20),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Kubeconfig:       getEnv("KUBECONFIG", ""),
		ResourceTimeout:  getDurationEnv("RESOURCE_TIMEOUT", 10*time.Second),
		DefaultNamespace: getEnv("DEFAULT_NAMESPACE", "default"),
		PrometheusURL:    getEnv("PROMETHEUS_URL", ""),

		ConfirmSecret: getEnv("CONFIRM_SECRET", ""),
		ConfirmTTL:    getDurationEnv("CONFIRM_TTL", 5*time.Minute),

		AuthMode:           strings.ToLower(getEnv("AUTH_MODE", "tokenreview")),
		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 10),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.ConfirmSecret) < MinConfirmSecret {
		errs = append(errs, fmt.Errorf("CONFIRM_SECRET must be at least %d bytes", MinConfirmSecret))
	}
	if c.AuthMode != "tokenreview" && c.AuthMode != "trust" {
		errs = append(errs, fmt.Errorf("AUTH_MODE must be tokenreview or trust, got %q", c.AuthMode))
	}
	for name, d := range map[string]time.Duration{
		"CONFIRM_TTL":            c.ConfirmTTL,
		"SESSION_EXPIRY":         c.SessionExpiry,
		"SESSION_SWEEP_INTERVAL": c.SessionSweepInterval,
		"RESOURCE_TIMEOUT":       c.ResourceTimeout,
		"NATS_TIMEOUT":           c.NatsTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive"))
	}
	if c.ContextWindow <= 0 {
		errs = append(errs, errors.New("CONTEXT_WINDOW must be positive"))
	}
	if c.DefaultNamespace == "" {
		errs = append(errs, errors.New("DEFAULT_NAMESPACE must not be empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
