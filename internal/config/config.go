package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
	Environment  string
	// Storage
	StoreBackend  string // "postgres" or "memory"
	PostgresDSN   string
	RedisAddr     string
	ClickHouseDSN string
	GeoIPDB       string
	// Database connection pooling configuration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	ReloadInterval    time.Duration
	// Actor tokens
	TokenSecret string
	TokenTTL    time.Duration
	// Remote classifier
	ClassifierURL     string
	ClassifierAPIKey  string
	ClassifierModel   string
	ClassifierTimeout time.Duration
	// Content-owning service used for removals and previews
	ContentServiceURL     string
	ContentServiceTimeout time.Duration
	// Rate limiting
	RateLimitEnabled  bool
	RateLimits        string
	RateLimitMaxKeys  int
	IdempotencyKeyTTL time.Duration
	// Escalation policy
	EscalationSuspendTiers string
	EscalationBanThreshold int
	// Lexical pre-filter word list path; empty uses the built-in list
	PrefilterWordlist string
	// Notification channel on Redis pub/sub
	NotificationChannel string
	// Tracing configuration
	TracingEnabled    bool
	TempoEndpoint     string
	TracingSampleRate float64
}

// Load parses environment variables and returns a Config populated with
// defaults when variables are absent.
func Load() Config {
	cfg := Config{}

	cfg.Port = getenv("PORT", "8787")
	cfg.ReadTimeout = envDuration("READ_TIMEOUT", 5*time.Second)
	cfg.WriteTimeout = envDuration("WRITE_TIMEOUT", 15*time.Second)
	cfg.ServiceName = getenv("SERVICE_NAME", "trustsafety")
	cfg.Environment = getenv("ENV", "production")

	cfg.StoreBackend = strings.ToLower(getenv("STORE_BACKEND", "postgres"))
	cfg.PostgresDSN = getenv("POSTGRES_DSN", "postgres://postgres@127.0.0.1:5432/postgres?sslmode=disable")
	cfg.RedisAddr = getenv("REDIS_ADDR", "localhost:6379")
	// analytics is optional; an empty DSN disables the event sink
	cfg.ClickHouseDSN = getenv("CLICKHOUSE_DSN", "")
	cfg.GeoIPDB = getenv("GEOIP_DB", "")

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = envInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.DBConnMaxIdleTime = envDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute)
	// how often the report reason catalog is refreshed
	cfg.ReloadInterval = envDuration("RELOAD_INTERVAL", 5*time.Minute)

	cfg.TokenSecret = getenv("TOKEN_SECRET", "")
	cfg.TokenTTL = envDuration("TOKEN_TTL", 1*time.Hour)

	cfg.ClassifierURL = getenv("CLASSIFIER_URL", "https://api.openai.com")
	cfg.ClassifierAPIKey = getenv("CLASSIFIER_API_KEY", "")
	cfg.ClassifierModel = getenv("CLASSIFIER_MODEL", "omni-moderation-latest")
	cfg.ClassifierTimeout = envDuration("CLASSIFIER_TIMEOUT", 5*time.Second)

	cfg.ContentServiceURL = getenv("CONTENT_SERVICE_URL", "http://localhost:8080")
	cfg.ContentServiceTimeout = envDuration("CONTENT_SERVICE_TIMEOUT", 10*time.Second)

	cfg.RateLimitEnabled = envBool("RATE_LIMIT_ENABLED", true)
	cfg.RateLimits = getenv("RATE_LIMITS", "")
	cfg.RateLimitMaxKeys = envInt("RATE_LIMIT_MAX_KEYS", 100000)
	cfg.IdempotencyKeyTTL = envDuration("IDEMPOTENCY_KEY_TTL", 24*time.Hour)

	cfg.EscalationSuspendTiers = getenv("ESCALATION_SUSPEND_TIERS", "1:3,2:7,3:30")
	cfg.EscalationBanThreshold = envInt("ESCALATION_BAN_THRESHOLD", 4)

	cfg.PrefilterWordlist = getenv("PREFILTER_WORDLIST", "")
	cfg.NotificationChannel = getenv("NOTIFICATION_CHANNEL", "moderation-notifications")

	cfg.TracingEnabled = envBool("TRACING_ENABLED", false)
	cfg.TempoEndpoint = getenv("TEMPO_ENDPOINT", "tempo:4317")
	cfg.TracingSampleRate = envFloat("TRACING_SAMPLE_RATE", 1.0)

	return cfg
}

// getenv returns the value of the environment variable if set, otherwise def.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration parses an environment variable into a time.Duration.
// The value can be a duration string (e.g. "5s") or a number of seconds.
// If the variable is unset or invalid, def is returned.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

// envBool parses a boolean environment variable. Accepted values are those
// supported by strconv.ParseBool. When unset or invalid, def is returned.
func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// envInt parses an integer environment variable. When unset or invalid, def is returned.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

// envFloat parses a float64 environment variable. When unset or invalid, def is returned.
func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}
