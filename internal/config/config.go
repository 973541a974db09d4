// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Store and cache backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is shared by cmd/server and cmd/worker.
type Config struct {
	Addr string

	DatabaseURL  string
	StoreBackend string

	RedisAddr    string
	RedisDB      int
	CacheBackend string
	CachePrefix  string

	MaxLives           int
	RefreshWorkers     int
	RefreshQueueSize   int
	HistoryFeedLimit   int
	AllowDebugSnapshot bool

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	// TokenExpiry of zero issues tokens without an exp claim.
	TokenExpiry time.Duration

	AllowedOrigins []string

	SweepEvery     time.Duration
	AnteEvery      time.Duration
	WatchPollEvery time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads the environment. Unset or malformed values fall back to defaults;
// only inconsistent combinations are errors.
func Load() (Config, error) {
	addr := envDefault("PORT", "8080")
	if !strings.HasPrefix(addr, ":") {
		addr = ":" + addr
	}

	cfg := Config{
		Addr:               addr,
		DatabaseURL:        databaseURL(),
		StoreBackend:       strings.ToLower(envDefault("STORE_BACKEND", BackendPostgres)),
		RedisAddr:          envDefault("REDIS_ADDR", "localhost:6379"),
		RedisDB:            envIntDefault("REDIS_DB", 0),
		CacheBackend:       strings.ToLower(envDefault("CACHE_BACKEND", BackendRedis)),
		CachePrefix:        envDefault("CACHE_PREFIX", "heartline"),
		MaxLives:           envIntDefault("MAX_LIVES", 3),
		RefreshWorkers:     envIntDefault("REFRESH_WORKERS", 4),
		RefreshQueueSize:   envIntDefault("REFRESH_QUEUE_SIZE", 256),
		HistoryFeedLimit:   envIntDefault("HISTORY_FEED_LIMIT", 50),
		AllowDebugSnapshot: envBoolDefault("ALLOW_DEBUG_SNAPSHOTS", false),
		JWTPrivateKeyPath:  strings.TrimSpace(os.Getenv("JWT_PRIVATE_KEY_PATH")),
		JWTPublicKeyPath:   strings.TrimSpace(os.Getenv("JWT_PUBLIC_KEY_PATH")),
		AllowedOrigins:     splitList(envDefault("ALLOWED_ORIGINS", "https://*,http://*")),
		SweepEvery:         envDurationDefault("SWEEP_EVERY", 5*time.Minute),
		AnteEvery:          envDurationDefault("ANTE_EVERY", time.Hour),
		WatchPollEvery:     envDurationDefault("WATCH_POLL_EVERY", 30*time.Second),
		LogLevel:           envDefault("LOG_LEVEL", "info"),
		LogFormat:          strings.ToLower(envDefault("LOG_FORMAT", "text")),
	}

	expiry, err := tokenExpiry(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return cfg, err
	}
	cfg.TokenExpiry = expiry

	switch cfg.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return cfg, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, cfg.StoreBackend)
	}
	switch cfg.CacheBackend {
	case BackendRedis, BackendMemory:
	default:
		return cfg, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, cfg.CacheBackend)
	}
	if cfg.MaxLives < 1 {
		return cfg, fmt.Errorf("MAX_LIVES must be positive, got %d", cfg.MaxLives)
	}
	if (cfg.JWTPrivateKeyPath == "") != (cfg.JWTPublicKeyPath == "") {
		return cfg, fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	return cfg, nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the POSTGRES_/PG_ variables.
func databaseURL() string {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url
	}
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		envDefault("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// tokenExpiry accepts "never", "0" or an empty value for non-expiring tokens.
func tokenExpiry(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "never" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse TOKEN_EXPIRE_TIME: %w", err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
