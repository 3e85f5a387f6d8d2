package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Quote provider credentials
	ProviderAPIKey     string
	ProviderClientCode string
	ProviderPassword   string
	ProviderTOTPSecret string
	ProviderRootURL    string
	ProviderStreamURL  string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	WatchlistPath string

	// Notification channels
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Scan behavior
	ScanMode       string        // "cross" or "momentum"
	ScanInterval   time.Duration // gap between periodic passes
	BatchSize      int
	ItemDelay      time.Duration
	BatchDelay     time.Duration
	FetchRateLimit int // token bucket capacity per minute; 0 uses backoff pacing

	// Alert gate
	AlertCooldown   time.Duration
	AlertDailyQuota int
	AlertZone       string // IANA zone for the daily quota boundary

	// Momentum thresholds
	MaxPrice     float64
	MinPrice     float64
	MinVolume    int64
	MinChangePct float64
	MinRelVolume float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		ProviderAPIKey:     mustEnv("PROVIDER_API_KEY"),
		ProviderClientCode: mustEnv("PROVIDER_CLIENT_CODE"),
		ProviderPassword:   mustEnv("PROVIDER_PASSWORD"),
		ProviderTOTPSecret: mustEnv("PROVIDER_TOTP_SECRET"),
		ProviderRootURL:    getEnv("PROVIDER_ROOT_URL", ""),
		ProviderStreamURL:  getEnv("PROVIDER_STREAM_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/scanner.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		WatchlistPath: getEnv("WATCHLIST_PATH", "data/watchlist.json"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		ScanMode:       getEnv("SCAN_MODE", "cross"),
		ScanInterval:   durationEnv("SCAN_INTERVAL", 15*time.Minute),
		BatchSize:      intEnv("SCAN_BATCH_SIZE", 5),
		ItemDelay:      durationEnv("SCAN_ITEM_DELAY", 2*time.Second),
		BatchDelay:     durationEnv("SCAN_BATCH_DELAY", 10*time.Second),
		FetchRateLimit: intEnv("FETCH_RATE_LIMIT", 0),

		AlertCooldown:   durationEnv("ALERT_COOLDOWN", time.Hour),
		AlertDailyQuota: intEnv("ALERT_DAILY_QUOTA", 3),
		AlertZone:       getEnv("ALERT_ZONE", "America/New_York"),

		MaxPrice:     floatEnv("MOMENTUM_MAX_PRICE", 0),
		MinPrice:     floatEnv("MOMENTUM_MIN_PRICE", 0),
		MinVolume:    int64(intEnv("MOMENTUM_MIN_VOLUME", 0)),
		MinChangePct: floatEnv("MOMENTUM_MIN_CHANGE_PCT", 0),
		MinRelVolume: floatEnv("MOMENTUM_MIN_REL_VOLUME", 0),
	}
}

// AlertLocation resolves AlertZone, falling back to UTC on a bad name.
func (c *Config) AlertLocation() *time.Location {
	loc, err := time.LoadLocation(c.AlertZone)
	if err != nil {
		log.Printf("[config] invalid ALERT_ZONE %q, using UTC", c.AlertZone)
		return time.UTC
	}
	return loc
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
