package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Degraded-mode strategies for the Telegram family.
const (
	FallbackScrape = "scrape"
	FallbackRSS    = "rss"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Redis configuration
	RedisURL      string        `json:"redis_url"`
	RedisPrefix   string        `json:"redis_prefix"`
	ImageCacheTTL time.Duration `json:"image_cache_ttl"`

	// Fetching
	SourcesPath    string        `json:"sources_path"`
	RequestTimeout time.Duration `json:"request_timeout"`
	PageTimeout    time.Duration `json:"page_timeout"`
	RetryCount     int           `json:"retry_count"`
	UserAgent      string        `json:"user_agent"`

	// Scheduling
	RSSInterval         time.Duration `json:"rss_interval"`
	TelegramInterval    time.Duration `json:"telegram_interval"`
	TelegramWarmup      time.Duration `json:"telegram_warmup"`
	RSSSourceDelay      time.Duration `json:"rss_source_delay"`
	TelegramSourceDelay time.Duration `json:"telegram_source_delay"`
	CycleBudget         time.Duration `json:"cycle_budget"`

	// Telegram
	TelegramBotToken    string `json:"-"`
	TelegramAPIEndpoint string `json:"telegram_api_endpoint"`
	TelegramScrapeURL   string `json:"telegram_scrape_url"`
	TelegramRSSProxyURL string `json:"telegram_rss_proxy_url"`
	TelegramFallback    string `json:"telegram_fallback"`

	// Output
	CombinedLimit int    `json:"combined_limit"`
	CitySlug      string `json:"city_slug"`
	CityName      string `json:"city_name"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	LogPretty bool   `json:"log_pretty"`

	// Security
	AdminAPIKey string `json:"-"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv reads the configuration from the process environment with defaults.
func FromEnv() *Config {
	return &Config{
		// Server configuration
		Port:            getEnv("PORT", "3001"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		// Redis configuration
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPrefix:   getEnv("REDIS_PREFIX", "nnews:"),
		ImageCacheTTL: getEnvAsDuration("IMAGE_CACHE_TTL", 6*time.Hour),

		// Fetching
		SourcesPath:    getEnv("SOURCES_PATH", ""),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		PageTimeout:    getEnvAsDuration("PAGE_TIMEOUT", 8*time.Second),
		RetryCount:     getEnvAsInt("RETRY_COUNT", 1),
		UserAgent:      getEnv("USER_AGENT", DefaultUserAgent),

		// Scheduling
		RSSInterval:         getEnvAsDuration("RSS_INTERVAL", 20*time.Minute),
		TelegramInterval:    getEnvAsDuration("TELEGRAM_INTERVAL", 30*time.Minute),
		TelegramWarmup:      getEnvAsDuration("TELEGRAM_WARMUP", 5*time.Second),
		RSSSourceDelay:      getEnvAsDuration("RSS_SOURCE_DELAY", time.Second),
		TelegramSourceDelay: getEnvAsDuration("TELEGRAM_SOURCE_DELAY", 2*time.Second),
		CycleBudget:         getEnvAsDuration("CYCLE_BUDGET", 10*time.Minute),

		// Telegram
		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIEndpoint: getEnv("TELEGRAM_API_ENDPOINT", ""),
		TelegramScrapeURL:   getEnv("TELEGRAM_SCRAPE_URL", "https://t.me/s/%s"),
		TelegramRSSProxyURL: getEnv("TELEGRAM_RSS_PROXY_URL", "https://rsshub.app/telegram/channel/%s"),
		TelegramFallback:    strings.ToLower(getEnv("TELEGRAM_FALLBACK", FallbackScrape)),

		// Output
		CombinedLimit: getEnvAsInt("COMBINED_LIMIT", 100),
		CitySlug:      getEnv("CITY_SLUG", "nizhny-novgorod"),
		CityName:      getEnv("CITY_NAME", "Нижний Новгород"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFile:   getEnv("LOG_FILE", ""),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}
}

// DefaultUserAgent is sent on page and feed requests unless USER_AGENT is set.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	positive := map[string]time.Duration{
		"RSS_INTERVAL":      c.RSSInterval,
		"TELEGRAM_INTERVAL": c.TelegramInterval,
		"REQUEST_TIMEOUT":   c.RequestTimeout,
		"PAGE_TIMEOUT":      c.PageTimeout,
		"CYCLE_BUDGET":      c.CycleBudget,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, d))
		}
	}
	if c.RSSSourceDelay < 0 || c.TelegramSourceDelay < 0 || c.TelegramWarmup < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if c.CombinedLimit <= 0 {
		errs = append(errs, fmt.Errorf("COMBINED_LIMIT must be positive, got %d", c.CombinedLimit))
	}
	if c.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("RETRY_COUNT must not be negative, got %d", c.RetryCount))
	}
	switch c.TelegramFallback {
	case FallbackScrape, FallbackRSS:
	default:
		errs = append(errs, fmt.Errorf("TELEGRAM_FALLBACK must be %q or %q, got %q", FallbackScrape, FallbackRSS, c.TelegramFallback))
	}
	if !strings.Contains(c.TelegramScrapeURL, "%s") || !strings.Contains(c.TelegramRSSProxyURL, "%s") {
		errs = append(errs, errors.New("telegram URL templates must contain %s"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
