package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the newscast client and the mock backend.
type Config struct {
	API     APIConfig
	Poll    PollConfig
	Session SessionConfig
	Redis   RedisConfig
	Log     LogConfig
	MockAPI MockAPIConfig
}

type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	PageLimit int
}

type PollConfig struct {
	Interval time.Duration
}

type SessionConfig struct {
	TokenStore     string
	TokenFile      string
	NoticeDuration time.Duration
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level string
}

type MockAPIConfig struct {
	Port      int
	StepDelay time.Duration
}

const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

var validTokenStores = map[string]bool{
	TokenStoreFile:   true,
	TokenStoreRedis:  true,
	TokenStoreMemory: true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL:   strings.TrimRight(envString("NEWSCAST_API_BASE_URL", "http://localhost:8000/api/v1"), "/"),
			Timeout:   envDuration("NEWSCAST_HTTP_TIMEOUT", 0),
			RateLimit: envFloat("NEWSCAST_RATE_LIMIT_RPS", 10),
			RateBurst: envInt("NEWSCAST_RATE_LIMIT_BURST", 5),
			PageLimit: envInt("NEWSCAST_PAGE_LIMIT", 10),
		},
		Poll: PollConfig{
			Interval: envDuration("NEWSCAST_POLL_INTERVAL", 5*time.Second),
		},
		Session: SessionConfig{
			TokenStore:     strings.ToLower(envString("NEWSCAST_TOKEN_STORE", TokenStoreFile)),
			TokenFile:      envString("NEWSCAST_TOKEN_FILE", defaultTokenFile()),
			NoticeDuration: envDuration("NEWSCAST_NOTICE_DURATION", 5*time.Second),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Log: LogConfig{
			Level: strings.ToLower(envString("NEWSCAST_LOG_LEVEL", "warn")),
		},
		MockAPI: MockAPIConfig{
			Port:      envInt("MOCKAPI_PORT", 8000),
			StepDelay: envDuration("MOCKAPI_STEP_DELAY", 0),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("NEWSCAST_API_BASE_URL must start with http:// or https://, got %q", c.API.BaseURL)
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("NEWSCAST_POLL_INTERVAL must be positive, got %s", c.Poll.Interval)
	}

	if c.API.RateLimit <= 0 {
		return fmt.Errorf("NEWSCAST_RATE_LIMIT_RPS must be positive, got %v", c.API.RateLimit)
	}
	if c.API.RateBurst < 1 {
		return fmt.Errorf("NEWSCAST_RATE_LIMIT_BURST must be at least 1, got %d", c.API.RateBurst)
	}

	if !validTokenStores[c.Session.TokenStore] {
		return fmt.Errorf("NEWSCAST_TOKEN_STORE must be one of file, redis, memory; got %q", c.Session.TokenStore)
	}
	if c.Session.TokenStore == TokenStoreRedis && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when NEWSCAST_TOKEN_STORE is redis")
	}
	if c.Session.TokenStore == TokenStoreFile && c.Session.TokenFile == "" {
		return fmt.Errorf("NEWSCAST_TOKEN_FILE is required when NEWSCAST_TOKEN_STORE is file")
	}

	if c.API.PageLimit < 1 || c.API.PageLimit > 100 {
		return fmt.Errorf("NEWSCAST_PAGE_LIMIT must be between 1 and 100, got %d", c.API.PageLimit)
	}

	return nil
}

// RootURL is the API base URL without its version prefix. Static assets such
// as audio files are served relative to it.
func (a APIConfig) RootURL() string {
	return strings.TrimSuffix(a.BaseURL, "/api/v1")
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "newscast", "credentials.yaml")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
