package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/price-tracker/internal/fetcher"
	"github.com/maltedev/price-tracker/internal/proxy"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Proxy    proxy.Config   `yaml:"proxy"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Browser  BrowserConfig  `yaml:"browser"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Relay    RelayConfig    `yaml:"relay"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbName"`
	SSLMode  string `yaml:"sslMode"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	MaxStreamLen int64  `yaml:"maxStreamLen"`
}

type ScraperConfig struct {
	Fetcher        string        `yaml:"fetcher"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"userAgent"`
	AcceptLanguage string        `yaml:"acceptLanguage"`
	MaxBodySize    int           `yaml:"maxBodySize"`
}

type BrowserConfig struct {
	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewportWidth"`
	ViewportHeight int    `yaml:"viewportHeight"`
	TimezoneID     string `yaml:"timezone"`
	Locale         string `yaml:"locale"`
}

type RefreshConfig struct {
	Workers      int           `yaml:"workers"`
	RateLimitMin time.Duration `yaml:"rateLimitMin"`
	RateLimitMax time.Duration `yaml:"rateLimitMax"`
	MaxRetries   int           `yaml:"maxRetries"`
	Interval     time.Duration `yaml:"interval"`
}

type RelayConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"`
	BatchSize    int           `yaml:"batchSize"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "price_tracker",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 1,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			MaxStreamLen: 10000,
		},
		Proxy: proxy.Config{
			Host: proxy.DefaultHost,
			Port: proxy.DefaultPort,
		},
		Scraper: ScraperConfig{
			Fetcher:        fetcher.KindHTTP,
			Timeout:        30 * time.Second,
			AcceptLanguage: "en-IN,en;q=0.9",
			MaxBodySize:    10 << 20,
		},
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			TimezoneID:     "Asia/Kolkata",
			Locale:         "en-IN",
		},
		Refresh: RefreshConfig{
			Workers:      3,
			RateLimitMin: 2 * time.Second,
			RateLimitMax: 6 * time.Second,
			MaxRetries:   2,
			Interval:     6 * time.Hour,
		},
		Relay: RelayConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load starts from Defaults, overlays the YAML file named by CONFIG_FILE if
// set, then applies environment overrides.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvOrDefault("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.ReadTimeout = getDurationOrDefault("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationOrDefault("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Database.Host = getEnvOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getIntOrDefault("DB_PORT", c.Database.Port)
	c.Database.User = getEnvOrDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnvOrDefault("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnvOrDefault("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxConns = int32(getIntOrDefault("DB_MAX_CONNS", int(c.Database.MaxConns)))

	c.Redis.Addr = getEnvOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntOrDefault("REDIS_DB", c.Redis.DB)

	c.Proxy.Username = getEnvOrDefault("PROXY_USERNAME", c.Proxy.Username)
	c.Proxy.Password = getEnvOrDefault("PROXY_PASSWORD", c.Proxy.Password)
	c.Proxy.Host = getEnvOrDefault("PROXY_HOST", c.Proxy.Host)
	c.Proxy.Port = getIntOrDefault("PROXY_PORT", c.Proxy.Port)
	c.Proxy.AllowInsecureTLS = getBoolOrDefault("PROXY_INSECURE_TLS", c.Proxy.AllowInsecureTLS)

	c.Scraper.Fetcher = getEnvOrDefault("SCRAPER_FETCHER", c.Scraper.Fetcher)
	c.Scraper.Timeout = getDurationOrDefault("SCRAPER_TIMEOUT", c.Scraper.Timeout)
	c.Scraper.UserAgent = getEnvOrDefault("SCRAPER_USER_AGENT", c.Scraper.UserAgent)
	c.Scraper.AcceptLanguage = getEnvOrDefault("SCRAPER_ACCEPT_LANGUAGE", c.Scraper.AcceptLanguage)

	c.Browser.Headless = getBoolOrDefault("BROWSER_HEADLESS", c.Browser.Headless)
	c.Browser.TimezoneID = getEnvOrDefault("BROWSER_TIMEZONE", c.Browser.TimezoneID)
	c.Browser.Locale = getEnvOrDefault("BROWSER_LOCALE", c.Browser.Locale)

	c.Refresh.Workers = getIntOrDefault("REFRESH_WORKERS", c.Refresh.Workers)
	c.Refresh.RateLimitMin = getDurationOrDefault("REFRESH_RATE_LIMIT_MIN", c.Refresh.RateLimitMin)
	c.Refresh.RateLimitMax = getDurationOrDefault("REFRESH_RATE_LIMIT_MAX", c.Refresh.RateLimitMax)
	c.Refresh.MaxRetries = getIntOrDefault("REFRESH_MAX_RETRIES", c.Refresh.MaxRetries)
	c.Refresh.Interval = getDurationOrDefault("REFRESH_INTERVAL", c.Refresh.Interval)

	c.Relay.PollInterval = getDurationOrDefault("RELAY_POLL_INTERVAL", c.Relay.PollInterval)
	c.Relay.BatchSize = getIntOrDefault("RELAY_BATCH_SIZE", c.Relay.BatchSize)

	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)
}

func (c *Config) Validate() error {
	switch c.Scraper.Fetcher {
	case fetcher.KindHTTP, fetcher.KindColly, fetcher.KindBrowser:
	default:
		return fmt.Errorf("%w: SCRAPER_FETCHER must be one of http, colly, browser (got %q)", ErrInvalidConfig, c.Scraper.Fetcher)
	}

	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("%w: SCRAPER_TIMEOUT must be positive", ErrInvalidConfig)
	}

	if c.Refresh.Workers < 1 {
		return fmt.Errorf("%w: REFRESH_WORKERS must be at least 1", ErrInvalidConfig)
	}

	if c.Refresh.RateLimitMin > c.Refresh.RateLimitMax {
		return fmt.Errorf("%w: REFRESH_RATE_LIMIT_MIN cannot be greater than REFRESH_RATE_LIMIT_MAX", ErrInvalidConfig)
	}

	if c.Refresh.MaxRetries < 0 {
		return fmt.Errorf("%w: REFRESH_MAX_RETRIES cannot be negative", ErrInvalidConfig)
	}

	if c.Proxy.Username != "" && c.Proxy.Password == "" {
		return fmt.Errorf("%w: PROXY_PASSWORD is required when PROXY_USERNAME is set", ErrInvalidConfig)
	}

	if c.Relay.BatchSize < 1 {
		return fmt.Errorf("%w: RELAY_BATCH_SIZE must be at least 1", ErrInvalidConfig)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
