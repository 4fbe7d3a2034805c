package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is set.
const DefaultPath = "config/tracker.yaml"

// Config represents the application configuration
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	UserAgent string          `yaml:"user_agent" validate:"required"`
	Timezone  string          `yaml:"timezone"`
}

// SiteConfig describes the listing category being crawled
type SiteConfig struct {
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	Category string `yaml:"category" validate:"required"`
	YearMin  int    `yaml:"year_min" validate:"gte=1900"`
}

// IndexURL returns the URL of the given index page (1-based).
func (s SiteConfig) IndexURL(page int) string {
	return fmt.Sprintf("%s/transport/%s/year_min---%d/?page=%d",
		strings.TrimRight(s.BaseURL, "/"), s.Category, s.YearMin, page)
}

// CrawlerConfig contains crawl and batch settings
type CrawlerConfig struct {
	MaxRetries        int  `yaml:"max_retries" validate:"gte=1"`
	RetryDelaySeconds int  `yaml:"retry_delay_seconds" validate:"gte=0"`
	TimeoutSeconds    int  `yaml:"timeout_seconds" validate:"gte=1"`
	WorkerCount       int  `yaml:"worker_count" validate:"gte=1"`
	OuterBatchSize    int  `yaml:"outer_batch_size" validate:"gte=1"`
	InnerChunkSize    int  `yaml:"inner_chunk_size" validate:"gte=1"`
	IndexConcurrency  int  `yaml:"index_concurrency" validate:"gte=0"`
	UseBrowser        bool `yaml:"use_browser"`
}

// RateLimitConfig contains request pacing settings
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
	MaxRequestsPerDay int     `yaml:"max_requests_per_day" validate:"gte=0"`
}

// StorageConfig contains table and export locations
type StorageConfig struct {
	DataDir             string `yaml:"data_dir" validate:"required"`
	ExportDir           string `yaml:"export_dir" validate:"required"`
	LookbackDays        int    `yaml:"lookback_days" validate:"gte=1"`
	ExportRetentionDays int    `yaml:"export_retention_days" validate:"gte=0"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type" validate:"omitempty,oneof=none mysql postgres"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host" validate:"required_if=Enabled true"`
	APIKey  string `yaml:"api_key"`
	Index   string `yaml:"index"`
}

// SchedulerConfig contains the daily run settings
type SchedulerConfig struct {
	DailyRunEnabled bool   `yaml:"daily_run_enabled"`
	DailyRunTime    string `yaml:"daily_run_time" validate:"required"`
}

// ServerConfig contains the read-only API settings
type ServerConfig struct {
	Port         string   `yaml:"port" validate:"required"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File   string `yaml:"file"`
	Stderr bool   `yaml:"stderr"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:  "https://somon.tj",
			Category: "legkovyie-avtomobili",
			YearMin:  1950,
		},
		Crawler: CrawlerConfig{
			MaxRetries:        3,
			RetryDelaySeconds: 5,
			TimeoutSeconds:    30,
			WorkerCount:       8,
			OuterBatchSize:    5000,
			InnerChunkSize:    100,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 10,
			Burst:             8,
		},
		Storage: StorageConfig{
			DataDir:      "data",
			ExportDir:    "export",
			LookbackDays: 7,
		},
		Database: DatabaseConfig{
			Type: "none",
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{
				Index: "active_listings",
			},
		},
		Scheduler: SchedulerConfig{
			DailyRunEnabled: false,
			DailyRunTime:    "02:00",
		},
		Server: ServerConfig{
			Port:         "8084",
			AllowOrigins: []string{"http://localhost:3000"},
		},
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		Logging: LoggingConfig{
			Level:  "info",
			File:   "error_log.log",
			Stderr: true,
		},
		Timezone: "Asia/Dushanbe",
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads the file, applies environment overrides and validates the result.
func Load(filepath string) (*Config, error) {
	cfg, err := LoadConfig(filepath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings from environment variables when set.
func (c *Config) ApplyEnv() {
	c.Database.Type = getEnv("DB_TYPE", c.Database.Type)
	switch c.Database.Type {
	case "mysql":
		c.Database.MySQL.Host = getEnv("DB_HOST", c.Database.MySQL.Host)
		c.Database.MySQL.Port = getEnvInt("DB_PORT", c.Database.MySQL.Port)
		c.Database.MySQL.User = getEnv("DB_USER", c.Database.MySQL.User)
		c.Database.MySQL.Password = getEnv("DB_PASSWORD", c.Database.MySQL.Password)
		c.Database.MySQL.Database = getEnv("DB_NAME", c.Database.MySQL.Database)
	case "postgres":
		c.Database.Postgres.Host = getEnv("DB_HOST", c.Database.Postgres.Host)
		c.Database.Postgres.Port = getEnvInt("DB_PORT", c.Database.Postgres.Port)
		c.Database.Postgres.User = getEnv("DB_USER", c.Database.Postgres.User)
		c.Database.Postgres.Password = getEnv("DB_PASSWORD", c.Database.Postgres.Password)
		c.Database.Postgres.Database = getEnv("DB_NAME", c.Database.Postgres.Database)
	}

	c.Search.Meilisearch.Host = getEnv("MEILISEARCH_HOST", c.Search.Meilisearch.Host)
	c.Search.Meilisearch.APIKey = getEnv("MEILISEARCH_KEY", c.Search.Meilisearch.APIKey)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Storage.DataDir = getEnv("DATA_DIR", c.Storage.DataDir)
	c.Storage.ExportDir = getEnv("EXPORT_DIR", c.Storage.ExportDir)
}

var validate = validator.New()

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, _, err := ParseDailyRunTime(c.Scheduler.DailyRunTime); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseDailyRunTime parses an "HH:MM" string.
func ParseDailyRunTime(value string) (int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("daily_run_time must be HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in daily_run_time %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in daily_run_time %q", value)
	}
	return hour, minute, nil
}

// Location returns the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// GetTimeout returns the timeout as a duration
func (c *CrawlerConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRetryDelay returns the retry delay as a duration
func (c *CrawlerConfig) GetRetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
