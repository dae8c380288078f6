package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// SortKeys lists catalog fields threads can be ordered by
var SortKeys = []string{"posts_count", "num", "views", "score"}

// Config holds the application configuration
type Config struct {
	Board struct {
		Name    string `yaml:"name" json:"name" jsonschema:"default=b,description=Board to scrape"`
		BaseURL string `yaml:"base_url" json:"base_url" jsonschema:"default=https://2ch.hk,description=Board site base URL"`
		SortBy  string `yaml:"sort_by" json:"sort_by" jsonschema:"default=posts_count,enum=posts_count,enum=num,enum=views,enum=score,description=Catalog sort key (descending)"`
		SaveTop int    `yaml:"save_top" json:"save_top" jsonschema:"default=10,minimum=1,description=Number of top threads saved per run"`
	} `yaml:"board" json:"board" jsonschema:"description=Board configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=Remote fetch configuration"`

	Collector struct {
		ContentDir   string        `yaml:"content_dir" json:"content_dir" jsonschema:"default=content/2ch,description=Directory for thread snapshots"`
		IdleInterval time.Duration `yaml:"idle_interval" json:"idle_interval" jsonschema:"default=2h,description=Pause between scraping runs"`
	} `yaml:"collector" json:"collector" jsonschema:"description=Collector configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:content/butthurts.db?mode=rwc&_txlock=immediate&_pragma=busy_timeout(5000),description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Telegram TelegramConfig `yaml:"telegram" json:"telegram" jsonschema:"description=Telegram bot configuration"`

	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=Status API listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		SiteURL string        `yaml:"site_url" json:"site_url" jsonschema:"default=http://localhost:8080,description=Public URL of the API used in RSS links"`
	} `yaml:"server" json:"server" jsonschema:"description=Status API configuration"`
}

// FetchConfig holds settings for requests to the board API
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Timeout per request"`
	RateLimit time.Duration `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=1s,description=Minimal pause between requests"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for board requests"`
}

// TelegramConfig holds bot settings
type TelegramConfig struct {
	Token       string        `yaml:"token" json:"token" jsonschema:"description=Bot token (can use environment variable)"`
	APIURL      string        `yaml:"api_url" json:"api_url" jsonschema:"default=https://api.telegram.org,description=Bot API endpoint"`
	PollTimeout time.Duration `yaml:"poll_timeout" json:"poll_timeout" jsonschema:"default=30s,description=Long polling timeout"`
	MaxWorkers  int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,minimum=1,description=Maximum updates handled concurrently"`
	Whitelist   []int64       `yaml:"whitelist" json:"whitelist" jsonschema:"description=User IDs allowed to use privileged commands"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; rv:52.0) Gecko/20100101 Firefox/52.0"

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	// board
	if c.Board.Name == "" {
		c.Board.Name = "b"
	}
	if c.Board.BaseURL == "" {
		c.Board.BaseURL = "https://2ch.hk"
	}
	if c.Board.SortBy == "" {
		c.Board.SortBy = "posts_count"
	}
	if c.Board.SaveTop == 0 {
		c.Board.SaveTop = 10
	}

	// fetch
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.RateLimit == 0 {
		c.Fetch.RateLimit = time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}

	// collector
	if c.Collector.ContentDir == "" {
		c.Collector.ContentDir = "content/2ch"
	}
	if c.Collector.IdleInterval == 0 {
		c.Collector.IdleInterval = 2 * time.Hour
	}

	// database
	if c.Database.DSN == "" {
		c.Database.DSN = "file:content/butthurts.db?mode=rwc&_txlock=immediate&_pragma=busy_timeout(5000)"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// telegram
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 30 * time.Second
	}
	if c.Telegram.MaxWorkers == 0 {
		c.Telegram.MaxWorkers = 5
	}

	// server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}
	if c.Server.SiteURL == "" {
		c.Server.SiteURL = "http://localhost:8080"
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Board.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("board.base_url must be an absolute URL, got %q", cfg.Board.BaseURL)
	}
	if !slices.Contains(SortKeys, cfg.Board.SortBy) {
		return fmt.Errorf("board.sort_by must be one of %v, got %q", SortKeys, cfg.Board.SortBy)
	}
	if cfg.Board.SaveTop < 1 {
		return fmt.Errorf("board.save_top must be at least 1")
	}
	if cfg.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch.timeout must be at least 1 second")
	}
	if cfg.Fetch.RateLimit < 0 {
		return fmt.Errorf("fetch.rate_limit must be non-negative")
	}
	if cfg.Collector.IdleInterval < time.Second {
		return fmt.Errorf("collector.idle_interval must be at least 1 second")
	}
	if cfg.Telegram.MaxWorkers < 1 {
		return fmt.Errorf("telegram.max_workers must be at least 1")
	}
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	return nil
}

// GetServerConfig returns status API configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFetchConfig returns remote fetch configuration
func (c *Config) GetFetchConfig() FetchConfig {
	return c.Fetch
}

// GetTelegramConfig returns bot configuration
func (c *Config) GetTelegramConfig() TelegramConfig {
	return c.Telegram
}
