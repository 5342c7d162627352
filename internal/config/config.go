// Package config loads runtime settings from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting. Zero values are replaced by defaults in Normalize.
type Config struct {
	Crawl     Crawl     `yaml:"crawl"`
	LargeSite LargeSite `yaml:"large_site"`
	Analysis  Analysis  `yaml:"analysis"`
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	Log       Log       `yaml:"log"`
}

// Crawl configures the crawler. A negative MaxDepth crawls the base URL only;
// a negative Delay disables the delay.
type Crawl struct {
	MaxPages       int           `yaml:"max_pages"`
	MaxDepth       int           `yaml:"max_depth"`
	Timeout        time.Duration `yaml:"timeout"`
	Delay          time.Duration `yaml:"delay"`
	Retries        int           `yaml:"retries"`
	UserAgent      string        `yaml:"user_agent"`
	FollowExternal bool          `yaml:"follow_external"`
	IgnoreRobots   bool          `yaml:"ignore_robots"`
}

// LargeSite controls when a task is sampled instead of fully traversed.
type LargeSite struct {
	Threshold     int `yaml:"threshold"`
	RequestBudget int `yaml:"request_budget"`
}

// Analysis limits requests made by the analysis checks. A negative RPS disables the limit.
type Analysis struct {
	RPS     float64       `yaml:"rps"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

type Server struct {
	Addr                string `yaml:"addr"`
	MaxConcurrentCrawls int    `yaml:"max_concurrent_crawls"`
}

// Store selects the task store backend: memory, sqlite or pgx.
type Store struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.Normalize()

	return cfg
}

// Load reads path and fills unset fields with defaults. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML data and applies defaults.
func Parse(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Normalize replaces zero values with defaults.
func (c *Config) Normalize() {
	if c.Crawl.MaxPages <= 0 {
		c.Crawl.MaxPages = 100
	}
	if c.Crawl.MaxDepth == 0 {
		c.Crawl.MaxDepth = 5
	}
	if c.Crawl.Timeout <= 0 {
		c.Crawl.Timeout = 10 * time.Second
	}
	if c.Crawl.Delay == 0 {
		c.Crawl.Delay = 300 * time.Millisecond
	}
	if c.Crawl.UserAgent == "" {
		c.Crawl.UserAgent = "seoscan-bot/1.0"
	}
	if c.LargeSite.Threshold <= 0 {
		c.LargeSite.Threshold = 10000
	}
	if c.LargeSite.RequestBudget <= 0 {
		c.LargeSite.RequestBudget = 50
	}
	if c.Analysis.Timeout <= 0 {
		c.Analysis.Timeout = 10 * time.Second
	}
	if c.Analysis.RPS == 0 {
		c.Analysis.RPS = 5
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxConcurrentCrawls <= 0 {
		c.Server.MaxConcurrentCrawls = 4
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks settings that have no sensible default.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "pgx":
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver %q requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Crawl.Retries < 0 || c.Analysis.Retries < 0 {
		return errors.New("retries must not be negative")
	}

	return nil
}
