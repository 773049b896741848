// Package config handles configuration loading from TOML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure. Every field is optional;
// accessors supply defaults so a missing config file is a valid setup.
type Config struct {
	Crawl   CrawlConfig       `toml:"crawl"`
	Cache   CacheConfig       `toml:"cache"`
	Servers map[string]string `toml:"servers"` // language ID -> server command
	Log     LogConfig         `toml:"log"`
}

// CrawlConfig holds crawler settings.
type CrawlConfig struct {
	// Depth is the recursion budget for the type crawl.
	Depth int `toml:"depth"`
	// MaxSnippets caps the number of snippets returned per request.
	MaxSnippets int `toml:"max_snippets"`
}

// DepthOrDefault returns the configured depth or 1 if unset.
func (c CrawlConfig) DepthOrDefault() int {
	if c.Depth <= 0 {
		return 1
	}
	return c.Depth
}

// MaxSnippetsOrDefault returns the configured cap or 25 if unset.
func (c CrawlConfig) MaxSnippetsOrDefault() int {
	if c.MaxSnippets <= 0 {
		return 25
	}
	return c.MaxSnippets
}

// CacheConfig holds content-cache settings.
type CacheConfig struct {
	// Files is the number of file contents kept in memory.
	Files int `toml:"files"`
}

// FilesOrDefault returns the configured cache size or 256 if unset.
func (c CacheConfig) FilesOrDefault() int {
	if c.Files <= 0 {
		return 256
	}
	return c.Files
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string `toml:"level"`
}

// LevelOrDefault returns the configured level or "warn" if unset.
func (l LogConfig) LevelOrDefault() string {
	if l.Level == "" {
		return "warn"
	}
	return l.Level
}

// Load reads configuration from a TOML file and applies environment
// variable overrides. An empty path loads defaults only; a named file
// must exist.
func Load(path string) (*Config, error) {
	cfg := &Config{Servers: make(map[string]string)}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables override file settings.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TABCTX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawl.Depth = n
		}
	}
	if v := os.Getenv("TABCTX_MAX_SNIPPETS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawl.MaxSnippets = n
		}
	}
	if v := os.Getenv("TABCTX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Crawl.Depth < 0 {
		errs = append(errs, errors.New("crawl.depth: must be non-negative"))
	}
	if c.Crawl.MaxSnippets < 0 {
		errs = append(errs, errors.New("crawl.max_snippets: must be non-negative"))
	}
	if c.Cache.Files < 0 {
		errs = append(errs, errors.New("cache.files: must be non-negative"))
	}
	switch c.Log.LevelOrDefault() {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
