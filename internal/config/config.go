// Package config gathers the settings shared by the CLI and the tool host.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/asynkron/chatpatch/internal/logging"
	"github.com/asynkron/chatpatch/pkg/patch"
)

// Environment variables read by Load.
const (
	EnvRoot             = "CHATPATCH_ROOT"
	EnvIgnoreWhitespace = "CHATPATCH_IGNORE_WHITESPACE"
	EnvLogLevel         = "CHATPATCH_LOG_LEVEL"
	EnvBatchLimit       = "CHATPATCH_BATCH_LIMIT"
	EnvNoColor          = "NO_COLOR"
)

// DefaultBatchLimit caps how many calls a single chat_batch request may carry.
const DefaultBatchLimit = 10

// Config is the resolved runtime configuration.
type Config struct {
	// Root is the sandbox directory every patch path is resolved against.
	// Empty means the current working directory.
	Root             string
	IgnoreWhitespace bool
	LogLevel         logging.Level
	NoColor          bool
	BatchLimit       int
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv reads .env files into the process environment. Missing files
// are not an error; anything else (such as a syntax error) is.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

// Load builds a Config from lookup, applying defaults and validating the
// result. A nil lookup reads the process environment.
func Load(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var cfg Config
	if value, ok := lookup(EnvRoot); ok {
		cfg.Root = strings.TrimSpace(value)
	}
	if value, ok := lookup(EnvIgnoreWhitespace); ok && strings.TrimSpace(value) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvIgnoreWhitespace, value, err)
		}
		cfg.IgnoreWhitespace = enabled
	}
	if value, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(value) != "" {
		level, err := logging.ParseLevel(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}
	if value, ok := lookup(EnvBatchLimit); ok && strings.TrimSpace(value) != "" {
		limit, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", EnvBatchLimit, value, err)
		}
		cfg.BatchLimit = limit
	}
	// Any value, even empty, disables colour (https://no-color.org).
	if _, ok := lookup(EnvNoColor); ok {
		cfg.NoColor = true
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = logging.LevelWarn
	}
	if c.BatchLimit == 0 {
		c.BatchLimit = DefaultBatchLimit
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.BatchLimit < 1 {
		return fmt.Errorf("batch limit must be at least 1, got %d", c.BatchLimit)
	}
	if _, err := logging.ParseLevel(string(c.LogLevel)); err != nil {
		return err
	}
	return nil
}

// Options returns the patch matching options selected by c.
func (c Config) Options() patch.Options {
	return patch.Options{IgnoreWhitespace: c.IgnoreWhitespace}
}
