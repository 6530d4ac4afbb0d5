// Package config loads mxws settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/systemshift/memex-workspace/internal/kv"
)

// Config holds every setting the CLI understands. Zero values are replaced
// by defaults on Load.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	Backend         string `yaml:"backend"`
	Tab             string `yaml:"tab"`
	MaxDepth        int    `yaml:"max_depth"`
	CompactInterval string `yaml:"compact_interval"`
	RenderTimeout   string `yaml:"render_timeout"`
	Unicode         bool   `yaml:"unicode"`

	compactEvery  time.Duration
	renderTimeout time.Duration
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	_ = c.parseDurations()
	return c
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.Backend == "" {
		c.Backend = kv.BackendFiles
	}
	if c.Tab == "" {
		c.Tab = "default"
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 30
	}
	if c.CompactInterval == "" {
		c.CompactInterval = "10m"
	}
	if c.RenderTimeout == "" {
		c.RenderTimeout = "2s"
	}
}

func (c *Config) parseDurations() error {
	d, err := time.ParseDuration(c.CompactInterval)
	if err != nil || d <= 0 {
		return fmt.Errorf("config: invalid compact_interval %q", c.CompactInterval)
	}
	c.compactEvery = d
	d, err = time.ParseDuration(c.RenderTimeout)
	if err != nil || d < 0 {
		return fmt.Errorf("config: invalid render_timeout %q", c.RenderTimeout)
	}
	c.renderTimeout = d
	return nil
}

// Load reads path. A missing file yields the defaults; an empty path skips
// the file entirely.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	return c, c.Finish()
}

// Finish applies defaults and validates. Call it again after overriding
// fields from flags.
func (c *Config) Finish() error {
	c.Tab = strings.TrimSpace(c.Tab)
	c.applyDefaults()
	switch c.Backend {
	case kv.BackendFiles, kv.BackendSQLite, kv.BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if strings.ContainsAny(c.Tab, `/\:`) || strings.Contains(c.Tab, "__") {
		return fmt.Errorf("config: invalid tab %q", c.Tab)
	}
	return c.parseDurations()
}

// CompactEvery is the parsed compact_interval.
func (c *Config) CompactEvery() time.Duration { return c.compactEvery }

// RenderTimeoutDuration is the parsed render_timeout.
func (c *Config) RenderTimeoutDuration() time.Duration { return c.renderTimeout }
