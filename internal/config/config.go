// Package config handles configuration for hw-bridge.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinkerbelle-io/hw-bridge/internal/homewizard"
	"github.com/tinkerbelle-io/hw-bridge/internal/retry"
)

// Config holds all hw-bridge configuration.
type Config struct {
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Hub            string        `yaml:"hub"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Timeout        time.Duration `yaml:"timeout"`
	LoginURL       string        `yaml:"login_url,omitempty"`
	PlugsURL       string        `yaml:"plugs_url,omitempty"`
	AuditLog       string        `yaml:"audit_log,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"`
}

// Default returns a config with every optional field set.
func Default() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		MaxRetries:     p.MaxRetries,
		InitialBackoff: p.InitialDelay,
		Timeout:        30 * time.Second,
		LoginURL:       homewizard.DefaultLoginURL,
		PlugsURL:       homewizard.DefaultPlugsURL,
		LogLevel:       "info",
	}
}

// DefaultPath returns ~/.config/hw-bridge/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "hw-bridge", "config.yaml")
}

// Load reads the YAML file at path (a missing file is not an error) and applies
// environment overrides on top.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HW_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("HW_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("HW_HUB"); v != "" {
		c.Hub = v
	}
	if v := os.Getenv("HW_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HW_MAX_RETRIES: %w", err)
		}
		c.MaxRetries = n
	}
	if v := os.Getenv("HW_INITIAL_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HW_INITIAL_BACKOFF: %w", err)
		}
		c.InitialBackoff = d
	}
	if v := os.Getenv("HW_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HW_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks the values that would otherwise fail deep inside a flow.
func (c *Config) Validate() error {
	if err := c.RetryPolicy().Validate(); err != nil {
		return err
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive, got %s", c.InitialBackoff)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	for name, raw := range map[string]string{"login_url": c.LoginURL, "plugs_url": c.PlugsURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
		}
	}
	return nil
}

// RetryPolicy returns the backoff policy described by the config.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: c.MaxRetries, InitialDelay: c.InitialBackoff}
}

// Save writes cfg as YAML. The directory is created with 0700, the file with 0600
// since it holds the account password.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
