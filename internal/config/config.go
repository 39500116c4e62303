// Package config loads per-project build settings from .modshield.yaml.
// Command-line flags override file values; an absent file yields the
// defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"

	"github.com/modshield/modshield/internal/errs"
)

// FileName is the project config file looked up next to the source
// module.
const FileName = ".modshield.yaml"

// DefaultToolTimeout bounds each external compile/package invocation.
// The underlying tools have no timeout of their own; without a bound a
// hung compiler hangs the whole pipeline.
const DefaultToolTimeout = 15 * time.Minute

// Config holds build settings.
type Config struct {
	Output      string   `yaml:"output"`
	Bundler     string   `yaml:"bundler"`
	Exclude     []string `yaml:"exclude"`
	Expiration  string   `yaml:"expiration"`
	ToolTimeout string   `yaml:"tool_timeout"`
}

// Default returns the settings used when no config file is present.
func Default() *Config {
	return &Config{
		Output:  "msdist",
		Bundler: "uv",
		Exclude: []string{"tests", "test", "__pycache__", "build", "dist", "venv", ".venv", "node_modules", "msdist"},
	}
}

// Load reads .modshield.yaml from dir, if present, over the defaults.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errs.CodeInput, "cannot read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errs.CodeInput, "malformed "+FileName)
	}
	if cfg.Output == "" {
		cfg.Output = Default().Output
	}
	if cfg.Bundler == "" {
		cfg.Bundler = Default().Bundler
	}
	return cfg, nil
}

// Timeout parses the configured external-tool timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.ToolTimeout == "" {
		return DefaultToolTimeout, nil
	}
	d, err := time.ParseDuration(c.ToolTimeout)
	if err != nil || d <= 0 {
		return 0, errors.New(errs.CodeInput, "invalid tool_timeout").
			WithContext("value", c.ToolTimeout)
	}
	return d, nil
}

// ParseExpiration validates an expiration instant. Accepts RFC 3339 or
// a bare date, and rejects instants that are not in the future.
func ParseExpiration(value string, now time.Time) (time.Time, error) {
	var t time.Time
	var err error
	if t, err = time.Parse(time.RFC3339, value); err != nil {
		if t, err = time.Parse("2006-01-02", value); err != nil {
			return time.Time{}, errors.New(errs.CodeInput, "invalid expiration; use RFC 3339 or YYYY-MM-DD").
				WithContext("value", value)
		}
	}
	if !t.After(now) {
		return time.Time{}, errors.New(errs.CodeInput, "expiration must be in the future").
			WithContext("value", value)
	}
	return t.UTC(), nil
}
