// Package config loads the operator configuration for the adapter:
// rendering server, default format, cache and audit log locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plantviz/plantviz/internal/render"
)

// Environment overrides.
const (
	// EnvConfigPath points at an alternate config file.
	EnvConfigPath = "PLANTVIZ_CONFIG"
	// EnvServerURL overrides the rendering server URL after the file
	// is loaded.
	EnvServerURL = "PLANTVIZ_SERVER"
)

// Config is the adapter configuration.
type Config struct {
	ServerURL      string `yaml:"server_url"`
	DefaultFormat  string `yaml:"default_format"`
	CachePath      string `yaml:"cache_path"`
	AuditLog       string `yaml:"audit_log"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ServerURL:      render.DefaultBaseURL,
		DefaultFormat:  render.FormatSVG,
		TimeoutSeconds: 30,
	}
}

// Timeout converts the configured timeout to a duration.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return render.DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads config from the given path. If path is empty it tries
// PLANTVIZ_CONFIG, then ~/.plantviz/config.yaml. A missing file is not
// an error: defaults apply. PLANTVIZ_SERVER overrides the server URL
// regardless of source.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if url := os.Getenv(EnvServerURL); url != "" {
		cfg.ServerURL = url
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = render.DefaultBaseURL
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = render.FormatSVG
	}
	return cfg, nil
}

// DefaultPath is ~/.plantviz/config.yaml, or empty when the home
// directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".plantviz", "config.yaml")
}
