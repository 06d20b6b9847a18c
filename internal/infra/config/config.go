// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration shared by the catalog server and the player.
// Each binary reads only the sections it needs.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Blob     BlobConfig     `yaml:"blob"`
	Player   PlayerConfig   `yaml:"player"`
	Hooks    HooksConfig    `yaml:"hooks"`
}

// ServerConfig represents the catalog REST server configuration.
type ServerConfig struct {
	Addr           string   `yaml:"addr" default:":5000" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" default:"50" validate:"gte=1,lte=1024"`
}

// HooksConfig represents lifecycle hooks, run with sh -c.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// DatabaseConfig represents the song database configuration.
type DatabaseConfig struct {
	DSN   string `yaml:"dsn" default:"lorelei.db" validate:"required"`
	Debug bool   `yaml:"debug"`
}

// BlobConfig selects the audio blob backend. Settings are decoded by the backend itself.
type BlobConfig struct {
	Type     string         `yaml:"type" default:"local" validate:"required,oneof=local"`
	Settings map[string]any `yaml:"settings"`
}

// PlayerConfig represents the player daemon configuration.
type PlayerConfig struct {
	Addr               string `yaml:"addr" default:":8080" validate:"required"`
	CatalogURL         string `yaml:"catalog_url" default:"http://localhost:5000" validate:"required,url"`
	RequestTimeoutMs   int    `yaml:"request_timeout_ms" default:"10000" validate:"gte=100,lte=120000"`
	EventBuffer        int    `yaml:"event_buffer" default:"64" validate:"gte=1,lte=4096"`
	RestartThresholdMs int    `yaml:"restart_threshold_ms" default:"3000" validate:"gte=1,lte=60000"`
	SendTimeoutMs      int    `yaml:"send_timeout_ms" default:"500" validate:"gte=10,lte=10000"`
}

// Load loads configuration from a YAML file. An empty path yields the defaults.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with LORELEI_* environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("LORELEI_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LORELEI_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("LORELEI_UPLOAD_DIR"); v != "" {
		if c.Blob.Settings == nil {
			c.Blob.Settings = make(map[string]any)
		}
		c.Blob.Settings["dir"] = v
	}
	if v := os.Getenv("LORELEI_PLAYER_ADDR"); v != "" {
		c.Player.Addr = v
	}
	if v := os.Getenv("LORELEI_CATALOG_URL"); v != "" {
		c.Player.CatalogURL = v
	}
	if v := os.Getenv("LORELEI_RESTART_THRESHOLD_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid LORELEI_RESTART_THRESHOLD_MS %q", v)
		}
		c.Player.RestartThresholdMs = ms
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// RequestTimeout returns the catalog request timeout.
func (p PlayerConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutMs) * time.Millisecond
}

// RestartThreshold returns the elapsed time after which "previous" restarts the current track.
func (p PlayerConfig) RestartThreshold() time.Duration {
	return time.Duration(p.RestartThresholdMs) * time.Millisecond
}

// SendTimeout returns the per-subscriber notification send timeout.
func (p PlayerConfig) SendTimeout() time.Duration {
	return time.Duration(p.SendTimeoutMs) * time.Millisecond
}
