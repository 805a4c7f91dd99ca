// Package config loads server configuration in three layers: built-in
// defaults, an optional YAML file, then environment variables. Later layers
// win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable pointing at a YAML file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPath is tried when CONFIG_PATH is unset.
const DefaultConfigPath = "moviespace.yaml"

// DefaultSecretKey is the signing key used when none is configured. Tokens
// signed with it are forgeable by anyone who has read the source.
const DefaultSecretKey = "your-secret-key-change-this"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	TMDB     TMDBConfig     `koanf:"tmdb"`
	Site     SiteConfig     `koanf:"site"`
	Imports  ImportsConfig  `koanf:"imports"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns the listen address, e.g. "0.0.0.0:8000".
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	SecretKey string `koanf:"secret_key"`
}

type TMDBConfig struct {
	APIKey       string        `koanf:"api_key"`
	BaseURL      string        `koanf:"base_url"`
	ImageBaseURL string        `koanf:"image_base_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

type SiteConfig struct {
	BaseURL string `koanf:"base_url"`
}

type ImportsConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
	MaxRows   int `koanf:"max_rows"`
	BatchSize int `koanf:"batch_size"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Database: DatabaseConfig{
			Path: "moviespace.db",
		},
		Auth: AuthConfig{
			SecretKey: DefaultSecretKey,
		},
		TMDB: TMDBConfig{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p/w500",
			Timeout:      10 * time.Second,
		},
		Site: SiteConfig{
			BaseURL: "https://movie.drissi.store",
		},
		Imports: ImportsConfig{
			Workers:   2,
			QueueSize: 16,
			MaxRows:   2000,
			BatchSize: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

var envMappings = map[string]string{
	"host":                "server.host",
	"port":                "server.port",
	"db_path":             "database.path",
	"secret_key":          "auth.secret_key",
	"tmdb_api_key":        "tmdb.api_key",
	"tmdb_base_url":       "tmdb.base_url",
	"tmdb_image_base_url": "tmdb.image_base_url",
	"tmdb_timeout":        "tmdb.timeout",
	"site_base_url":       "site.base_url",
	"import_workers":      "imports.workers",
	"import_queue_size":   "imports.queue_size",
	"import_batch_size":   "imports.batch_size",
	"import_max_rows":     "imports.max_rows",
	"log_level":           "log.level",
}

// envTransformFunc maps a known environment variable to its config path.
// Anything else maps to "" and is ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_key is required"))
	}
	if err := validateURL("tmdb.base_url", c.TMDB.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("site.base_url", c.Site.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.TMDB.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("tmdb.timeout must be positive, got %s", c.TMDB.Timeout))
	}
	if c.Imports.Workers < 1 {
		errs = append(errs, fmt.Errorf("imports.workers must be at least 1, got %d", c.Imports.Workers))
	}
	if c.Imports.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("imports.queue_size must be at least 1, got %d", c.Imports.QueueSize))
	}
	if c.Imports.MaxRows < 1 {
		errs = append(errs, fmt.Errorf("imports.max_rows must be at least 1, got %d", c.Imports.MaxRows))
	}
	if c.Imports.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("imports.batch_size must be at least 1, got %d", c.Imports.BatchSize))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}

// SlogLevel parses Level as a slog level name (debug, info, warn, error).
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Level)
	}
	return lvl, nil
}

// UsingDefaultSecret reports whether tokens are signed with DefaultSecretKey.
func (c *Config) UsingDefaultSecret() bool {
	return c.Auth.SecretKey == DefaultSecretKey
}
