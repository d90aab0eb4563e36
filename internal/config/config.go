package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Dir  string `yaml:"dir"`
	File string `yaml:"file"`
}

// Path returns the full path of the database file.
func (d DatabaseConfig) Path() string {
	return filepath.Join(d.Dir, d.File)
}

// APIConfig configures access to the remote platform API.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TokenFile      string `yaml:"token_file"`
	PacingInterval string `yaml:"pacing_interval"`
	RequestTimeout string `yaml:"request_timeout"`
	RetryAttempts  int    `yaml:"retry_attempts"`
}

// ParsePacingInterval returns the pacing interval as time.Duration.
func (a APIConfig) ParsePacingInterval() time.Duration {
	d, err := time.ParseDuration(a.PacingInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// ParseRequestTimeout returns the per-request timeout as time.Duration.
func (a APIConfig) ParseRequestTimeout() time.Duration {
	d, err := time.ParseDuration(a.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SweepConfig configures the crawl sweep.
type SweepConfig struct {
	IDsFile          string `yaml:"ids_file"`
	UniverseMax      int64  `yaml:"universe_max"`
	ProgressInterval int    `yaml:"progress_interval"`
}

// LogConfig configures the operational log.
type LogConfig struct {
	File        string `yaml:"file"`
	Development bool   `yaml:"development"`
}

// ServerConfig configures the inspection HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dir:  "./thing_db",
			File: "default_thingistat.db",
		},
		API: APIConfig{
			BaseURL:        "https://api.thingiverse.com/things/",
			TokenFile:      "./auth.json",
			PacingInterval: "1s",
			RequestTimeout: "30s",
			RetryAttempts:  3,
		},
		Sweep: SweepConfig{
			IDsFile:          "./thing_db/default_ids_list.txt",
			UniverseMax:      5437526,
			ProgressInterval: 100,
		},
		Log: LogConfig{
			File: "./logs/downloads.log",
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("THINGSWEEP_DB_DIR"); v != "" {
		cfg.Database.Dir = v
	}
	if v := os.Getenv("THINGSWEEP_DB_FILE"); v != "" {
		cfg.Database.File = v
	}
	if v := os.Getenv("THINGSWEEP_IDS_FILE"); v != "" {
		cfg.Sweep.IDsFile = v
	}
	if v := os.Getenv("THINGSWEEP_TOKEN_FILE"); v != "" {
		cfg.API.TokenFile = v
	}
	if v := os.Getenv("THINGSWEEP_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

type tokenFile struct {
	AccessToken string `json:"access_token"`
}

// LoadToken reads the bearer credential from the configured token file.
// THINGSWEEP_ACCESS_TOKEN, when set, takes precedence over the file.
func (a APIConfig) LoadToken() (string, error) {
	if v := os.Getenv("THINGSWEEP_ACCESS_TOKEN"); v != "" {
		return v, nil
	}
	data, err := os.ReadFile(a.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file %s: %w", a.TokenFile, err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("parse token file %s: %w", a.TokenFile, err)
	}
	if tf.AccessToken == "" {
		return "", fmt.Errorf("token file %s: missing access_token", a.TokenFile)
	}
	return tf.AccessToken, nil
}
