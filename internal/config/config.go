package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Storage  StorageConfig  `yaml:"storage"`
	Workbook WorkbookConfig `yaml:"workbook"`
	API      APIConfig      `yaml:"api"`
	Pending  PendingConfig  `yaml:"pending"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type WorkbookConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Token string `yaml:"token"`
}

// PendingConfig controls pending-action expiry. Durations are Go duration
// strings, e.g. "30m".
type PendingConfig struct {
	MaxAge        string `yaml:"max_age"`
	SweepInterval string `yaml:"sweep_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4400,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1",
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Workbook: WorkbookConfig{
			Path: filepath.Join(dataDir, "workbook.json"),
		},
		Pending: PendingConfig{
			MaxAge:        "30m",
			SweepInterval: "1m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gridchat"
	}
	return filepath.Join(home, ".gridchat")
}

// DefaultPath returns the default config file location:
// $XDG_CONFIG_HOME/gridchat/config.yaml, falling back to ~/.config.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".gridchat", "config.yaml")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "gridchat", "config.yaml")
}

// Load builds the configuration: defaults, then the YAML file at path (if it
// exists), then GRIDCHAT_* environment overrides. An empty path means
// DefaultPath(). The API token is required.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		return Config{}, fmt.Errorf("missing required config: API token. " +
			"Set api.token in the config file or the GRIDCHAT_API_TOKEN environment variable")
	}

	if _, err := cfg.PendingMaxAge(); err != nil {
		return Config{}, fmt.Errorf("invalid pending.max_age: %w", err)
	}
	if _, err := cfg.SweepInterval(); err != nil {
		return Config{}, fmt.Errorf("invalid pending.sweep_interval: %w", err)
	}

	return cfg, nil
}

// PendingMaxAge parses the pending-action expiry age.
func (c Config) PendingMaxAge() (time.Duration, error) {
	return time.ParseDuration(c.Pending.MaxAge)
}

// SweepInterval parses the expiry sweep interval.
func (c Config) SweepInterval() (time.Duration, error) {
	return time.ParseDuration(c.Pending.SweepInterval)
}

type keySpec struct {
	env   string
	apply func(cfg *Config, v string)
}

var specs = []keySpec{
	{env: "GRIDCHAT_SERVER_PORT", apply: func(cfg *Config, v string) {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = i
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from GRIDCHAT_SERVER_PORT=%q: %v. Using default value.\n", v, err)
		}
	}},
	{env: "GRIDCHAT_OLLAMA_BASE_URL", apply: func(cfg *Config, v string) { cfg.Ollama.BaseURL = v }},
	{env: "GRIDCHAT_OLLAMA_MODEL", apply: func(cfg *Config, v string) { cfg.Ollama.Model = v }},
	{env: "GRIDCHAT_STORAGE_DATA_DIR", apply: func(cfg *Config, v string) { cfg.Storage.DataDir = v }},
	{env: "GRIDCHAT_WORKBOOK_PATH", apply: func(cfg *Config, v string) { cfg.Workbook.Path = v }},
	{env: "GRIDCHAT_API_TOKEN", apply: func(cfg *Config, v string) { cfg.API.Token = v }},
	{env: "GRIDCHAT_PENDING_MAX_AGE", apply: func(cfg *Config, v string) { cfg.Pending.MaxAge = v }},
	{env: "GRIDCHAT_PENDING_SWEEP_INTERVAL", apply: func(cfg *Config, v string) { cfg.Pending.SweepInterval = v }},
	{env: "GRIDCHAT_LOG_LEVEL", apply: func(cfg *Config, v string) { cfg.Log.Level = v }},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if raw := os.Getenv(s.env); raw != "" {
			s.apply(cfg, raw)
		}
	}
}
