package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GRIDCHAT_API_TOKEN", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 4400 {
		t.Errorf("port = %d, want 4400", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("base url = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if !strings.HasSuffix(cfg.Workbook.Path, "workbook.json") {
		t.Errorf("workbook path = %q", cfg.Workbook.Path)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("GRIDCHAT_API_TOKEN", "secret")

	path := writeConfigFile(t, `
server:
  port: 9999
ollama:
  model: qwen2.5
pending:
  max_age: 1h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "qwen2.5" {
		t.Errorf("model = %q", cfg.Ollama.Model)
	}
	// Unset file keys keep their defaults.
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("base url = %q", cfg.Ollama.BaseURL)
	}

	maxAge, err := cfg.PendingMaxAge()
	if err != nil {
		t.Fatalf("PendingMaxAge: %v", err)
	}
	if maxAge != time.Hour {
		t.Errorf("max age = %v, want 1h", maxAge)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("GRIDCHAT_API_TOKEN", "secret")
	t.Setenv("GRIDCHAT_SERVER_PORT", "7777")
	t.Setenv("GRIDCHAT_OLLAMA_MODEL", "phi3.5")

	path := writeConfigFile(t, `
server:
  port: 9999
ollama:
  model: qwen2.5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "phi3.5" {
		t.Errorf("model = %q, want env override phi3.5", cfg.Ollama.Model)
	}
}

func TestTokenRequired(t *testing.T) {
	t.Setenv("GRIDCHAT_API_TOKEN", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "API token") {
		t.Errorf("err = %v, want missing token error", err)
	}
}

func TestTokenFromFile(t *testing.T) {
	t.Setenv("GRIDCHAT_API_TOKEN", "")

	path := writeConfigFile(t, `
api:
  token: file-secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Token != "file-secret" {
		t.Errorf("token = %q", cfg.API.Token)
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	t.Setenv("GRIDCHAT_API_TOKEN", "secret")
	t.Setenv("GRIDCHAT_PENDING_MAX_AGE", "not-a-duration")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "max_age") {
		t.Errorf("err = %v, want duration parse error", err)
	}
}

func TestBadPortEnvKeepsDefault(t *testing.T) {
	t.Setenv("GRIDCHAT_API_TOKEN", "secret")
	t.Setenv("GRIDCHAT_SERVER_PORT", "eleven")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4400 {
		t.Errorf("port = %d, want default 4400", cfg.Server.Port)
	}
}
