package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBootstrapAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procman.config")

	if err := bootstrapDefaultConfig(path, dir); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if !fileExists(path) {
		t.Fatalf("expected bootstrapped config at %s", path)
	}

	m := &Monitor{ConfigFile: path}
	if err := m.load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Port != defaultPort {
		t.Fatalf("expected default port %d, got %d", defaultPort, m.Port)
	}
	if m.RefreshInterval != DefaultRefreshInterval {
		t.Fatalf("expected default interval %v, got %v", DefaultRefreshInterval, m.RefreshInterval)
	}
	if m.Paths == nil || m.Paths.RootPath != dir {
		t.Fatalf("expected root path %s, got %+v", dir, m.Paths)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procman.config")
	body := `{
  "root_path": "` + filepath.ToSlash(dir) + `",
  "port": 9090,
  "refresh_interval_ms": 500,
  "history_capacity": 120,
  "jwt_secret": "s3cret",
  "password_hash": "$2a$10$abcdefghijklmnopqrstuv",
  "alert_webhook_url": "https://discord.invalid/hook",
  "alert_threshold_percent": 90,
  "alert_sustained_ticks": 5
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := &Monitor{ConfigFile: path}
	if err := m.load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", m.Port)
	}
	if m.RefreshInterval != 500*time.Millisecond {
		t.Fatalf("expected 500ms interval, got %v", m.RefreshInterval)
	}
	if m.HistoryCapacity != 120 {
		t.Fatalf("expected capacity 120, got %d", m.HistoryCapacity)
	}
	if m.JWTSecret != "s3cret" || m.PasswordHash == "" {
		t.Fatalf("expected auth settings to load")
	}
	if m.AlertWebhookURL != "https://discord.invalid/hook" {
		t.Fatalf("expected alert webhook to load, got %q", m.AlertWebhookURL)
	}
	if m.AlertThreshold != 90 || m.AlertSustainedTicks != 5 {
		t.Fatalf("expected alert tuning 90/5, got %v/%d", m.AlertThreshold, m.AlertSustainedTicks)
	}
}

func TestLoadConfigRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procman.config")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	m := &Monitor{ConfigFile: path}
	if err := m.load(); err == nil {
		t.Fatalf("expected parse error for malformed config")
	}
}
