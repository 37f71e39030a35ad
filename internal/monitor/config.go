package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"procman/internal/history"
	"procman/internal/utils"
)

// DefaultRefreshInterval is the sampling cadence used when the config does
// not override it.
const DefaultRefreshInterval = 1500 * time.Millisecond

const defaultPort = 5151

// configFile mirrors the on-disk procman.config JSON document.
type configFile struct {
	RootPath          string `json:"root_path"`
	Port              int    `json:"port"`
	RefreshIntervalMS int    `json:"refresh_interval_ms"`
	HistoryCapacity   int    `json:"history_capacity"`
	TrayEnabled       *bool  `json:"tray_enabled,omitempty"`
	TLSEnabled        bool   `json:"tls_enabled"`
	TLSCertPath       string `json:"tls_cert_path"`
	TLSKeyPath        string `json:"tls_key_path"`
	JWTSecret         string `json:"jwt_secret"`
	PasswordHash      string `json:"password_hash"`
	WMICmdlineEnabled *bool  `json:"wmi_cmdline_enabled,omitempty"`

	AlertWebhookURL       string  `json:"alert_webhook_url"`
	AlertThresholdPercent float64 `json:"alert_threshold_percent"`
	AlertSustainedTicks   int     `json:"alert_sustained_ticks"`
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// resolveConfigPath prefers the provided path and falls back to
// ./procman.config in the current working directory.
func resolveConfigPath(configPath string) string {
	if strings.TrimSpace(configPath) != "" {
		return strings.TrimSpace(configPath)
	}
	return "procman.config"
}

// bootstrapDefaultConfig writes a fresh config with defaults rooted at dir.
func bootstrapDefaultConfig(path, dir string) error {
	cfg := configFile{
		RootPath:          dir,
		Port:              defaultPort,
		RefreshIntervalMS: int(DefaultRefreshInterval / time.Millisecond),
		HistoryCapacity:   history.DefaultCapacity,
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && filepath.Dir(path) != "." {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// load reads the config file and applies it to the monitor's settings.
func (m *Monitor) load() error {
	data, err := os.ReadFile(m.ConfigFile)
	if err != nil {
		return fmt.Errorf("unable to read configuration %s: %w", m.ConfigFile, err)
	}
	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("unable to parse configuration %s: %w", m.ConfigFile, err)
	}

	if strings.TrimSpace(cfg.RootPath) != "" {
		m.Paths = utils.NewPaths(cfg.RootPath)
	}
	if cfg.Port > 0 && cfg.Port <= 65535 {
		m.Port = cfg.Port
	}
	if cfg.RefreshIntervalMS > 0 {
		m.RefreshInterval = time.Duration(cfg.RefreshIntervalMS) * time.Millisecond
	}
	if cfg.HistoryCapacity > 0 {
		m.HistoryCapacity = cfg.HistoryCapacity
	}
	if cfg.TrayEnabled != nil {
		m.TrayEnabled = *cfg.TrayEnabled
	}
	if cfg.WMICmdlineEnabled != nil {
		m.WMICmdlineEnabled = *cfg.WMICmdlineEnabled
	}
	m.TLSEnabled = cfg.TLSEnabled
	m.TLSCertPath = strings.TrimSpace(cfg.TLSCertPath)
	m.TLSKeyPath = strings.TrimSpace(cfg.TLSKeyPath)
	m.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	m.PasswordHash = strings.TrimSpace(cfg.PasswordHash)
	m.AlertWebhookURL = strings.TrimSpace(cfg.AlertWebhookURL)
	if cfg.AlertThresholdPercent > 0 && cfg.AlertThresholdPercent <= 100 {
		m.AlertThreshold = cfg.AlertThresholdPercent
	}
	if cfg.AlertSustainedTicks > 0 {
		m.AlertSustainedTicks = cfg.AlertSustainedTicks
	}
	return nil
}
