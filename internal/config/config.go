package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"warkrs/internal/model"
)

type Config struct {
	Cookies       model.SessionCookies `yaml:"cookies" json:"cookies"`
	URLs          URLsConfig           `yaml:"urls" json:"urls"`
	TargetCourses map[string]string    `yaml:"target_courses" json:"target_courses"`
	Settings      Settings             `yaml:"settings" json:"settings"`
	Telegram      TelegramConfig       `yaml:"telegram" json:"telegram"`
	Email         EmailConfig          `yaml:"email" json:"email"`
	Storage       StorageConfig        `yaml:"storage" json:"storage"`
	Status        StatusConfig         `yaml:"status" json:"status"`
	Debug         DebugConfig          `yaml:"debug" json:"debug"`
}

type URLsConfig struct {
	// PilihMK lists the currently enrolled courses; SimpanKRS accepts the
	// registration form. Names follow the portal's own page names.
	PilihMK   string `yaml:"pilih_mk" json:"pilih_mk"`
	SimpanKRS string `yaml:"simpan_krs" json:"simpan_krs"`
}

type Settings struct {
	RequestTimeout    int     `yaml:"request_timeout" json:"request_timeout"`
	DelaySeconds      int     `yaml:"delay_seconds" json:"delay_seconds"`
	VerificationDelay int     `yaml:"verification_delay" json:"verification_delay"`
	InterRequestDelay int     `yaml:"inter_request_delay" json:"inter_request_delay"`
	RecoveryDelay     int     `yaml:"recovery_delay" json:"recovery_delay"`
	MaxRequestsPerSec float64 `yaml:"max_requests_per_sec" json:"max_requests_per_sec"`
	UserAgent         string  `yaml:"user_agent" json:"user_agent"`
}

func (s Settings) Timeout() time.Duration {
	if s.RequestTimeout <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.RequestTimeout) * time.Second
}

func (s Settings) CycleDelay() time.Duration {
	return time.Duration(max(s.DelaySeconds, 0)) * time.Second
}

func (s Settings) VerifyDelay() time.Duration {
	return time.Duration(max(s.VerificationDelay, 0)) * time.Second
}

func (s Settings) RequestDelay() time.Duration {
	return time.Duration(max(s.InterRequestDelay, 0)) * time.Second
}

func (s Settings) RecoveryPause() time.Duration {
	if s.RecoveryDelay <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.RecoveryDelay) * time.Second
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" json:"bot_token"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
}

func (t TelegramConfig) Configured() bool {
	return strings.TrimSpace(t.BotToken) != "" && strings.TrimSpace(t.ChatID) != ""
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	SMTPHost string `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port" json:"smtp_port"`
	From     string `yaml:"from" json:"from"`
	To       string `yaml:"to" json:"to"`
	Password string `yaml:"password" json:"password"`
}

type StorageConfig struct {
	// SQLitePath enables the attempt journal. Empty disables it; the loop
	// itself never reads past attempts back.
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

type StatusConfig struct {
	// Addr enables the local status/debug HTTP server, e.g. "127.0.0.1:8090".
	Addr string `yaml:"addr" json:"addr"`
}

type DebugConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// Load reads a config file, JSON or YAML depending on the extension
// (the original tooling shipped config.json; yaml is accepted for parity
// with the rest of our services), then applies env overrides and defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.RequestTimeout <= 0 {
		c.Settings.RequestTimeout = 20
	}
	if c.Settings.DelaySeconds <= 0 {
		c.Settings.DelaySeconds = 45
	}
	if c.Settings.VerificationDelay <= 0 {
		c.Settings.VerificationDelay = 2
	}
	if c.Settings.InterRequestDelay <= 0 {
		c.Settings.InterRequestDelay = 2
	}
	if c.Settings.RecoveryDelay <= 0 {
		c.Settings.RecoveryDelay = 30
	}
	if c.Settings.MaxRequestsPerSec <= 0 {
		c.Settings.MaxRequestsPerSec = 2
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	}
	if c.Email.SMTPPort <= 0 {
		c.Email.SMTPPort = 587
	}
	if c.Debug.Dir == "" {
		c.Debug.Dir = "./debug"
	}
}

// Validate is separate from Load so status/setup commands can inspect an
// incomplete config; the run path must call it before starting.
func (c Config) Validate() error {
	if !c.Cookies.Configured() {
		return errors.New("cookies are not configured; log in to the portal and copy the session cookies into the config")
	}
	if c.URLs.PilihMK == "" {
		return errors.New("urls.pilih_mk is required")
	}
	if c.URLs.SimpanKRS == "" {
		return errors.New("urls.simpan_krs is required")
	}
	if len(c.TargetCourses) == 0 {
		return errors.New("target_courses must contain at least one course")
	}
	for code, classID := range c.TargetCourses {
		if !model.ValidCourseCode(code) {
			return fmt.Errorf("target course %q does not match the expected code shape", code)
		}
		if strings.TrimSpace(classID) == "" {
			return fmt.Errorf("target course %q has an empty class id", code)
		}
	}
	return nil
}
