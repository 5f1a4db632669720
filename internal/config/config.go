// Package config loads configuration for touchlink.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/frudas24/touchlink/internal/control"
	"github.com/frudas24/touchlink/internal/gesture"
	"github.com/frudas24/touchlink/internal/prefs"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr        = "0.0.0.0:8787"
	defaultDataDir           = "./data"
	defaultPort              = 8080
	defaultSensitivity       = 1.0
	defaultScrollSensitivity = 1.0
	defaultConnectWaitMs     = 2000
	defaultDialTimeoutMs     = 15000
	defaultKeepaliveMs       = 30000
	defaultMoveThrottleMs    = 8
)

// Config holds runtime configuration values.
type Config struct {
	ListenAddr        string  `yaml:"listen_addr"`
	DataDir           string  `yaml:"data_dir"`
	PrefsPath         string  `yaml:"prefs_path"`
	Host              string  `yaml:"host"`
	Port              int     `yaml:"port"`
	AutoConnect       bool    `yaml:"auto_connect"`
	Sensitivity       float32 `yaml:"sensitivity"`
	ScrollSensitivity float32 `yaml:"scroll_sensitivity"`
	Gestures          bool    `yaml:"gestures"`
	Scrolling         bool    `yaml:"scrolling"`
	RightClick        bool    `yaml:"right_click"`
	DoubleClick       bool    `yaml:"double_click"`
	ConnectWaitMs     int     `yaml:"connect_wait_ms"`
	DialTimeoutMs     int     `yaml:"dial_timeout_ms"`
	KeepaliveMs       int     `yaml:"keepalive_ms"`
	MoveThrottleMs    int     `yaml:"move_throttle_ms"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:        defaultListenAddr,
		DataDir:           defaultDataDir,
		Port:              defaultPort,
		AutoConnect:       true,
		Sensitivity:       defaultSensitivity,
		ScrollSensitivity: defaultScrollSensitivity,
		Gestures:          true,
		Scrolling:         true,
		RightClick:        true,
		DoubleClick:       true,
		ConnectWaitMs:     defaultConnectWaitMs,
		DialTimeoutMs:     defaultDialTimeoutMs,
		KeepaliveMs:       defaultKeepaliveMs,
		MoveThrottleMs:    defaultMoveThrottleMs,
	}
}

// Load reads configuration from saved preferences, an optional YAML file,
// <data dir>/.env and environment variables, in that order of increasing
// precedence. An empty path falls back to TOUCHLINK_CONFIG.
func Load(path string) (Config, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("TOUCHLINK_CONFIG"))
	}
	var file []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		file = data
	}

	// The first pass locates the data dir and the prefs file.
	cfg, err := layer(Default(), path, file)
	if err != nil {
		return Config{}, err
	}
	if cfg.PrefsPath == "" {
		cfg.PrefsPath = filepath.Join(cfg.DataDir, "prefs.json")
	}
	saved, err := prefs.Load(cfg.PrefsPath)
	if err != nil {
		return Config{}, fmt.Errorf("load prefs %s: %w", cfg.PrefsPath, err)
	}
	if !saved.Empty() {
		prefsPath := cfg.PrefsPath
		if cfg, err = layer(Default().WithPrefs(saved), path, file); err != nil {
			return Config{}, err
		}
		cfg.PrefsPath = prefsPath
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// layer applies the YAML file, <data dir>/.env and the environment onto base.
func layer(base Config, path string, file []byte) (Config, error) {
	if file != nil {
		if err := yaml.Unmarshal(file, &base); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	base.DataDir = envString("DATA_DIR", base.DataDir)
	if err := loadEnvFile(filepath.Join(base.DataDir, ".env")); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&base); err != nil {
		return Config{}, err
	}
	return base, nil
}

// WithPrefs overlays the remembered fields of p onto c.
func (c Config) WithPrefs(p prefs.Prefs) Config {
	if p.Host != "" {
		c.Host = p.Host
	}
	if p.Port > 0 && p.Port <= 65535 {
		c.Port = p.Port
	}
	if p.Sensitivity != nil {
		c.Sensitivity = gesture.ClampSensitivity(*p.Sensitivity)
	}
	if p.ScrollSensitivity != nil {
		c.ScrollSensitivity = gesture.ClampScrollSensitivity(*p.ScrollSensitivity)
	}
	if p.Gestures != nil {
		c.Gestures = *p.Gestures
	}
	if p.Scrolling != nil {
		c.Scrolling = *p.Scrolling
	}
	if p.RightClick != nil {
		c.RightClick = *p.RightClick
	}
	if p.DoubleClick != nil {
		c.DoubleClick = *p.DoubleClick
	}
	return c
}

// Prefs captures the fields worth remembering between runs.
func (c Config) Prefs() prefs.Prefs {
	return prefs.Prefs{
		Host:              c.Host,
		Port:              c.Port,
		Sensitivity:       &c.Sensitivity,
		ScrollSensitivity: &c.ScrollSensitivity,
		Gestures:          &c.Gestures,
		Scrolling:         &c.Scrolling,
		RightClick:        &c.RightClick,
		DoubleClick:       &c.DoubleClick,
	}
}

// applyEnv overrides cfg with environment variables.
func applyEnv(cfg *Config) error {
	cfg.ListenAddr = envString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)
	cfg.PrefsPath = envString("PREFS_PATH", cfg.PrefsPath)
	cfg.Host = envString("TOUCHLINK_HOST", cfg.Host)
	cfg.AutoConnect = envBool("AUTO_CONNECT", cfg.AutoConnect)
	cfg.Gestures = envBool("ENABLE_GESTURES", cfg.Gestures)
	cfg.Scrolling = envBool("ENABLE_SCROLLING", cfg.Scrolling)
	cfg.RightClick = envBool("ENABLE_RIGHT_CLICK", cfg.RightClick)
	cfg.DoubleClick = envBool("ENABLE_DOUBLE_CLICK", cfg.DoubleClick)

	ints := []struct {
		key string
		dst *int
	}{
		{"TOUCHLINK_PORT", &cfg.Port},
		{"CONNECT_WAIT_MS", &cfg.ConnectWaitMs},
		{"DIAL_TIMEOUT_MS", &cfg.DialTimeoutMs},
		{"KEEPALIVE_MS", &cfg.KeepaliveMs},
		{"MOVE_THROTTLE_MS", &cfg.MoveThrottleMs},
	}
	for _, f := range ints {
		v, err := envInt(f.key, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	sens, err := envFloat("SENSITIVITY", cfg.Sensitivity)
	if err != nil {
		return err
	}
	cfg.Sensitivity = sens

	scroll, err := envFloat("SCROLL_SENSITIVITY", cfg.ScrollSensitivity)
	if err != nil {
		return err
	}
	cfg.ScrollSensitivity = scroll
	return nil
}

// validate checks ranges and clamps sensitivities.
func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("TOUCHLINK_PORT must be 0-65535")
	}
	if c.ConnectWaitMs <= 0 {
		return fmt.Errorf("CONNECT_WAIT_MS must be > 0")
	}
	if c.DialTimeoutMs <= 0 {
		return fmt.Errorf("DIAL_TIMEOUT_MS must be > 0")
	}
	if c.KeepaliveMs <= 0 {
		return fmt.Errorf("KEEPALIVE_MS must be > 0")
	}
	if c.MoveThrottleMs <= 0 {
		return fmt.Errorf("MOVE_THROTTLE_MS must be > 0")
	}
	c.Sensitivity = gesture.ClampSensitivity(c.Sensitivity)
	c.ScrollSensitivity = gesture.ClampScrollSensitivity(c.ScrollSensitivity)
	return nil
}

// GestureSettings returns the engine settings.
func (c Config) GestureSettings() gesture.Settings {
	return gesture.Settings{
		Sensitivity:       c.Sensitivity,
		ScrollSensitivity: c.ScrollSensitivity,
		Gestures:          c.Gestures,
	}
}

// Features returns the dispatcher toggles.
func (c Config) Features() control.Features {
	return control.Features{Scrolling: c.Scrolling, RightClick: c.RightClick, DoubleClick: c.DoubleClick}
}

// ConnectWait returns the connect wait as a duration.
func (c Config) ConnectWait() time.Duration {
	return time.Duration(c.ConnectWaitMs) * time.Millisecond
}

// DialTimeout returns the dial timeout as a duration.
func (c Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}

// Keepalive returns the keepalive interval as a duration.
func (c Config) Keepalive() time.Duration {
	return time.Duration(c.KeepaliveMs) * time.Millisecond
}

// MoveThrottle returns the minimum spacing between moves.
func (c Config) MoveThrottle() time.Duration {
	return time.Duration(c.MoveThrottleMs) * time.Millisecond
}

// envString returns an env override when present, otherwise a default.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns an int env override when present, otherwise a default.
func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// envFloat returns a float env override when present, otherwise a default.
func envFloat(key string, def float32) (float32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return float32(value), nil
}

// envBool returns a bool env override when present, otherwise a default.
func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// loadEnvFile loads KEY=VALUE pairs from a .env file.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.Trim(strings.TrimSpace(value), `"'`), true
}
