// Package config loads the daemon configuration from a TOML file,
// overlaying explicitly set keys onto the built-in defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon's runtime configuration.
type Config struct {
	ListenAddr    string
	DataDir       string
	AuthDir       string
	UploadsDir    string
	IndexFile     string
	CountryPrefix string
	JIDDomain     string

	RetryLimit     int
	ReconnectDelay time.Duration
	LoginCodeTTL   time.Duration
	QueryTimeout   time.Duration

	LogLevel string
	LogJSON  bool
}

// Default returns the built-in configuration. Paths derived from the
// data directory are resolved by ApplyDerived.
func Default() Config {
	return Config{
		ListenAddr:     ":3000",
		DataDir:        "./data",
		CountryPrefix:  "62",
		JIDDomain:      "s.whatsapp.net",
		RetryLimit:     3,
		ReconnectDelay: 5 * time.Second,
		LoginCodeTTL:   20 * time.Second,
		QueryTimeout:   60 * time.Second,
		LogLevel:       "info",
	}
}

// ApplyDerived fills the path fields that default relative to DataDir.
func (c *Config) ApplyDerived() {
	if c.AuthDir == "" {
		c.AuthDir = filepath.Join(c.DataDir, "auth")
	}
	if c.UploadsDir == "" {
		c.UploadsDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.IndexFile == "" {
		c.IndexFile = filepath.Join(c.DataDir, "sessions.json")
	}
}

// fileConfig maps config.toml keys onto Config fields.
type fileConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	DataDir        string `toml:"data_dir"`
	AuthDir        string `toml:"auth_dir"`
	UploadsDir     string `toml:"uploads_dir"`
	IndexFile      string `toml:"index_file"`
	CountryPrefix  string `toml:"country_prefix"`
	JIDDomain      string `toml:"jid_domain"`
	RetryLimit     int    `toml:"retry_limit"`
	ReconnectDelay string `toml:"reconnect_delay"`
	LoginCodeTTL   string `toml:"login_code_ttl"`
	QueryTimeout   string `toml:"query_timeout"`
	LogLevel       string `toml:"log_level"`
	LogJSON        bool   `toml:"log_json"`
}

// Load reads the TOML file at path and overlays every key it defines onto
// the defaults. Duration keys use Go duration syntax ("5s", "1m30s").
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.DataDir)
	}
	if meta.IsDefined("auth_dir") {
		cfg.AuthDir = strings.TrimSpace(raw.AuthDir)
	}
	if meta.IsDefined("uploads_dir") {
		cfg.UploadsDir = strings.TrimSpace(raw.UploadsDir)
	}
	if meta.IsDefined("index_file") {
		cfg.IndexFile = strings.TrimSpace(raw.IndexFile)
	}
	if meta.IsDefined("country_prefix") {
		cfg.CountryPrefix = strings.TrimSpace(raw.CountryPrefix)
	}
	if meta.IsDefined("jid_domain") {
		cfg.JIDDomain = strings.TrimSpace(raw.JIDDomain)
	}
	if meta.IsDefined("retry_limit") {
		cfg.RetryLimit = raw.RetryLimit
	}
	if meta.IsDefined("reconnect_delay") {
		if cfg.ReconnectDelay, err = time.ParseDuration(raw.ReconnectDelay); err != nil {
			return Config{}, fmt.Errorf("reconnect_delay: %w", err)
		}
	}
	if meta.IsDefined("login_code_ttl") {
		if cfg.LoginCodeTTL, err = time.ParseDuration(raw.LoginCodeTTL); err != nil {
			return Config{}, fmt.Errorf("login_code_ttl: %w", err)
		}
	}
	if meta.IsDefined("query_timeout") {
		if cfg.QueryTimeout, err = time.ParseDuration(raw.QueryTimeout); err != nil {
			return Config{}, fmt.Errorf("query_timeout: %w", err)
		}
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_json") {
		cfg.LogJSON = raw.LogJSON
	}

	cfg.ApplyDerived()
	return cfg, nil
}
