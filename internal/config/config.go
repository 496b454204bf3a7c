// Package config handles configuration loading, validation, and persistence
// for the Soumetsu bancho server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultHTTPPort   = 8080

	// EnvModeVariable switches Load to environment variables when set to "1".
	EnvModeVariable = "USE_ENV_CONFIG"
)

// Config is the root configuration structure for Soumetsu.
type Config struct {
	mu   sync.RWMutex
	path string

	Server   ServerConfig   `json:"server"`
	Bancho   BanchoConfig   `json:"bancho"`
	Database DatabaseConfig `json:"database"`
	Geoloc   GeolocConfig   `json:"geoloc"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Metrics  MetricsConfig  `json:"metrics"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	HTTPHost string `json:"http_host"`
	HTTPPort int    `json:"http_port"`
}

// BanchoConfig holds protocol and session settings.
type BanchoConfig struct {
	ProtocolVersion int32           `json:"protocol_version"`
	MailboxLimit    int             `json:"mailbox_limit"`
	SessionTimeout  int             `json:"session_timeout_sec"`
	SweepInterval   int             `json:"sweep_interval_sec"`
	WelcomeMessage  string          `json:"welcome_message"`
	Channels        []ChannelConfig `json:"channels"`
}

// ChannelConfig describes a chat channel created at startup.
type ChannelConfig struct {
	Name     string `json:"name"`
	Topic    string `json:"topic"`
	AutoJoin bool   `json:"auto_join"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// GeolocConfig points at a MaxMind city or country database.
type GeolocConfig struct {
	DBPath string `json:"db_path"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"broker_url"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	CertFile    string `json:"cert_file"`
	KeyFile     string `json:"key_file"`
	CAFile      string `json:"ca_file"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	TLSEnabled     bool     `json:"tls_enabled"`
	TLSCertFile    string   `json:"tls_cert_file"`
	TLSKeyFile     string   `json:"tls_key_file"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
	IPWhitelist    []string `json:"ip_whitelist"`
	AdminToken     string   `json:"admin_token"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPHost: "127.0.0.1",
			HTTPPort: DefaultHTTPPort,
		},
		Bancho: BanchoConfig{
			ProtocolVersion: 19,
			MailboxLimit:    1 << 20,
			SessionTimeout:  300,
			SweepInterval:   30,
			WelcomeMessage:  "Welcome to Soumetsu!",
			Channels: []ChannelConfig{
				{Name: "#osu", Topic: "General discussion.", AutoJoin: true},
				{Name: "#announce", Topic: "Announcements from the server.", AutoJoin: true},
			},
		},
		Database: DatabaseConfig{
			Path: "data/soumetsu.db",
		},
		Geoloc: GeolocConfig{
			DBPath: "/home/db/ip.mmdb",
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			Port:        1883,
			ClientID:    "soumetsu",
			TopicPrefix: "soumetsu",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "soumetsu",
		},
		Security: SecurityConfig{
			RateLimitRPS: 100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Load reads configuration from the environment when USE_ENV_CONFIG=1, and
// from configDir/config.json otherwise.
func Load(configDir string) (*Config, error) {
	if os.Getenv(EnvModeVariable) == "1" {
		return LoadEnv()
	}
	return LoadFile(configDir)
}

// LoadFile reads configuration from a JSON file, creating it with defaults
// when it does not exist.
func LoadFile(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save so config.json picks up keys added since it was written.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk. Env-loaded configs have no
// path and are not saved.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		return fmt.Errorf("config has no file path")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetBancho returns a copy of the bancho configuration.
func (c *Config) GetBancho() BanchoConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b := c.Bancho
	b.Channels = append([]ChannelConfig(nil), c.Bancho.Channels...)
	return b
}

// SetWelcomeMessage replaces the notification sent on login.
func (c *Config) SetWelcomeMessage(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Bancho.WelcomeMessage = msg
}

// GetServer returns a copy of the listener configuration.
func (c *Config) GetServer() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// GetSecurity returns a copy of the security configuration.
func (c *Config) GetSecurity() SecurityConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.Security
	s.AllowedOrigins = append([]string(nil), c.Security.AllowedOrigins...)
	s.IPWhitelist = append([]string(nil), c.Security.IPWhitelist...)
	return s
}

// Redacted returns a copy safe to expose over the admin API.
func (c *Config) Redacted() map[string]interface{} {
	c.mu.RLock()
	data, _ := json.Marshal(c)
	c.mu.RUnlock()

	m := make(map[string]interface{})
	json.Unmarshal(data, &m)
	if sec, ok := m["security"].(map[string]interface{}); ok && sec["admin_token"] != "" {
		sec["admin_token"] = "********"
	}
	return m
}

// Path returns the config file path. It is empty in env mode.
func (c *Config) Path() string {
	return c.path
}
