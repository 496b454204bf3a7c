package config

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"server.http_host":           "HTTP_HOST",
	"server.http_port":           "HTTP_PORT",
	"bancho.protocol_version":    "PROTOCOL_VERSION",
	"bancho.mailbox_limit":       "MAILBOX_LIMIT",
	"bancho.session_timeout_sec": "SESSION_TIMEOUT",
	"bancho.sweep_interval_sec":  "SWEEP_INTERVAL",
	"bancho.welcome_message":     "WELCOME_MESSAGE",
	"database.path":              "DATABASE_PATH",
	"geoloc.db_path":             "GEOLOC_DB_DIR",
	"mqtt.enabled":               "MQTT_ENABLED",
	"mqtt.broker_url":            "MQTT_BROKER_URL",
	"mqtt.port":                  "MQTT_PORT",
	"mqtt.client_id":             "MQTT_CLIENT_ID",
	"metrics.enabled":            "METRICS_ENABLED",
	"security.allowed_origins":   "ALLOWED_ORIGINS",
	"security.rate_limit_rps":    "RATE_LIMIT_RPS",
	"security.admin_token":       "ADMIN_TOKEN",
	"logging.level":              "LOG_LEVEL",
	"logging.directory":          "LOG_DIR",
}

// LoadEnv builds a configuration from defaults overridden by environment
// variables. Channels and TLS settings are only configurable from file.
func LoadEnv() (*Config, error) {
	return loadEnv(viper.New())
}

func loadEnv(v *viper.Viper) (*Config, error) {
	def := DefaultConfig()
	v.SetDefault("server.http_host", def.Server.HTTPHost)
	v.SetDefault("server.http_port", def.Server.HTTPPort)
	v.SetDefault("bancho.protocol_version", def.Bancho.ProtocolVersion)
	v.SetDefault("bancho.mailbox_limit", def.Bancho.MailboxLimit)
	v.SetDefault("bancho.session_timeout_sec", def.Bancho.SessionTimeout)
	v.SetDefault("bancho.sweep_interval_sec", def.Bancho.SweepInterval)
	v.SetDefault("bancho.welcome_message", def.Bancho.WelcomeMessage)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("geoloc.db_path", def.Geoloc.DBPath)
	v.SetDefault("mqtt.enabled", def.MQTT.Enabled)
	v.SetDefault("mqtt.port", def.MQTT.Port)
	v.SetDefault("mqtt.client_id", def.MQTT.ClientID)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("security.rate_limit_rps", def.Security.RateLimitRPS)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.directory", def.Logging.Directory)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	cfg := def
	cfg.Server.HTTPHost = v.GetString("server.http_host")
	cfg.Server.HTTPPort = v.GetInt("server.http_port")
	cfg.Bancho.ProtocolVersion = v.GetInt32("bancho.protocol_version")
	cfg.Bancho.MailboxLimit = v.GetInt("bancho.mailbox_limit")
	cfg.Bancho.SessionTimeout = v.GetInt("bancho.session_timeout_sec")
	cfg.Bancho.SweepInterval = v.GetInt("bancho.sweep_interval_sec")
	cfg.Bancho.WelcomeMessage = v.GetString("bancho.welcome_message")
	cfg.Database.Path = v.GetString("database.path")
	cfg.Geoloc.DBPath = v.GetString("geoloc.db_path")
	cfg.MQTT.Enabled = v.GetBool("mqtt.enabled")
	cfg.MQTT.BrokerURL = v.GetString("mqtt.broker_url")
	cfg.MQTT.Port = v.GetInt("mqtt.port")
	cfg.MQTT.ClientID = v.GetString("mqtt.client_id")
	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	cfg.Security.RateLimitRPS = v.GetInt("security.rate_limit_rps")
	cfg.Security.AdminToken = v.GetString("security.admin_token")
	cfg.Logging.Level = strings.ToLower(v.GetString("logging.level"))
	cfg.Logging.Directory = v.GetString("logging.directory")
	if origins := v.GetString("security.allowed_origins"); origins != "" {
		cfg.Security.AllowedOrigins = strings.Split(origins, ",")
	}

	log.Info().Int("bindings", len(envBindings)).Msg("configuration loaded from environment")
	return cfg, nil
}
