package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the whole configuration.
func Validate(cfg *Config) *ValidationResult {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateBancho(&cfg.Bancho, result)
	validateStorage(cfg, result)
	validateMQTT(&cfg.MQTT, result)
	validateSecurity(&cfg.Security, result)

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		result.AddError("logging.level", fmt.Sprintf("unknown log level %q", cfg.Logging.Level))
	}

	return result
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	if strings.TrimSpace(s.HTTPHost) == "" {
		result.AddError("server.http_host", "listen host is required")
	} else if s.HTTPHost != "localhost" && net.ParseIP(s.HTTPHost) == nil {
		result.AddWarning("server.http_host", fmt.Sprintf("%q is not an IP address", s.HTTPHost))
	}
	validatePort(s.HTTPPort, "server.http_port", result)
}

func validateBancho(b *BanchoConfig, result *ValidationResult) {
	if b.ProtocolVersion < 1 {
		result.AddError("bancho.protocol_version", "protocol version must be positive")
	}
	if b.MailboxLimit < 0 {
		result.AddError("bancho.mailbox_limit", "mailbox limit cannot be negative")
	} else if b.MailboxLimit == 0 {
		result.AddWarning("bancho.mailbox_limit", "mailboxes are unbounded, a stalled client can grow memory without limit")
	}
	if b.SessionTimeout < 30 {
		result.AddWarning("bancho.session_timeout_sec", "timeouts under 30s disconnect clients between polls")
	}
	if b.SweepInterval < 1 {
		result.AddError("bancho.sweep_interval_sec", "sweep interval must be at least 1 second")
	}

	seen := make(map[string]bool)
	for i, ch := range b.Channels {
		field := fmt.Sprintf("bancho.channels[%d]", i)
		if !strings.HasPrefix(ch.Name, "#") {
			result.AddError(field, fmt.Sprintf("channel %q must start with #", ch.Name))
		}
		if seen[ch.Name] {
			result.AddError(field, fmt.Sprintf("duplicate channel %q", ch.Name))
		}
		seen[ch.Name] = true
	}
}

func validateStorage(cfg *Config, result *ValidationResult) {
	if strings.TrimSpace(cfg.Database.Path) == "" {
		result.AddError("database.path", "database path is required")
	}
	if cfg.Geoloc.DBPath == "" {
		result.AddWarning("geoloc.db_path", "no geolocation database, countries come from user records")
	} else if _, err := os.Stat(cfg.Geoloc.DBPath); os.IsNotExist(err) {
		result.AddWarning("geoloc.db_path", fmt.Sprintf("file does not exist: %s", cfg.Geoloc.DBPath))
	}
}

func validateMQTT(m *MQTTConfig, result *ValidationResult) {
	if !m.Enabled {
		return
	}
	if strings.TrimSpace(m.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if m.Port < 1 || m.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if m.UseTLS && (m.CertFile == "") != (m.KeyFile == "") {
		result.AddError("mqtt.cert_file", "client certificate and key must be set together")
	}
}

func validateSecurity(s *SecurityConfig, result *ValidationResult) {
	if s.TLSEnabled {
		if strings.TrimSpace(s.TLSCertFile) == "" {
			result.AddError("security.tls_cert_file",
				"TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(s.TLSKeyFile) == "" {
			result.AddError("security.tls_key_file",
				"TLS key file is required when TLS is enabled")
		}
	}

	if s.RateLimitRPS < 1 {
		result.AddWarning("security.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the server to abuse")
	}

	if s.AdminToken == "" {
		result.AddWarning("security.admin_token", "admin API is disabled without a token")
	} else if len(s.AdminToken) < 16 {
		result.AddWarning("security.admin_token", "admin token is shorter than 16 characters")
	}

	for _, entry := range s.IPWhitelist {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				result.AddError("security.ip_whitelist", fmt.Sprintf("invalid address or CIDR %q", entry))
			}
		}
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
