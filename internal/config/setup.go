package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard walks an operator through the settings a fresh install
// needs and saves the result.
func RunSetupWizard(cfg *Config) error {
	return runSetupWizard(bufio.NewReader(os.Stdin), cfg)
}

func runSetupWizard(reader *bufio.Reader, cfg *Config) error {
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║          Soumetsu - First Run Setup          ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("── Listener ──")

	cfg.Server.HTTPHost = promptString(reader, "HTTP host", cfg.Server.HTTPHost)
	cfg.Server.HTTPPort = promptInt(reader, "HTTP port", cfg.Server.HTTPPort)

	fmt.Println()
	fmt.Println("── Storage ──")

	cfg.Database.Path = promptString(reader, "SQLite database path", cfg.Database.Path)
	cfg.Geoloc.DBPath = promptString(reader, "MaxMind database path (blank to disable)", cfg.Geoloc.DBPath)

	fmt.Println()
	fmt.Println("── Bancho ──")

	cfg.Bancho.WelcomeMessage = promptString(reader, "Login notification", cfg.Bancho.WelcomeMessage)
	cfg.Bancho.MailboxLimit = promptInt(reader, "Mailbox limit in bytes (0 = unbounded)", cfg.Bancho.MailboxLimit)
	cfg.Security.AdminToken = promptPassword(reader, "Admin API token (blank to disable)")

	fmt.Println()
	fmt.Println("── MQTT Telemetry ──")

	cfg.MQTT.Enabled = promptBool(reader, "Enable MQTT telemetry", cfg.MQTT.Enabled)
	if cfg.MQTT.Enabled {
		cfg.MQTT.BrokerURL = promptString(reader, "Broker host", cfg.MQTT.BrokerURL)
		cfg.MQTT.Port = promptInt(reader, "Broker port", cfg.MQTT.Port)
	}

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Println("\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Printf("  - [%s] %s\n", e.Field, e.Message)
		}
		retry := promptString(reader, "Would you like to try again? (yes/no)", "yes")
		if strings.ToLower(retry) == "yes" {
			return runSetupWizard(reader, cfg)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved to " + cfg.Path())
	fmt.Println()

	return nil
}

func promptString(reader *bufio.Reader, prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("  %s: ", prompt)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptPassword(reader *bufio.Reader, prompt string) string {
	fmt.Printf("  %s: ", prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func promptInt(reader *bufio.Reader, prompt string, defaultVal int) int {
	fmt.Printf("  %s [%d]: ", prompt, defaultVal)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Printf("    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func promptBool(reader *bufio.Reader, prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Printf("  %s [%s]: ", prompt, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
