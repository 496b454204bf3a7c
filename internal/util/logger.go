// Package util provides logging and host helpers shared by the Soumetsu packages.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const logFilePrefix = "soumetsu_"

// LogConfig holds configuration for the logging system.
type LogConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Directory:  "logs",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    true,
	}
}

// InitLogger replaces the zerolog global logger. Records go as JSON to a
// dated file under cfg.Directory and, if cfg.Console is set, to stdout in
// human-readable form. An empty Directory disables the file.
func InitLogger(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var (
		writers     []io.Writer
		logFilePath string
	)

	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", cfg.Directory, err)
		}
		logFilePath = logFileFor(cfg.Directory, time.Now(), int64(cfg.MaxSizeMB)<<20)
		logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
		}
		writers = append(writers, logFile)
	}

	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "soumetsu").
		Caller().
		Logger()

	log.Info().
		Str("level", level.String()).
		Str("log_file", logFilePath).
		Msg("logger initialized")

	if cfg.Directory != "" && cfg.MaxBackups > 0 {
		go cleanOldLogs(cfg.Directory, cfg.MaxBackups)
	}
	return nil
}

// logFileFor picks today's log file, moving on to a numbered sibling once
// the current one reaches maxSize bytes. A zero maxSize never rolls.
func logFileFor(dir string, now time.Time, maxSize int64) string {
	base := logFilePrefix + now.Format("2006-01-02")
	path := filepath.Join(dir, base+".log")
	for i := 1; maxSize > 0; i++ {
		info, err := os.Stat(path)
		if err != nil || info.Size() < maxSize {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s.%d.log", base, i))
	}
	return path
}

// cleanOldLogs keeps the newest maxBackups log files. Names embed the date,
// so lexical order is age order within a day's numbered files too.
func cleanOldLogs(directory string, maxBackups int) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, logFilePrefix) && filepath.Ext(name) == ".log" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for i := 0; i < len(names)-maxBackups; i++ {
		path := filepath.Join(directory, names[i])
		if err := os.Remove(path); err == nil {
			log.Debug().Str("file", path).Msg("removed old log file")
		}
	}
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
