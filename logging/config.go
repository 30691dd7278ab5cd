package logging

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config represents the logger configuration.
type Config struct {
	// Dir is the optional directory holding <Service>.log. File logging is enabled
	// only when that file already exists and is writable.
	Dir string `mapstructure:"dir" json:"dir" yaml:"dir"`

	// Service names the process; it is the logger name and the log file base name.
	Service string `mapstructure:"service" json:"service" yaml:"service"`

	// Level is the minimum console level (debug, info, warn, error).
	Level string `mapstructure:"level" json:"level" yaml:"level" default:"debug"`

	// FileLevel is the minimum level written to the log file.
	FileLevel string `mapstructure:"file-level" json:"fileLevel" yaml:"file-level" default:"info"`

	// Format is the log format (json or console).
	Format string `mapstructure:"format" json:"format" yaml:"format" default:"console"`

	// TimeFormat is the time format string (uses Go time format).
	TimeFormat string `mapstructure:"time-format" json:"timeFormat" yaml:"time-format"`

	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	MaxSize int `mapstructure:"max-size" json:"maxSize" yaml:"max-size" default:"100"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `mapstructure:"max-backups" json:"maxBackups" yaml:"max-backups" default:"10"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `mapstructure:"max-age" json:"maxAge" yaml:"max-age" default:"7"`

	// Compress determines if the rotated log files should be compressed using gzip.
	Compress bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	// ShowLineNumber enables adding caller information to log entries.
	ShowLineNumber bool `mapstructure:"show-line-number" json:"showLineNumber" yaml:"show-line-number"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Service:    "app",
		Level:      "debug",
		FileLevel:  "info",
		Format:     "console",
		TimeFormat: "2006-01-02 15:04:05.000",
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     7,
	}
}

// FilePath returns <Dir>/<Service>.log, or "" when no directory is configured.
func (c Config) FilePath() string {
	if c.Dir == "" {
		return ""
	}
	return filepath.Join(c.Dir, c.Service+".log")
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}

// applyDefaults applies default values to empty fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Service == "" {
		c.Service = defaults.Service
	}
	if c.Level == "" {
		c.Level = defaults.Level
	}
	if c.FileLevel == "" {
		c.FileLevel = defaults.FileLevel
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.TimeFormat == "" {
		c.TimeFormat = defaults.TimeFormat
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
}
