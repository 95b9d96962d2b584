package logger

import (
	"io"
	"os"
	"strconv"
)

// Environment variables read by LoadFromEnv. A set variable wins over the
// value passed in Defaults.
const (
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFormat     = "LOG_FORMAT"
	EnvServiceName   = "SERVICE_NAME"
	EnvAppEnv        = "APP_ENV"
	EnvLogFile       = "LOG_FILE"
	EnvLogFileOnly   = "LOG_FILE_ONLY"
	EnvLogMaxSize    = "LOG_MAX_SIZE"
	EnvLogMaxBackups = "LOG_MAX_BACKUPS"
	EnvLogMaxAge     = "LOG_MAX_AGE"
	EnvLogCompress   = "LOG_COMPRESS"
)

// EnvConfig holds extended logger configuration loaded from environment variables.
type EnvConfig struct {
	Level       string    // Log level: debug, info, warn, error
	Format      string    // Output format: json, text
	Output      io.Writer // Output destination (highest priority)
	ServiceName string    // Service name for log tagging

	Environment string // Environment: local, dev, prod

	LogFile     string // Log file path
	LogFileOnly bool   // Output only to file (not stdout)

	MaxSize    int  // Max file size in MB before rotation
	MaxBackups int  // Number of backup files to keep
	MaxAge     int  // Max days to keep backup files
	Compress   bool // Compress rotated files
}

// Defaults seeds LoadFromEnvWith, typically from the logging section of the
// config file. Zero values and nil pointers keep the built-in default.
type Defaults struct {
	Level      string
	Format     string
	File       string
	FileOnly   *bool
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   *bool
}

// LoadFromEnv loads configuration from environment variables over the
// built-in defaults.
func LoadFromEnv() *EnvConfig {
	return LoadFromEnvWith(Defaults{})
}

// LoadFromEnvWith loads configuration from environment variables. Values in d
// replace the built-in defaults; a set LOG_* variable replaces both.
func LoadFromEnvWith(d Defaults) *EnvConfig {
	return &EnvConfig{
		Level:       getEnv(EnvLogLevel, orString(d.Level, "info")),
		Format:      getEnv(EnvLogFormat, orString(d.Format, "json")),
		ServiceName: getEnv(EnvServiceName, "crudgate"),
		Environment: getEnv(EnvAppEnv, "local"),

		LogFile:     getEnv(EnvLogFile, orString(d.File, "/var/log/crudgate/app.log")),
		LogFileOnly: getEnvBool(EnvLogFileOnly, orBool(d.FileOnly, false)),

		MaxSize:    getEnvInt(EnvLogMaxSize, orInt(d.MaxSize, 100)),
		MaxBackups: getEnvInt(EnvLogMaxBackups, orInt(d.MaxBackups, 7)),
		MaxAge:     getEnvInt(EnvLogMaxAge, orInt(d.MaxAge, 30)),
		Compress:   getEnvBool(EnvLogCompress, orBool(d.Compress, true)),
	}
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orBool(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool falls back to defaultVal when the variable is unset or unparsable.
func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
