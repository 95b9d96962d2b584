package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/timmy/crudgate/internal/logger"
	"github.com/timmy/crudgate/internal/masking"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Masking  MaskingConfig  `mapstructure:"masking"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

type ServerConfig struct {
	Port  int        `mapstructure:"port"`
	Mode  string     `mapstructure:"mode"`
	Layer string     `mapstructure:"layer"` // layer name stamped on every log entry
	CORS  CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the log record store.
// Driver is "sqlite" (default) or "postgres".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	URL             string        `mapstructure:"url"` // full postgres URL, wins over the parts
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // gorm logger: silent, error, warn, info
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		if d.URL != "" {
			return d.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
	}
	return d.Path
}

type LoggingConfig struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	File         string `mapstructure:"file"`
	FileOnly     bool   `mapstructure:"file_only"`
	MaxSize      int    `mapstructure:"max_size"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAge       int    `mapstructure:"max_age"`
	Compress     bool   `mapstructure:"compress"`
	MaxBodyBytes int    `mapstructure:"max_body_bytes"`
	PersistLogs  bool   `mapstructure:"persist_logs"` // also write entries to the database
	SlowMs       int64  `mapstructure:"slow_ms"`      // performance threshold
}

// EnvConfig builds the logger configuration. Section values are defaults;
// LOG_* environment variables override them.
func (l LoggingConfig) EnvConfig() *logger.EnvConfig {
	fileOnly, compress := l.FileOnly, l.Compress
	return logger.LoadFromEnvWith(logger.Defaults{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		FileOnly:   &fileOnly,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   &compress,
	})
}

// MaskingConfig holds the sensitive field names. A non-empty SensitiveFields
// replaces the built-in list; ExtraFields is appended to whichever list is used.
// SensitiveHeaders only adds to the built-in header denylist.
type MaskingConfig struct {
	SensitiveFields  []string `mapstructure:"sensitive_fields"`
	ExtraFields      []string `mapstructure:"extra_fields"`
	SensitiveHeaders []string `mapstructure:"sensitive_headers"`
}

// Options converts the section into masking options.
func (m MaskingConfig) Options() masking.Options {
	opts := masking.DefaultOptions()
	if len(m.SensitiveFields) > 0 {
		opts = masking.Options{SensitiveFields: append([]string(nil), m.SensitiveFields...)}
	}
	opts.SensitiveHeaders = append([]string(nil), m.SensitiveHeaders...)
	return opts.WithExtraFields(m.ExtraFields...)
}

type UpstreamConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
}

// ArchiveConfig points at the S3-compatible bucket receiving exported records.
type ArchiveConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; detected from endpoint when empty
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("upstream.base_url", "UPSTREAM_BASE_URL")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")
	v.BindEnv("archive.bucket", "ARCHIVE_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Comma separated env values arrive as a single element
	cfg.Masking.SensitiveFields = splitList(cfg.Masking.SensitiveFields)
	cfg.Masking.ExtraFields = splitList(cfg.Masking.ExtraFields)
	cfg.Masking.SensitiveHeaders = splitList(cfg.Masking.SensitiveHeaders)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.layer", "api")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/crudgate.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.max_body_bytes", 64*1024)
	v.SetDefault("logging.persist_logs", true)
	v.SetDefault("logging.slow_ms", 1000)

	v.SetDefault("masking.sensitive_fields", []string{})
	v.SetDefault("masking.extra_fields", []string{})

	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.retry_count", 3)
	v.SetDefault("upstream.retry_wait", 200*time.Millisecond)
	v.SetDefault("upstream.retry_max_wait", 2*time.Second)

	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.bucket", "crudgate-logs")
	v.SetDefault("archive.prefix", "logs")
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
