package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Mailbox  MailboxConfig
	Vision   VisionConfig
	Pipeline PipelineConfig
	Archive  ArchiveConfig
	Notify   NotifyConfig
	Log      LogConfig
}

// ServerConfig holds operator HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`

	// AllowedOrigins lists the review UI origins accepted by CORS.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MailboxConfig holds IMAP attachment store settings.
type MailboxConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TLS            bool          `mapstructure:"tls"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// Addr returns host:port for dialing.
func (m *MailboxConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// VisionConfig holds settings for the multimodal extraction model.
type VisionConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	Endpoint        string  `mapstructure:"endpoint"`
	TimeoutSecs     int     `mapstructure:"timeout_secs"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
}

// PipelineConfig holds batch orchestration settings.
type PipelineConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	Concurrency  int           `mapstructure:"concurrency"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// ArchiveConfig holds settings for archiving raw attachments to S3.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// NotifyConfig holds batch report email settings.
type NotifyConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	FromName    string   `mapstructure:"from_name"`
	Recipients  []string `mapstructure:"recipients"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Development reports whether the logger should use the console encoder.
func (l *LogConfig) Development() bool {
	return l.Format == "console"
}

// Load reads configuration from an optional .env file and environment
// variables with the INTAKE_ prefix.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "http://localhost:3000")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "intake")
	v.SetDefault("db.password", "intake_secret")
	v.SetDefault("db.name", "intake_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// Mailbox defaults
	v.SetDefault("mailbox.host", "localhost")
	v.SetDefault("mailbox.port", 993)
	v.SetDefault("mailbox.username", "")
	v.SetDefault("mailbox.password", "")
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("mailbox.dial_timeout", "15s")
	v.SetDefault("mailbox.command_timeout", "60s")

	// Vision defaults
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", "gemini-2.0-flash")
	v.SetDefault("vision.endpoint", "")
	v.SetDefault("vision.timeout_secs", 90)
	v.SetDefault("vision.temperature", 0.1)
	v.SetDefault("vision.max_output_tokens", 2048)

	// Pipeline defaults
	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.poll_interval", "5m")

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.region", "sa-east-1")
	v.SetDefault("archive.bucket", "intake-attachments")
	v.SetDefault("archive.prefix", "intake")
	v.SetDefault("archive.endpoint", "")

	// Notify defaults
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.region", "sa-east-1")
	v.SetDefault("notify.from_address", "intake@localhost")
	v.SetDefault("notify.from_name", "Intake Pipeline")
	v.SetDefault("notify.recipients", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                "INTAKE_SERVER_PORT",
		"server.read_timeout":        "INTAKE_SERVER_READ_TIMEOUT",
		"server.write_timeout":       "INTAKE_SERVER_WRITE_TIMEOUT",
		"server.environment":         "INTAKE_SERVER_ENVIRONMENT",
		"server.allowed_origins":     "INTAKE_SERVER_ALLOWED_ORIGINS",
		"db.host":                    "INTAKE_DB_HOST",
		"db.port":                    "INTAKE_DB_PORT",
		"db.user":                    "INTAKE_DB_USER",
		"db.password":                "INTAKE_DB_PASSWORD",
		"db.name":                    "INTAKE_DB_NAME",
		"db.sslmode":                 "INTAKE_DB_SSLMODE",
		"db.max_open":                "INTAKE_DB_MAX_OPEN",
		"db.max_idle":                "INTAKE_DB_MAX_IDLE",
		"mailbox.host":               "INTAKE_MAILBOX_HOST",
		"mailbox.port":               "INTAKE_MAILBOX_PORT",
		"mailbox.username":           "INTAKE_MAILBOX_USERNAME",
		"mailbox.password":           "INTAKE_MAILBOX_PASSWORD",
		"mailbox.tls":                "INTAKE_MAILBOX_TLS",
		"mailbox.dial_timeout":       "INTAKE_MAILBOX_DIAL_TIMEOUT",
		"mailbox.command_timeout":    "INTAKE_MAILBOX_COMMAND_TIMEOUT",
		"vision.api_key":             "INTAKE_VISION_API_KEY",
		"vision.model":               "INTAKE_VISION_MODEL",
		"vision.endpoint":            "INTAKE_VISION_ENDPOINT",
		"vision.timeout_secs":        "INTAKE_VISION_TIMEOUT_SECS",
		"vision.temperature":         "INTAKE_VISION_TEMPERATURE",
		"vision.max_output_tokens":   "INTAKE_VISION_MAX_OUTPUT_TOKENS",
		"pipeline.batch_size":        "INTAKE_PIPELINE_BATCH_SIZE",
		"pipeline.concurrency":       "INTAKE_PIPELINE_CONCURRENCY",
		"pipeline.poll_interval":     "INTAKE_PIPELINE_POLL_INTERVAL",
		"archive.enabled":            "INTAKE_ARCHIVE_ENABLED",
		"archive.region":             "INTAKE_ARCHIVE_REGION",
		"archive.bucket":             "INTAKE_ARCHIVE_BUCKET",
		"archive.prefix":             "INTAKE_ARCHIVE_PREFIX",
		"archive.endpoint":           "INTAKE_ARCHIVE_ENDPOINT",
		"archive.access_key":         "INTAKE_ARCHIVE_ACCESS_KEY",
		"archive.secret_key":         "INTAKE_ARCHIVE_SECRET_KEY",
		"notify.provider":            "INTAKE_NOTIFY_PROVIDER",
		"notify.region":              "INTAKE_NOTIFY_REGION",
		"notify.from_address":        "INTAKE_NOTIFY_FROM_ADDRESS",
		"notify.from_name":           "INTAKE_NOTIFY_FROM_NAME",
		"notify.recipients":          "INTAKE_NOTIFY_RECIPIENTS",
		"log.level":                  "INTAKE_LOG_LEVEL",
		"log.format":                 "INTAKE_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if INTAKE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("INTAKE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:           serverPort,
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		Environment:    v.GetString("server.environment"),
		AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Mailbox = MailboxConfig{
		Host:           v.GetString("mailbox.host"),
		Port:           v.GetInt("mailbox.port"),
		Username:       v.GetString("mailbox.username"),
		Password:       v.GetString("mailbox.password"),
		TLS:            v.GetBool("mailbox.tls"),
		DialTimeout:    v.GetDuration("mailbox.dial_timeout"),
		CommandTimeout: v.GetDuration("mailbox.command_timeout"),
	}
	cfg.Vision = VisionConfig{
		APIKey:          v.GetString("vision.api_key"),
		Model:           v.GetString("vision.model"),
		Endpoint:        v.GetString("vision.endpoint"),
		TimeoutSecs:     v.GetInt("vision.timeout_secs"),
		Temperature:     v.GetFloat64("vision.temperature"),
		MaxOutputTokens: v.GetInt("vision.max_output_tokens"),
	}
	cfg.Pipeline = PipelineConfig{
		BatchSize:    v.GetInt("pipeline.batch_size"),
		Concurrency:  v.GetInt("pipeline.concurrency"),
		PollInterval: v.GetDuration("pipeline.poll_interval"),
	}
	cfg.Archive = ArchiveConfig{
		Enabled:   v.GetBool("archive.enabled"),
		Region:    v.GetString("archive.region"),
		Bucket:    v.GetString("archive.bucket"),
		Prefix:    v.GetString("archive.prefix"),
		Endpoint:  v.GetString("archive.endpoint"),
		AccessKey: v.GetString("archive.access_key"),
		SecretKey: v.GetString("archive.secret_key"),
	}
	cfg.Notify = NotifyConfig{
		Provider:    v.GetString("notify.provider"),
		Region:      v.GetString("notify.region"),
		FromAddress: v.GetString("notify.from_address"),
		FromName:    v.GetString("notify.from_name"),
		Recipients:  splitList(v.GetString("notify.recipients")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail deep inside a batch run.
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be positive, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.Concurrency > c.Pipeline.BatchSize {
		c.Pipeline.Concurrency = c.Pipeline.BatchSize
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive.enabled is set")
	}
	return nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
