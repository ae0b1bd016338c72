package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Admin     AdminConfig
	Database  DatabaseConfig
	DynamoDB  DynamoDBConfig
	SQS       SQSConfig
	AWS       AWSConfig
	FileStore FileStoreConfig
	Reconcile ReconcileConfig
	Metrics   MetricsConfig
	Log       LogConfig
	HTTP      HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name     string
	Env      string // development, production
	Port     string
	Timezone string // IANA name used for display timestamps; "Local" uses the host zone
	RunLocal bool   // serve HTTP directly instead of running as a Lambda handler
}

// AdminConfig holds the shared administrative credential and session settings.
// Secret precedence for signing session tokens: SessionSecret, GenericSecret,
// Password, then a fixed development fallback.
type AdminConfig struct {
	Password      string
	SessionSecret string // dedicated admin session secret
	GenericSecret string // generic application session secret
	SessionTTL    time.Duration
}

// DatabaseConfig holds the structured store connection settings
type DatabaseConfig struct {
	URL             string // postgres://..., sqlite://path, file:path or path.db
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	LogQueries      bool
}

// DynamoDBConfig holds DynamoDB table names
type DynamoDBConfig struct {
	OrdersTable      string
	IdempotencyTable string
	IdempotencyTTL   time.Duration
}

// SQSConfig holds the queue that receives admin order events
type SQSConfig struct {
	QueueURL string
}

// AWSConfig holds AWS SDK settings
type AWSConfig struct {
	Region           string
	EndpointOverride string // e.g. http://localhost:4566 for localstack
}

// FileStoreConfig holds flat-file order store settings
type FileStoreConfig struct {
	Path string
	Lock bool // take <path>.lock around rewrites
}

// ReconcileConfig holds order reconciliation settings
type ReconcileConfig struct {
	KeyLength       int
	StrictSignature bool // include product name and quantity in the dedup signature
}

// MetricsConfig selects the metrics backend
type MetricsConfig struct {
	Backend   string // none, prometheus, cloudwatch
	Namespace string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// legacyEnv maps config keys to environment variable names the storefront
// deployment already uses. Earlier names win when several are set.
var legacyEnv = map[string][]string{
	"app.env":                    {"APP_ENV", "NODE_ENV"},
	"app.port":                   {"PORT"},
	"app.timezone":               {"APP_TIMEZONE"},
	"app.run_local":              {"RUN_LOCAL"},
	"admin.password":             {"ADMIN_PASSWORD"},
	"admin.session_secret":       {"ADMIN_SESSION_SECRET"},
	"admin.generic_secret":       {"SESSION_SECRET", "NEXTAUTH_SECRET"},
	"database.url":               {"DATABASE_URL"},
	"dynamodb.orders_table":      {"ORDERS_TABLE"},
	"dynamodb.idempotency_table": {"IDEMPOTENCY_TABLE"},
	"sqs.queue_url":              {"ORDERS_QUEUE_URL"},
	"aws.region":                 {"AWS_REGION"},
	"aws.endpoint_override":      {"AWS_ENDPOINT_OVERRIDE"},
	"filestore.path":             {"ORDERS_FILE"},
	"log.level":                  {"LOG_LEVEL"},
	"metrics.backend":            {"METRICS_BACKEND"},
	"reconcile.strict_signature": {"RECONCILE_STRICT_SIGNATURE"},
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with STORE_ prefix (e.g., STORE_ADMIN_PASSWORD)
// 2. Legacy environment variable names (ADMIN_PASSWORD, DATABASE_URL, ...)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		args := append([]string{key, "STORE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Port:     v.GetString("app.port"),
			Timezone: v.GetString("app.timezone"),
			RunLocal: v.GetBool("app.run_local"),
		},
		Admin: AdminConfig{
			Password:      v.GetString("admin.password"),
			SessionSecret: v.GetString("admin.session_secret"),
			GenericSecret: v.GetString("admin.generic_secret"),
			SessionTTL:    v.GetDuration("admin.session_ttl"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			LogQueries:      v.GetBool("database.log_queries"),
		},
		DynamoDB: DynamoDBConfig{
			OrdersTable:      v.GetString("dynamodb.orders_table"),
			IdempotencyTable: v.GetString("dynamodb.idempotency_table"),
			IdempotencyTTL:   v.GetDuration("dynamodb.idempotency_ttl"),
		},
		SQS: SQSConfig{
			QueueURL: v.GetString("sqs.queue_url"),
		},
		AWS: AWSConfig{
			Region:           v.GetString("aws.region"),
			EndpointOverride: v.GetString("aws.endpoint_override"),
		},
		FileStore: FileStoreConfig{
			Path: v.GetString("filestore.path"),
			Lock: true,
		},
		Reconcile: ReconcileConfig{
			KeyLength:       v.GetInt("reconcile.key_length"),
			StrictSignature: v.GetBool("reconcile.strict_signature"),
		},
		Metrics: MetricsConfig{
			Backend:   v.GetString("metrics.backend"),
			Namespace: v.GetString("metrics.namespace"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
		},
	}
	if v.IsSet("filestore.lock") {
		cfg.FileStore.Lock = v.GetBool("filestore.lock")
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "online-store"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "Local"
	}
	if cfg.Admin.SessionTTL == 0 {
		cfg.Admin.SessionTTL = 24 * time.Hour
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.DynamoDB.IdempotencyTTL == 0 {
		cfg.DynamoDB.IdempotencyTTL = 48 * time.Hour
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.FileStore.Path == "" {
		cfg.FileStore.Path = "data/orders.json"
	}
	if cfg.Reconcile.KeyLength == 0 {
		cfg.Reconcile.KeyLength = 10
	}
	if cfg.Metrics.Backend == "" {
		cfg.Metrics.Backend = "none"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "online_store"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
}

// validate checks values that defaults cannot repair
func (c *Config) validate() error {
	if c.Admin.SessionTTL < 0 {
		return fmt.Errorf("admin.session_ttl must not be negative, got %s", c.Admin.SessionTTL)
	}
	if c.Reconcile.KeyLength < 1 {
		return fmt.Errorf("reconcile.key_length must be at least 1, got %d", c.Reconcile.KeyLength)
	}
	switch c.Metrics.Backend {
	case "none", "prometheus", "cloudwatch":
	default:
		return fmt.Errorf("metrics.backend must be one of none, prometheus, cloudwatch, got %q", c.Metrics.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// IsProduction reports whether the app runs in a production-like environment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Location resolves App.Timezone
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" || strings.EqualFold(c.App.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app.timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// StructuredBackend reports which structured store is configured:
// "sql", "dynamodb" or "" when only the flat file is available.
func (c *Config) StructuredBackend() string {
	switch {
	case c.Database.URL != "":
		return "sql"
	case c.DynamoDB.OrdersTable != "":
		return "dynamodb"
	default:
		return ""
	}
}
