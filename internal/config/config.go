// Package config provides configuration management for AgriTrace.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT, AUDIT_QUEUE_SIZE)
// 3. Default values
//
// Import Path: agritrace.io/agritrace/internal/config
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Audit store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Audit dispatcher modes.
const (
	DispatcherQueue = "queue"
	DispatcherRiver = "river"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	River    RiverConfig    `mapstructure:"river"`
	Security SecurityConfig `mapstructure:"security"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Audit    AuditConfig    `mapstructure:"audit"`

	v *viper.Viper
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	// ValidateResponses checks every API response against the OpenAPI
	// contract. Intended for development and CI.
	ValidateResponses bool `mapstructure:"validate_responses"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One pgxpool is shared by the audit store and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	File       string `mapstructure:"file"`   // optional rotating file sink
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	AuditMaxWorkers             int           `mapstructure:"audit_max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
	ChainVerifyInterval         time.Duration `mapstructure:"chain_verify_interval"`
}

// SecurityConfig contains token validation settings.
// JWT issuance is handled by the identity service; this process only verifies.
type SecurityConfig struct {
	JWTSigningKey string `mapstructure:"jwt_signing_key"`
	JWTIssuer     string `mapstructure:"jwt_issuer"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	AuditPoolSize   int `mapstructure:"audit_pool_size"`
}

// AuditConfig contains audit chain settings.
type AuditConfig struct {
	Store          string        `mapstructure:"store"` // postgres, sqlite, memory
	SQLitePath     string        `mapstructure:"sqlite_path"`
	ChainScope     string        `mapstructure:"chain_scope"` // tenant or global
	HashAlgorithm  string        `mapstructure:"hash_algorithm"`
	Dispatcher     string        `mapstructure:"dispatcher"` // queue or river
	QueueSize      int           `mapstructure:"queue_size"`
	QueueWorkers   int           `mapstructure:"queue_workers"`
	OverflowPolicy string        `mapstructure:"overflow_policy"` // block or drop_oldest
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
	AppendRetries  int           `mapstructure:"append_retries"`
	AppendBackoff  time.Duration `mapstructure:"append_backoff"`
}

// NeedsPostgres reports whether the configuration requires a database pool.
func (c AuditConfig) NeedsPostgres() bool {
	return c.Store == StorePostgres || c.Dispatcher == DispatcherRiver
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Standard environment variables without prefix (DATABASE_URL, SERVER_PORT, etc.).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/agritrace")

	return load(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// Maps nested config: audit.queue_size → AUDIT_QUEUE_SIZE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.v = v
	return &cfg, nil
}

// OnChange re-reads the config file whenever it changes on disk and hands
// the new, validated configuration to fn. It is a no-op when no file was loaded.
func (c *Config) OnChange(fn func(*Config)) {
	if c == nil || c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var next Config
		if err := c.v.Unmarshal(&next); err != nil {
			logBootstrapWarn("ignoring config reload: unmarshal failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		next.normalize()
		next.Security = c.Security
		if err := next.Validate(); err != nil {
			logBootstrapWarn("ignoring config reload: validation failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		next.v = c.v
		fn(&next)
	})
	c.v.WatchConfig()
}

func (c *Config) normalize() {
	c.Audit.Store = strings.ToLower(strings.TrimSpace(c.Audit.Store))
	c.Audit.ChainScope = strings.ToLower(strings.TrimSpace(c.Audit.ChainScope))
	c.Audit.HashAlgorithm = strings.ToLower(strings.TrimSpace(c.Audit.HashAlgorithm))
	c.Audit.Dispatcher = strings.ToLower(strings.TrimSpace(c.Audit.Dispatcher))
	c.Audit.OverflowPolicy = strings.ToLower(strings.TrimSpace(c.Audit.OverflowPolicy))
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if len(c.Security.JWTSigningKey) < 32 {
		return fmt.Errorf("security.jwt_signing_key must be at least 32 characters")
	}

	switch c.Audit.Store {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("audit.store %q must be one of postgres, sqlite, memory", c.Audit.Store)
	}
	if c.Audit.Store == StoreSQLite && c.Audit.SQLitePath == "" {
		return fmt.Errorf("audit.sqlite_path must be set when audit.store is sqlite")
	}
	switch c.Audit.ChainScope {
	case "tenant", "global":
	default:
		return fmt.Errorf("audit.chain_scope %q must be tenant or global", c.Audit.ChainScope)
	}
	switch c.Audit.HashAlgorithm {
	case "sha256", "sha3-256", "blake2b-256":
	default:
		return fmt.Errorf("audit.hash_algorithm %q is not supported", c.Audit.HashAlgorithm)
	}
	switch c.Audit.Dispatcher {
	case DispatcherQueue:
		if c.Audit.QueueSize <= 0 {
			return fmt.Errorf("audit.queue_size must be positive")
		}
		if c.Audit.QueueWorkers <= 0 {
			return fmt.Errorf("audit.queue_workers must be positive")
		}
		if c.Audit.QueueWorkers > c.Worker.AuditPoolSize {
			return fmt.Errorf("audit.queue_workers (%d) exceeds worker.audit_pool_size (%d)",
				c.Audit.QueueWorkers, c.Worker.AuditPoolSize)
		}
	case DispatcherRiver:
		if c.Audit.Store != StorePostgres {
			return fmt.Errorf("audit.dispatcher river requires audit.store postgres")
		}
	default:
		return fmt.Errorf("audit.dispatcher %q must be queue or river", c.Audit.Dispatcher)
	}
	switch c.Audit.OverflowPolicy {
	case "block", "drop_oldest":
	default:
		return fmt.Errorf("audit.overflow_policy %q must be block or drop_oldest", c.Audit.OverflowPolicy)
	}
	if c.Audit.AppendRetries < 0 {
		return fmt.Errorf("audit.append_retries must not be negative")
	}
	return nil
}

// ensureSecrets auto-generates a JWT verification key when none is configured,
// so a single-node dev instance can boot. Tokens signed elsewhere will not verify.
func (c *Config) ensureSecrets() error {
	if c.Security.JWTSigningKey == "" {
		key, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate jwt signing key: %w", err)
		}
		c.Security.JWTSigningKey = key
		logBootstrapWarn(
			"auto-generated jwt_signing_key; set SECURITY_JWT_SIGNING_KEY to share it with the identity service",
			zap.Int("length", len(key)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.validate_responses", false)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "agritrace")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "agritrace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	// River
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.audit_max_workers", 4)
	v.SetDefault("river.completed_job_retention_period", "24h")
	v.SetDefault("river.chain_verify_interval", "24h")

	// Security
	v.SetDefault("security.jwt_signing_key", "")
	v.SetDefault("security.jwt_issuer", "agritrace")

	// Worker Pool
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.audit_pool_size", 8)

	// Audit chain
	v.SetDefault("audit.store", StoreSQLite)
	v.SetDefault("audit.sqlite_path", "agritrace-audit.db")
	v.SetDefault("audit.chain_scope", "tenant")
	v.SetDefault("audit.hash_algorithm", "sha256")
	v.SetDefault("audit.dispatcher", DispatcherQueue)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.queue_workers", 4)
	v.SetDefault("audit.overflow_policy", "block")
	v.SetDefault("audit.enqueue_timeout", "2s")
	v.SetDefault("audit.append_retries", 5)
	v.SetDefault("audit.append_backoff", "10ms")
}
