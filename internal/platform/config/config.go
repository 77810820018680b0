package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process level configuration. Every field is read from the
// environment; nested groups share a prefix (DATABASE_URL, REDIS_URL, ...).
type Server struct {
	Addr            string        `env:"CREDEX_ADDR" envDefault:":8080"`
	Environment     string        `env:"CREDEX_ENV" envDefault:"dev"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	AdminToken      string        `env:"ADMIN_API_TOKEN"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Storage      StorageConfig      `envPrefix:"STORAGE_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	Kafka        KafkaConfig        `envPrefix:"KAFKA_"`
	Trust        TrustConfig        `envPrefix:"TRUST_REGISTRY_"`
	Verification VerificationConfig `envPrefix:"VERIFICATION_"`
	Inbox        InboxConfig        `envPrefix:"INBOX_"`
}

// Storage backends for the credential collection.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// StorageConfig selects where the credential collection is persisted.
type StorageConfig struct {
	Backend string `env:"BACKEND" envDefault:"file"`
	Path    string `env:"PATH" envDefault:"storage/credentials.json"`
	// EncryptionSecret seals the credential file at rest when set.
	EncryptionSecret string `env:"ENCRYPTION_SECRET"`
}

// DatabaseConfig configures the PostgreSQL pool. Empty URL disables it.
type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

// RedisConfig configures the Redis client. Empty URL keeps sessions in memory.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the audit event sink. Empty Brokers keeps audit in memory.
type KafkaConfig struct {
	Brokers         string        `env:"BROKERS"`
	AuditTopic      string        `env:"AUDIT_TOPIC" envDefault:"credex.audit"`
	Acks            string        `env:"ACKS" envDefault:"all"`
	Retries         int           `env:"RETRIES" envDefault:"3"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"30s"`
}

// TrustConfig selects the trust registry. With URL set the remote registry is
// queried over HTTP; otherwise this instance owns the list.
type TrustConfig struct {
	URL              string        `env:"URL"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RetryMax         int           `env:"RETRY_MAX" envDefault:"2"`
	FailureThreshold int           `env:"FAILURE_THRESHOLD" envDefault:"5"`
	Cooldown         time.Duration `env:"COOLDOWN" envDefault:"30s"`
	SeedDIDs         []string      `env:"SEED_DIDS" envSeparator:","`
}

// Candidate selection strategies.
const (
	SelectFirst      = "first"
	SelectMostRecent = "most_recent"
)

// VerificationConfig carries session policy.
type VerificationConfig struct {
	// PendingTimeout fails sessions left pending longer than this. Zero disables expiry.
	PendingTimeout  time.Duration `env:"PENDING_TIMEOUT" envDefault:"0s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	Selection       string        `env:"SELECTION" envDefault:"first"`
	CallbackTimeout time.Duration `env:"CALLBACK_TIMEOUT" envDefault:"10s"`
	// Retention bounds how long Redis keeps completed sessions. Zero keeps them.
	Retention time.Duration `env:"RETENTION" envDefault:"24h"`
}

// InboxConfig carries notification retention.
type InboxConfig struct {
	GracePeriod   time.Duration `env:"GRACE_PERIOD" envDefault:"10m"`
	PurgeInterval time.Duration `env:"PURGE_INTERVAL" envDefault:"1m"`
}

// Load parses the process environment.
func Load() (Server, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given environment instead of the process one.
func LoadFrom(environ map[string]string) (Server, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the tags cannot express.
func (c Server) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("STORAGE_PATH is required for the file backend"))
		}
	case StoragePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.Verification.Selection {
	case SelectFirst, SelectMostRecent:
	default:
		errs = append(errs, fmt.Errorf("unknown VERIFICATION_SELECTION %q", c.Verification.Selection))
	}
	if c.Verification.PendingTimeout < 0 {
		errs = append(errs, errors.New("VERIFICATION_PENDING_TIMEOUT must not be negative"))
	}
	if c.Verification.PendingTimeout > 0 && c.Verification.SweepInterval <= 0 {
		errs = append(errs, errors.New("VERIFICATION_SWEEP_INTERVAL must be positive when expiry is enabled"))
	}
	if c.Inbox.PurgeInterval <= 0 {
		errs = append(errs, errors.New("INBOX_PURGE_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}
