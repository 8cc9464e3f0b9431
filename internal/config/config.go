// Package config centralizes how rolltrack reads environment variables and
// exposes them as strongly typed values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "ROLLTRACK"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSheet    = "sheet"
	BackendS3       = "s3"
)

// Lock backends.
const (
	LockLocal = "local"
	LockFile  = "file"
	LockRedis = "redis"
)

// Config represents runtime configuration for the binaries.
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	Storage StorageConfig
	S3      S3Config
	Redis   RedisConfig
	Lock    LockConfig
	Seed    SeedConfig
	Worker  WorkerConfig
}

type AppConfig struct {
	Env            string   `envconfig:"ROLLTRACK_APP_ENV" default:"dev"`
	LogLevel       string   `envconfig:"ROLLTRACK_LOG_LEVEL" default:"info"`
	LogFormat      string   `envconfig:"ROLLTRACK_LOG_FORMAT" default:"json"`
	Magazines      []string `envconfig:"ROLLTRACK_MAGAZINES" default:"G1 (6887),G2 (7115),G4 (6795),G5 (6223),K1 (2413),K2 (2279)"`
	DefaultWasteFt float64  `envconfig:"ROLLTRACK_DEFAULT_WASTE_FT" default:"15"`
}

type HTTPConfig struct {
	Address         string        `envconfig:"ROLLTRACK_ADDRESS" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"ROLLTRACK_SHUTDOWN_TIMEOUT" default:"5s"`
}

type StorageConfig struct {
	Backend     string `envconfig:"ROLLTRACK_STORAGE" default:"sqlite"`
	SQLitePath  string `envconfig:"ROLLTRACK_SQLITE_PATH" default:"rolltrack.db"`
	DatabaseURL string `envconfig:"ROLLTRACK_DATABASE_URL"`
	SheetPath   string `envconfig:"ROLLTRACK_SHEET_PATH" default:"rolltrack.xlsx"`
}

type S3Config struct {
	Endpoint       string        `envconfig:"ROLLTRACK_S3_ENDPOINT"`
	AccessKey      string        `envconfig:"ROLLTRACK_S3_ACCESS_KEY"`
	SecretKey      string        `envconfig:"ROLLTRACK_S3_SECRET_KEY"`
	UseSSL         bool          `envconfig:"ROLLTRACK_S3_USE_SSL" default:"false"`
	Region         string        `envconfig:"ROLLTRACK_S3_REGION" default:"us-east-1"`
	SnapshotBucket string        `envconfig:"ROLLTRACK_S3_SNAPSHOT_BUCKET" default:"rolltrack-ledger"`
	ManifestBucket string        `envconfig:"ROLLTRACK_S3_MANIFEST_BUCKET" default:"rolltrack-manifests"`
	ManifestURLTTL time.Duration `envconfig:"ROLLTRACK_MANIFEST_URL_TTL" default:"15m"`
}

// Enabled reports whether an object store is configured.
func (s S3Config) Enabled() bool {
	return s.Endpoint != ""
}

type RedisConfig struct {
	Addr     string `envconfig:"ROLLTRACK_REDIS_ADDR"`
	Password string `envconfig:"ROLLTRACK_REDIS_PASSWORD"`
	DB       int    `envconfig:"ROLLTRACK_REDIS_DB" default:"0"`
}

// Enabled reports whether a redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type LockConfig struct {
	Backend string        `envconfig:"ROLLTRACK_LOCK" default:"local"`
	Dir     string        `envconfig:"ROLLTRACK_LOCK_DIR" default:"."`
	TTL     time.Duration `envconfig:"ROLLTRACK_LOCK_TTL" default:"30s"`
	Wait    time.Duration `envconfig:"ROLLTRACK_LOCK_WAIT" default:"10s"`
}

type SeedConfig struct {
	Project string `envconfig:"ROLLTRACK_SEED_PROJECT" default:"coburg"`
	File    string `envconfig:"ROLLTRACK_SEED_FILE"`
}

type WorkerConfig struct {
	Concurrency int `envconfig:"ROLLTRACK_WORKERS" default:"2"`
}

// Load reads configuration from environment variables falling back to defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendSheet:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("ROLLTRACK_DATABASE_URL is required for the postgres backend")
		}
	case BackendS3:
		if !c.S3.Enabled() {
			return fmt.Errorf("ROLLTRACK_S3_ENDPOINT is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	c.Lock.Backend = strings.ToLower(strings.TrimSpace(c.Lock.Backend))
	switch c.Lock.Backend {
	case LockLocal, LockFile:
	case LockRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("ROLLTRACK_REDIS_ADDR is required for the redis lock")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if strings.TrimSpace(c.Seed.Project) == "" {
		return fmt.Errorf("ROLLTRACK_SEED_PROJECT must not be empty")
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 2
	}
	if c.App.DefaultWasteFt < 0 {
		return fmt.Errorf("ROLLTRACK_DEFAULT_WASTE_FT must not be negative")
	}
	return nil
}
