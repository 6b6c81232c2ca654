// Package store persists the watcher's cursor state between runs. Four
// interchangeable backends are provided; the single-file JSON backend is the
// default.
package store

import (
	"context"
	"fmt"

	"commitwatch/models"
)

// Common errors
var (
	ErrUnsupportedBackend = fmt.Errorf("unsupported state backend")
	ErrDatabaseConnection = fmt.Errorf("database connection error")
	ErrTransactionFailed  = fmt.Errorf("transaction failed")
)

// Backend names accepted in configuration.
const (
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Store loads and saves the full cursor state. Save replaces the stored
// state; a half-written state must never be visible to a later Load.
type Store interface {
	Load(ctx context.Context) (models.Cursor, error)
	Save(ctx context.Context, cursor models.Cursor) error
	Close() error
}

// RedisConfig defines Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	Database int
}

// PostgresConfig defines PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// Config selects and configures the state backend.
type Config struct {
	Backend  string
	FilePath string
	BoltPath string
	Redis    RedisConfig
	Postgres PostgresConfig
}

// Open constructs the backend named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.FilePath), nil
	case BackendBolt:
		return NewBoltStore(cfg.BoltPath)
	case BackendRedis:
		return NewRedisStore(cfg.Redis)
	case BackendPostgres:
		return NewPostgresStore(cfg.Postgres)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Backend)
	}
}
