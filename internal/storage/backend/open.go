// Package backend opens the storage.KV implementation selected in config.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/codelab/internal/config"
	"github.com/felixgeelhaar/codelab/internal/storage"
	"github.com/felixgeelhaar/codelab/internal/storage/local"
	"github.com/felixgeelhaar/codelab/internal/storage/postgres"
	"github.com/felixgeelhaar/codelab/internal/storage/redis"
	"github.com/felixgeelhaar/codelab/internal/storage/sqlite"
)

// Open returns the configured backend. Callers close it through
// storage.Closer when the backend implements it.
func Open(ctx context.Context, cfg config.StorageConfig) (storage.KV, error) {
	switch cfg.Backend {
	case "", config.BackendLocal:
		return local.NewStore(cfg.Path)

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		db, err := sqlite.OpenMigrated(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return sqlite.NewKVStore(db), nil

	case config.BackendPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage backend postgres requires a dsn")
		}
		return postgres.Open(ctx, cfg.DSN)

	case config.BackendRedis:
		return redis.Open(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})

	case config.BackendMemory:
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// Close releases kv when it holds resources.
func Close(kv storage.KV) error {
	if c, ok := kv.(storage.Closer); ok {
		return c.Close()
	}
	return nil
}
