// Package backend opens the storage and lock implementations selected by
// configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/rolltrack/internal/config"
	"github.com/dharsanguruparan/rolltrack/internal/database"
	"github.com/dharsanguruparan/rolltrack/internal/lock"
	"github.com/dharsanguruparan/rolltrack/internal/repository"
	"github.com/dharsanguruparan/rolltrack/internal/s3storage"
	"github.com/dharsanguruparan/rolltrack/internal/sheetstore"
	"github.com/dharsanguruparan/rolltrack/internal/sqlitestore"
	"github.com/dharsanguruparan/rolltrack/internal/storage"
)

// Backend bundles the collaborators the inventory service runs on.
type Backend struct {
	Name    string
	Store   storage.Store
	Locker  lock.Locker
	Objects *s3storage.Storage

	closers []func() error
}

// Open builds the store, locker and, when S3 is configured, the object
// storage used for manifests.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b := &Backend{Name: cfg.Storage.Backend}
	if err := b.openObjects(ctx, cfg); err != nil {
		_ = b.Close()
		return nil, err
	}
	if err := b.openStore(ctx, cfg); err != nil {
		_ = b.Close()
		return nil, err
	}
	if err := b.openLocker(ctx, cfg); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// Close releases every resource opened by Open.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func (b *Backend) openObjects(ctx context.Context, cfg *config.Config) error {
	if !cfg.S3.Enabled() {
		return nil
	}
	objects, err := s3storage.New(cfg.S3)
	if err != nil {
		return err
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		return err
	}
	b.Objects = objects
	return nil
}

func (b *Backend) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		b.Store = storage.NewMemoryStore()
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		b.Store = store
		b.closers = append(b.closers, store.Close)
	case config.BackendSheet:
		store, err := sheetstore.Open(cfg.Storage.SheetPath)
		if err != nil {
			return err
		}
		b.Store = store
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return err
		}
		repo := repository.NewRollRepository(pool)
		b.Store = repo
		b.closers = append(b.closers, repo.Close)
	case config.BackendS3:
		if b.Objects == nil {
			return fmt.Errorf("s3 backend requires ROLLTRACK_S3_ENDPOINT")
		}
		b.Store = b.Objects.Snapshots()
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	return nil
}

func (b *Backend) openLocker(ctx context.Context, cfg *config.Config) error {
	switch cfg.Lock.Backend {
	case config.LockLocal:
		b.Locker = lock.NewLocal()
	case config.LockFile:
		l, err := lock.NewFile(cfg.Lock.Dir, cfg.Lock.Wait)
		if err != nil {
			return err
		}
		b.Locker = l
	case config.LockRedis:
		client := NewRedisClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("ping redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Locker = lock.NewRedis(client, cfg.Lock.TTL, cfg.Lock.Wait)
	default:
		return fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
	return nil
}

// NewRedisClient builds a go-redis client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
