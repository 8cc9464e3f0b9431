// Package app assembles the inventory service from configuration. The HTTP
// server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dharsanguruparan/rolltrack/internal/backend"
	"github.com/dharsanguruparan/rolltrack/internal/config"
	"github.com/dharsanguruparan/rolltrack/internal/inventory"
	"github.com/dharsanguruparan/rolltrack/internal/logger"
	"github.com/dharsanguruparan/rolltrack/internal/metrics"
	"github.com/dharsanguruparan/rolltrack/internal/queue"
	"github.com/dharsanguruparan/rolltrack/internal/seed"
)

// Options tunes Build. A nil Registerer disables metrics.
type Options struct {
	Logger     *logger.Logger
	Registerer prometheus.Registerer
}

// App is a wired inventory service plus the resources it holds open.
type App struct {
	Config  *config.Config
	Backend *backend.Backend
	Service *inventory.Service

	queue *asynq.Client
}

// Build opens the backend, loads the seed table and makes sure the canonical
// project exists. Shipments schedule manifests when both redis and an object
// store are configured.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	table, err := seed.LoadFile(cfg.Seed.File)
	if err != nil {
		return nil, fmt.Errorf("load seed table: %w", err)
	}

	b, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Storage.Backend, err)
	}
	a := &App{Config: cfg, Backend: b}

	var manifests inventory.ManifestEnqueuer
	if cfg.Redis.Enabled() && b.Objects != nil {
		a.queue = asynq.NewClient(RedisClientOpt(cfg.Redis))
		manifests = queue.NewEnqueuer(a.queue)
	}

	svc, err := inventory.New(inventory.Options{
		Store:          b.Store,
		Backend:        b.Name,
		Locker:         b.Locker,
		Seed:           seed.NewProvider(table, cfg.Seed.Project),
		Logger:         log,
		Metrics:        metrics.NewInventoryMetrics(opts.Registerer),
		Manifests:      manifests,
		DefaultWasteFt: cfg.App.DefaultWasteFt,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Service = svc

	if err := svc.EnsureProject(ctx, svc.CanonicalProject()); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("ensure project %q: %w", svc.CanonicalProject(), err)
	}
	return a, nil
}

// ManifestsEnabled reports whether shipments schedule manifest builds.
func (a *App) ManifestsEnabled() bool {
	return a.queue != nil
}

// Close releases the queue client and the backend.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
		a.queue = nil
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	return errors.Join(errs...)
}

// RedisClientOpt maps the redis config section onto asynq's connection options.
func RedisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
