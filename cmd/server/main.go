package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dharsanguruparan/rolltrack/internal/api"
	"github.com/dharsanguruparan/rolltrack/internal/app"
	"github.com/dharsanguruparan/rolltrack/internal/config"
	"github.com/dharsanguruparan/rolltrack/internal/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "rolltrack-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "rolltrack-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.Build(ctx, cfg, app.Options{Logger: logg, Registerer: reg})
	if err != nil {
		logg.Error(ctx, "failed to build inventory service", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logg.Error(context.Background(), "error closing backend", err)
		}
	}()

	opts := api.Options{
		Config:         cfg.HTTP,
		Service:        a.Service,
		Logger:         logg,
		Gatherer:       reg,
		ManifestURLTTL: cfg.S3.ManifestURLTTL,
		Backend:        a.Backend.Name,
	}
	if a.Backend.Objects != nil {
		opts.Manifests = a.Backend.Objects
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"backend":   a.Backend.Name,
		"lock":      cfg.Lock.Backend,
		"manifests": a.ManifestsEnabled(),
	})
	logg.Info(ctx, "inventory service ready")

	if err := api.New(opts).Run(ctx); err != nil {
		logg.Error(ctx, "server stopped", err)
		os.Exit(1)
	}
}
