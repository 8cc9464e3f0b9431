package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/dharsanguruparan/rolltrack/internal/app"
	"github.com/dharsanguruparan/rolltrack/internal/config"
	"github.com/dharsanguruparan/rolltrack/internal/logger"
	"github.com/dharsanguruparan/rolltrack/internal/s3storage"
	"github.com/dharsanguruparan/rolltrack/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "rolltrack-worker"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "rolltrack-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	if !cfg.Redis.Enabled() || !cfg.S3.Enabled() {
		logg.Warn(ctx, "the manifest worker needs ROLLTRACK_REDIS_ADDR and ROLLTRACK_S3_ENDPOINT")
		os.Exit(1)
	}

	store, err := s3storage.New(cfg.S3)
	if err != nil {
		logg.Error(ctx, "init storage", err)
		os.Exit(1)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		logg.Error(ctx, "ensure buckets", err)
		os.Exit(1)
	}

	server := asynq.NewServer(app.RedisClientOpt(cfg.Redis), asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      asynqLogger{log: logg},
	})
	processor := worker.NewProcessor(store, logg)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logg.Info(logg.WithField(ctx, "concurrency", cfg.Worker.Concurrency), "manifest worker started")
	if err := server.Run(processor.Handler()); err != nil {
		logg.Error(ctx, "worker stopped", err)
		os.Exit(1)
	}
}

// asynqLogger routes asynq's own logging through the structured logger.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(context.Background(), fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(context.Background(), fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(context.Background(), fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(context.Background(), fmt.Sprint(args...), nil) }
func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(context.Background(), fmt.Sprint(args...), nil)
	os.Exit(1)
}
