// Package bootstrap assembles the archive runtime from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"unscored/internal/apiclient"
	"unscored/internal/cache"
	"unscored/internal/config"
	"unscored/internal/database"
	"unscored/internal/ingest"
	"unscored/internal/middleware"
	"unscored/internal/observability"
	"unscored/internal/repository"
	"unscored/internal/server"
	"unscored/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds every long-lived component of the archiver.
type Runtime struct {
	Config       *config.Config
	DB           *gorm.DB
	Redis        *redis.Client
	Client       *apiclient.Client
	States       *repository.StateRegistry
	Ingester     *ingest.Ingester
	Scheduler    *ingest.Scheduler
	Backingester *ingest.Backingester
	Discoverer   *ingest.Discoverer
	Server       *server.Server

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database and Redis, loads the scheduler state
// and wires the services on top of them.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	observability.InitLogger(cfg.Env, cfg.LogLevel, os.Stdout)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; a nil client keeps caches and counters in process.
	rdb := cache.InitRedis(cfg.RedisURL)
	client := apiclient.New(apiclient.OptionsFromConfig(cfg), cache.New(rdb))

	stateRepo := repository.NewStateRepository(db)
	registry := repository.NewStateRegistry(stateRepo)
	if err := registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("load ingest state: %w", err)
	}
	if err := registry.Seed(ctx, cfg.Communities, cfg.DefaultInterval, cfg.GlobalInterval); err != nil {
		return nil, fmt.Errorf("seed communities: %w", err)
	}

	interner := repository.NewInterner()
	if err := interner.Warm(ctx, db); err != nil {
		return nil, fmt.Errorf("warm name cache: %w", err)
	}

	writer := service.NewWriter(interner, service.WriterConfig{
		PurgeDeleted:     cfg.PurgeDeleted,
		ReportingEnabled: cfg.ReportingEnabled,
	})
	reconciler := service.NewReconciler(writer, registry, service.ReconcileConfig{
		ShowDeleted:      cfg.ShowDeleted,
		PurgeDeleted:     cfg.PurgeDeleted,
		ReportingEnabled: cfg.ReportingEnabled,
		IngestMissing:    cfg.IngestMissing,
	})
	recoverer := service.NewRecoverer(client, registry, writer)
	archive := service.NewArchiveService(db, client, repository.NewArchiveRepository(db), interner,
		registry, writer, reconciler, service.ReadLimits{
			Feed:    cfg.RequestLimitFeed,
			Profile: cfg.RequestLimitProfile,
		})

	ingester := ingest.NewIngester(db, client, writer, recoverer, registry, ingest.Options{
		RequestLimit:       cfg.IngestLimit,
		MaxMissingGap:      cfg.MaxMissingGap,
		BackingestCooldown: cfg.BackingestCooldown(),
		Workers:            cfg.IngestWorkers,
	})
	scheduler := ingest.NewScheduler(ingester, registry)

	blocks := middleware.NewBlocklist(stateRepo)
	if err := blocks.Load(ctx); err != nil {
		return nil, fmt.Errorf("load ip blocks: %w", err)
	}

	observability.Logger.Info("runtime initialized",
		slog.Int("communities", len(registry.Names())),
		slog.Bool("redis", rdb != nil),
	)

	return &Runtime{
		Config:          cfg,
		DB:              db,
		Redis:           rdb,
		Client:          client,
		States:          registry,
		Ingester:        ingester,
		Scheduler:       scheduler,
		Backingester:    ingest.NewBackingester(ingester, stateRepo),
		Discoverer:      ingest.NewDiscoverer(client, registry, cfg.DefaultInterval, scheduler.Add),
		Server:          server.NewServer(cfg, db, rdb, archive, blocks),
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close releases the connections opened by InitRuntime.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	return errors.Join(errs...)
}
