// Command server runs the archive web surface and, when enabled, ingestion.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unscored/internal/bootstrap"
	"unscored/internal/config"
	"unscored/internal/ingest"
	"unscored/internal/observability"
)

func main() {
	backingest := flag.Bool("backingest", false, "walk every post id up to the newest known one after startup")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	stopDiscovery := func() {}
	if cfg.IngestEnabled {
		go rt.Scheduler.Run(ctx)

		if cfg.DiscoverySchedule != "" {
			stopDiscovery, err = ingest.ScheduleDiscovery(ctx, rt.Discoverer, cfg.DiscoverySchedule)
			if err != nil {
				log.Fatalf("Failed to schedule discovery: %v", err)
			}
		}

		if *backingest {
			go func() {
				if err := rt.Backingester.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					observability.Logger.Error("backingest stopped", slog.String("error", err.Error()))
				}
			}()
		}
	} else {
		observability.Logger.Info("ingestion disabled")
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		observability.Logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := rt.Server.Shutdown(shutdownCtx); err != nil {
			observability.Logger.Error("Server shutdown error", slog.String("error", err.Error()))
		}
	}()

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	if err := rt.Server.Start(addr); err != nil {
		observability.Logger.Error("Server stopped", slog.String("error", err.Error()))
	}

	stop()
	stopDiscovery()
	rt.Scheduler.Stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil {
		observability.Logger.Error("Resource shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
