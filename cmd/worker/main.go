package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/JettChenT/ek-geo/internal/adapters/nats"
	"github.com/JettChenT/ek-geo/internal/adapters/postgres"
	"github.com/JettChenT/ek-geo/internal/adapters/valkey"
	"github.com/JettChenT/ek-geo/internal/core/ports"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/config"
	"github.com/JettChenT/ek-geo/internal/pkg/logging"
	"github.com/JettChenT/ek-geo/internal/workflows"
)

func main() {
	cfg, err := config.Load("ekgeo-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr, "ekgeo:"); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	sampling := usecases.NewSamplingService(
		postgres.NewPointSetRepo(db),
		cacheSvc,
		publisher,
		nil,
		usecases.SamplingLimits{
			MaxPoints:       cfg.Sampling.MaxPoints,
			MaxGridCells:    cfg.Sampling.MaxGridCells,
			CacheTTLSeconds: cfg.Sampling.CacheTTLSeconds,
		},
	)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.BatchDownsampleWorkflow)
	w.RegisterActivity(&workflows.SamplingActivities{Sampling: sampling})

	slog.Info("sampling worker started", "queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
