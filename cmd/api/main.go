package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/JettChenT/ek-geo/internal/adapters/http"
	natsadapter "github.com/JettChenT/ek-geo/internal/adapters/nats"
	"github.com/JettChenT/ek-geo/internal/adapters/postgres"
	"github.com/JettChenT/ek-geo/internal/adapters/render"
	"github.com/JettChenT/ek-geo/internal/adapters/valkey"
	"github.com/JettChenT/ek-geo/internal/core/ports"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/config"
	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
	"github.com/JettChenT/ek-geo/internal/pkg/logging"
	"github.com/JettChenT/ek-geo/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("ekgeo-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache and publisher are optional; keep the interfaces nil when absent.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "ekgeo:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	events := http.NewEventLog(256)
	if pub != nil {
		host, _ := os.Hostname()
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "ekgeo-api-"+host)
		if err != nil {
			slog.Warn("event subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.SubscribeSamplingCompleted(ctx, events.Record); err != nil {
				slog.Warn("subscribe sampling events", "error", err)
			}
		}
	}

	renderers := map[string]ports.Renderer{
		"geojson": render.NewGeoJSON(),
		"html":    render.NewDeck(),
	}

	sampling := usecases.NewSamplingService(
		postgres.NewPointSetRepo(db),
		cacheSvc,
		publisher,
		renderers["geojson"],
		usecases.SamplingLimits{
			MaxPoints:       cfg.Sampling.MaxPoints,
			MaxGridCells:    cfg.Sampling.MaxGridCells,
			CacheTTLSeconds: cfg.Sampling.CacheTTLSeconds,
		},
	)

	deps := &http.Dependencies{
		Sampling:        sampling,
		Renderers:       renderers,
		DefaultInterval: geospatial.Kilometers(cfg.Sampling.DefaultIntervalKm),
		Events:          events,
		NATS:            natsConn,
		DB:              db,
		Cache:           cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "ek-geo API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
