package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/geoanalysis/internal/adapters/http"
	natsadapter "github.com/samirrijal/geoanalysis/internal/adapters/nats"
	"github.com/samirrijal/geoanalysis/internal/adapters/postgres"
	"github.com/samirrijal/geoanalysis/internal/adapters/valkey"
	"github.com/samirrijal/geoanalysis/internal/core/ports"
	"github.com/samirrijal/geoanalysis/internal/core/usecases"
	"github.com/samirrijal/geoanalysis/internal/pkg/config"
	"github.com/samirrijal/geoanalysis/internal/pkg/logging"
	"github.com/samirrijal/geoanalysis/internal/pkg/presets"
	"github.com/samirrijal/geoanalysis/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geoanalysis-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
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
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache. A nil *valkey.Cache must not end up inside the interface.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, analyses run uncached", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, analysis events disabled", "error", err)
	} else {
		events = pub
		defer pub.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	registry, err := presets.Load(cfg.Analysis.PresetsFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("presets: %v", err)
		}
		slog.Warn("presets file missing", "path", cfg.Analysis.PresetsFile)
	}

	// Repos
	featureRepo := postgres.NewFeatureRepo(db)
	layerRepo := postgres.NewLayerRepo(db)

	deps := &http.Dependencies{
		Analyses: usecases.NewAnalysisService(featureRepo, layerRepo, cacheSvc, events, usecases.AnalysisOptions{
			DefaultLimit:    cfg.Analysis.DefaultLimit,
			MaxLimit:        cfg.Analysis.MaxLimit,
			CacheTTLSeconds: cfg.Analysis.CacheTTLSeconds,
		}),
		Operations: usecases.NewOperationService(),
		Layers:     usecases.NewLayerService(layerRepo, cacheSvc),
		Presets:    registry,
		NATS:       natsConn,
		DB:         db,
		Cache:      cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Geoanalysis API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Link, X-Request-ID, Deprecation, Sunset",
		AllowCredentials: false,
		MaxAge:           3600,
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
