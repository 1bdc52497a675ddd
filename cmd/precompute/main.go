package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"strings"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/geoanalysis/internal/adapters/nats"
	"github.com/samirrijal/geoanalysis/internal/adapters/postgres"
	"github.com/samirrijal/geoanalysis/internal/adapters/valkey"
	"github.com/samirrijal/geoanalysis/internal/core/ports"
	"github.com/samirrijal/geoanalysis/internal/core/usecases"
	"github.com/samirrijal/geoanalysis/internal/pkg/config"
	"github.com/samirrijal/geoanalysis/internal/pkg/logging"
	"github.com/samirrijal/geoanalysis/internal/pkg/presets"
	"github.com/samirrijal/geoanalysis/internal/workflows"
)

const scheduledWorkflowID = "geoanalysis-precompute"

func main() {
	schedule := flag.String("cron", "", "also start a cron workflow with this schedule, e.g. \"*/30 * * * *\"")
	only := flag.String("presets", "", "comma-separated presets for the cron workflow (default: all)")
	flag.Parse()

	cfg, err := config.Load("geoanalysis-precompute")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Precompute only makes sense with a cache to warm.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, analysis events disabled", "error", err)
	} else {
		events = pub
		defer pub.Close()
	}

	registry, err := presets.Load(cfg.Analysis.PresetsFile)
	if err != nil {
		log.Fatalf("presets: %v", err)
	}

	analyses := usecases.NewAnalysisService(
		postgres.NewFeatureRepo(db),
		postgres.NewLayerRepo(db),
		cache,
		events,
		usecases.AnalysisOptions{
			DefaultLimit:    cfg.Analysis.DefaultLimit,
			MaxLimit:        cfg.Analysis.MaxLimit,
			CacheTTLSeconds: cfg.Analysis.CacheTTLSeconds,
		},
	)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if *schedule != "" {
		startScheduled(ctx, c, cfg.Temporal.TaskQueue, *schedule, splitList(*only))
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.PrecomputeWorkflow)
	w.RegisterActivity(&workflows.PrecomputeActivities{
		Presets:  registry,
		Analyses: analyses,
	})

	slog.Info("precompute worker started", "task_queue", cfg.Temporal.TaskQueue, "presets", len(registry.Names()))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// startScheduled starts the cron workflow unless one is already running.
func startScheduled(ctx context.Context, c client.Client, queue, schedule string, names []string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    scheduledWorkflowID,
		TaskQueue:             queue,
		CronSchedule:          schedule,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}, workflows.PrecomputeWorkflow, workflows.PrecomputeInput{Presets: names})
	if err != nil {
		slog.Warn("cron workflow not started", "error", err)
		return
	}
	slog.Info("cron workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "schedule", schedule)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
