package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sdsc-ordes/debates-analytics/internal/asr"
	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/config"
	"github.com/sdsc-ordes/debates-analytics/internal/media"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/pipeline"
	"github.com/sdsc-ordes/debates-analytics/internal/search"
	"github.com/sdsc-ordes/debates-analytics/internal/storage"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
	"github.com/sdsc-ordes/debates-analytics/pkg/workspace"
)

// staleWorkspaceAge is how long a processing directory may sit around before
// the sweep assumes its worker died mid-task.
const staleWorkspaceAge = 12 * time.Hour

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Worker.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.NewObjectStore(cfg.S3)
	if err != nil {
		cancel()
		log.Fatal("Failed to create object store: %v", err)
	}
	meta, err := metadata.NewStore(ctx, cfg.Mongo)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to metadata store: %v", err)
	}

	index := search.NewClient(cfg.Solr)
	queue := broker.New(cfg.Queue)
	defer queue.Close()

	// Leftovers of a previous crash are useless, tasks get redelivered.
	if err := workspace.CleanStale(cfg.Worker.WorkDir, 0); err != nil {
		log.Warn("Workspace cleanup on startup: %v", err)
	}

	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.Worker.SweepCronExpr, func() {
		if err := workspace.CleanStale(cfg.Worker.WorkDir, staleWorkspaceAge); err != nil {
			log.Warn("Workspace sweep: %v", err)
		}
	})
	if err != nil {
		log.Fatal("Invalid sweep cron expression %q: %v", cfg.Worker.SweepCronExpr, err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	orch := pipeline.NewOrchestrator(queue, meta)
	convert := pipeline.NewConvertWorker(orch, store, media.NewTranscoder(), cfg.Worker.WorkDir)
	transcribe := pipeline.NewTranscribeWorker(orch, store, asr.NewClient(cfg.ASR), cfg.Worker.WorkDir)
	reindex := pipeline.NewReindexWorker(orch, store, meta, index)

	server := broker.NewServer(cfg.Queue)
	mux := pipeline.NewMux(orch, convert, transcribe, reindex)

	log.Info("Worker consuming queue %q", cfg.Queue.Queue)
	if err := server.Run(mux); err != nil {
		log.Fatal("Worker stopped: %v", err)
	}
}
