package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sdsc-ordes/debates-analytics/internal/broker"
	"github.com/sdsc-ordes/debates-analytics/internal/config"
	"github.com/sdsc-ordes/debates-analytics/internal/httpapi"
	"github.com/sdsc-ordes/debates-analytics/internal/metadata"
	"github.com/sdsc-ordes/debates-analytics/internal/pipeline"
	"github.com/sdsc-ordes/debates-analytics/internal/search"
	"github.com/sdsc-ordes/debates-analytics/internal/storage"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

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

	orch := pipeline.NewOrchestrator(queue, meta)
	cleaner := pipeline.NewCleaner(store, index, meta)

	server := httpapi.NewServer(store, meta, index, orch, cleaner, queue)

	go func() {
		log.Info("API listening on %s", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(cfg.Server.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown: %v", err)
	}
}
