package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/pickscan/pickscan/config"
	"github.com/pickscan/pickscan/internal/extract"
	"github.com/pickscan/pickscan/internal/pipeline"
	"github.com/pickscan/pickscan/internal/rasterize"
	"github.com/pickscan/pickscan/internal/reconcile"
	"github.com/pickscan/pickscan/internal/template"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/queue"
	"github.com/pickscan/pickscan/pkg/store"
	"github.com/pickscan/pickscan/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipelineCfg := config.GetPipelineConfig()
	redisCfg := config.GetRedisConfig()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	blob, err := store.NewBlob(config.GetStorageConfig(), log)
	if err != nil {
		log.Fatal("Failed to initialize blob storage", logger.Error(err))
	}
	gateway := store.NewGateway(rdb, blob, log)

	extractor, err := extract.NewClient(ctx, config.GetGeminiConfig(), pipelineCfg.MaxConcurrentExtractions, log)
	if err != nil {
		log.Fatal("Failed to initialize extraction client", logger.Error(err))
	}

	rasterizer := rasterize.NewRasterizer(pipelineCfg.MaxDimension, pipelineCfg.JPEGQuality, log)
	items := reconcile.NewService(gateway, gateway.Handles(), log)
	templates := template.NewService(gateway, log)
	queueClient := queue.NewClient(redisCfg)
	defer queueClient.Close()

	orchestrator := pipeline.NewOrchestrator(gateway, rasterizer, extractor, queueClient, items, templates, log)

	jobWorker := worker.NewJobWorker(redisCfg, &worker.Config{Concurrency: 4}, orchestrator, log)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down worker...")
		cancel()
	}()

	if err := jobWorker.Start(ctx); err != nil {
		log.Error("Worker stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker stopped")
}
