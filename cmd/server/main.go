package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/pickscan/pickscan/api/handlers"
	"github.com/pickscan/pickscan/api/routes"
	"github.com/pickscan/pickscan/config"
	"github.com/pickscan/pickscan/internal/extract"
	"github.com/pickscan/pickscan/internal/pipeline"
	"github.com/pickscan/pickscan/internal/rasterize"
	"github.com/pickscan/pickscan/internal/reconcile"
	"github.com/pickscan/pickscan/internal/template"
	"github.com/pickscan/pickscan/internal/validate"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/queue"
	"github.com/pickscan/pickscan/pkg/store"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	pipelineCfg := config.GetPipelineConfig()
	redisCfg := config.GetRedisConfig()
	serverCfg := config.GetServerConfig()

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

	// Rebuild the working set so restored items come back with live image
	// handles before the first request lands.
	if restored, err := gateway.Restore(ctx); err == nil {
		log.Info("Working set restored", logger.Int("items", len(restored)))
	}

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
	validator := validate.NewUploadValidator(log, pipelineCfg.MaxFileSize, pipelineCfg.MaxPages)

	h := handlers.NewHandlers(orchestrator, gateway, items, templates, validator, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    serverCfg.Addr(),
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("port", serverCfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
	gateway.Handles().ReleaseAll()
}
