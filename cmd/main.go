package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"cancerscope/config"
	"cancerscope/db"
	qhttp "cancerscope/http"
	"cancerscope/logging"
	"cancerscope/ml"
	"cancerscope/monitoring"
	"cancerscope/predict"
)

func main() {
	configFlag := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(config.ResolvePath(*configFlag))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Load the model once; it is read-only from here on
	artifact, err := ml.LoadModelOrDefault(cfg.Model.Path, logger)
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}
	model, err := predict.ModelContextFromArtifact(artifact)
	if err != nil {
		logger.Fatal("invalid model", zap.Error(err))
	}
	service := predict.NewService(model,
		predict.WithCacheSize(cfg.Cache.Size),
		predict.WithLogger(logger.Named("predict")))

	// 3. Initialize database
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	feed := monitoring.NewPredictionFeed(logger.Named("feed"))
	go feed.Run()
	defer feed.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Model.Watch && cfg.Model.Path != "" {
		if err := ml.WatchArtifact(ctx, cfg.Model.Path, logger.Named("model"), nil); err != nil {
			logger.Warn("model watcher disabled", zap.Error(err))
		}
	}

	// 4. Start HTTP server
	api := qhttp.NewAPI(qhttp.Dependencies{
		Service:      service,
		ModelName:    artifact.Name,
		ModelVersion: artifact.Version,
		History:      store,
		Feed:         feed,
		FeedHandler:  feed.HandleWebSocket,
		Stats:        monitoring.NewPredictionStats(),
		Logger:       logger.Named("http"),
	})
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, api, logger.Named("http"))

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}
