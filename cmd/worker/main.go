package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/image-to-html/config"
	"github.com/feichai0017/image-to-html/internal/agent"
	"github.com/feichai0017/image-to-html/internal/service/conversion"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/worker"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
		logger.WithService("image-to-html-worker"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", logger.Error(err))
	}
	if cfg.Storage.Type != "redis" {
		log.Fatal("The worker needs the redis session store", logger.String("storage", cfg.Storage.Type))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := agent.NewProcessorFactory(cfg, log)
	store, err := factory.Storage(ctx)
	if err != nil {
		log.Error("Failed to open session store", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	ocrClient, err := factory.OCRClient(ctx)
	if err != nil {
		log.Error("Failed to create OCR client", logger.Error(err))
		os.Exit(1)
	}
	fmtClient, err := factory.Formatter()
	if err != nil {
		log.Error("Failed to create formatter", logger.Error(err))
		os.Exit(1)
	}
	defer agent.CloseClients(log, ocrClient, fmtClient)

	svc := conversion.NewService(store, conversion.NewPipeline(ocrClient, fmtClient, log), log, conversion.ServiceConfig{
		RetentionPeriod: cfg.Storage.SessionTTL,
	})

	w := worker.NewConversionWorker(&worker.Config{
		RedisAddr:       cfg.Queue.RedisAddr,
		RedisDB:         cfg.Queue.RedisDB,
		Concurrency:     cfg.Queue.Concurrency,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, svc, log)

	log.Info("Worker starting", logger.String("redis", cfg.Queue.RedisAddr))
	if err := w.Start(ctx); err != nil {
		log.Error("Worker stopped with error", logger.Error(err))
		agent.CloseClients(log, ocrClient, fmtClient)
		_ = store.Close()
		os.Exit(1)
	}
	log.Info("Worker stopped")
}
