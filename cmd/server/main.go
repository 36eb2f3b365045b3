package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/image-to-html/api/handlers"
	"github.com/feichai0017/image-to-html/api/routes"
	"github.com/feichai0017/image-to-html/config"
	"github.com/feichai0017/image-to-html/internal/agent"
	"github.com/feichai0017/image-to-html/internal/service/conversion"
	"github.com/feichai0017/image-to-html/pkg/converters"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/queue"
	"github.com/feichai0017/image-to-html/pkg/worker"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
		logger.WithService("image-to-html-server"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", logger.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server exited with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	factory := agent.NewProcessorFactory(cfg, log)

	store, err := factory.Storage(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	ocrClient, err := factory.OCRClient(ctx)
	if err != nil {
		return err
	}
	fmtClient, err := factory.Formatter()
	if err != nil {
		agent.CloseClients(log, ocrClient)
		return err
	}
	defer agent.CloseClients(log, ocrClient, fmtClient)

	svc := conversion.NewService(store, conversion.NewPipeline(ocrClient, fmtClient, log), log, conversion.ServiceConfig{
		RetentionPeriod: cfg.Storage.SessionTTL,
	})

	g, ctx := errgroup.WithContext(ctx)

	var inline *conversion.InlineDispatcher
	if cfg.Queue.Enabled {
		q := queue.NewAsynqQueue(&queue.QueueConfig{
			RedisAddr:      cfg.Queue.RedisAddr,
			RedisDB:        cfg.Queue.RedisDB,
			ProcessTimeout: cfg.Queue.Timeout,
		})
		defer q.Close()
		svc.SetDispatcher(conversion.NewQueueDispatcher(q))

		if cfg.Queue.Embedded {
			w := worker.NewConversionWorker(&worker.Config{
				RedisAddr:       cfg.Queue.RedisAddr,
				RedisDB:         cfg.Queue.RedisDB,
				Concurrency:     cfg.Queue.Concurrency,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			}, svc, log)
			g.Go(func() error { return w.Start(ctx) })
		}
	} else {
		inline = conversion.NewInlineDispatcher(svc, cfg.Queue.Timeout, log)
		svc.SetDispatcher(inline)
	}

	gin.SetMode(cfg.Server.Mode)
	h := handlers.NewHandlers(svc, factory.Acquirer(), converters.NewHTMLConverter(), handlers.Config{
		CookieSecure:   cfg.Server.CookieSecure,
		CookieMaxAge:   cfg.Storage.SessionTTL,
		RefreshSeconds: cfg.Server.RefreshSeconds,
	}, log)
	r, err := routes.NewRouter(h, routes.Options{
		AllowOrigins:       cfg.Server.AllowOrigins,
		MaxMultipartMemory: cfg.Upload.MaxSize,
	}, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", logger.Error(err))
		}
		if inline != nil {
			inline.Wait()
		}
		return nil
	})

	g.Go(func() error {
		return cleanupLoop(ctx, svc, cfg.Storage.CleanupInterval, log)
	})

	return g.Wait()
}

func cleanupLoop(ctx context.Context, svc *conversion.Service, interval time.Duration, log logger.Logger) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := svc.Cleanup(ctx); err != nil {
				log.Warn("Session cleanup failed", logger.Error(err))
			}
		}
	}
}
