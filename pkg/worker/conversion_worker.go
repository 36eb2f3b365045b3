package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/image-to-html/internal/service/conversion"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/queue"
)

// ConversionWorker executes queued runs.
type ConversionWorker struct {
	BaseWorker
	exec conversion.Executor
}

func NewConversionWorker(cfg *Config, exec conversion.Executor, log logger.Logger) *ConversionWorker {
	w := &ConversionWorker{
		BaseWorker: newBaseWorker(cfg, log.Named("worker")),
		exec:       exec,
	}
	w.mux.HandleFunc(queue.TaskTypeConvert, w.HandleConvert)
	return w
}

func (w *ConversionWorker) HandleConvert(ctx context.Context, t *asynq.Task) error {
	task, err := queue.ParseTask(t.Payload())
	if err != nil {
		w.logger.Error("Invalid task payload",
			logger.String("payload", string(t.Payload())),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	w.logger.Info("Processing conversion task",
		logger.String("sessionId", task.SessionID),
		logger.Uint64("generation", task.Generation),
	)

	if err := w.exec.Execute(ctx, conversion.Job{
		SessionID:  task.SessionID,
		Generation: task.Generation,
	}); err != nil {
		w.logger.Error("Conversion task failed",
			logger.String("sessionId", task.SessionID),
			logger.Error(err),
		)
		return err
	}
	return nil
}
