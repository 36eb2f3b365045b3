package conversion

import (
	"context"
	"sync"
	"time"

	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/queue"
)

// Executor runs one job to completion.
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// InlineDispatcher runs each job on its own goroutine. The run outlives the
// request that started it and is bounded by timeout.
type InlineDispatcher struct {
	exec    Executor
	timeout time.Duration
	logger  logger.Logger
	wg      sync.WaitGroup
}

func NewInlineDispatcher(exec Executor, timeout time.Duration, log logger.Logger) *InlineDispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &InlineDispatcher{
		exec:    exec,
		timeout: timeout,
		logger:  log.Named("inline-dispatcher"),
	}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, job Job) error {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := d.exec.Execute(runCtx, job); err != nil {
			d.logger.Error("Run execution failed",
				logger.String("sessionId", job.SessionID),
				logger.Uint64("generation", job.Generation),
				logger.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until all dispatched runs have returned.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher hands jobs to the task queue for a worker process.
type QueueDispatcher struct {
	queue queue.Queue
}

func NewQueueDispatcher(q queue.Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: q}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	return d.queue.Enqueue(ctx, &queue.Task{
		SessionID:  job.SessionID,
		Generation: job.Generation,
	})
}
