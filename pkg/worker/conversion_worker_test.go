package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/image-to-html/internal/service/conversion"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/queue"
)

type executorFunc func(ctx context.Context, job conversion.Job) error

func (f executorFunc) Execute(ctx context.Context, job conversion.Job) error { return f(ctx, job) }

func newTestWorker(exec conversion.Executor) (*ConversionWorker, *logger.TestLogger) {
	log := logger.NewTestLogger()
	return NewConversionWorker(&Config{RedisAddr: "127.0.0.1:0"}, exec, log), log
}

func TestHandleConvert(t *testing.T) {
	var got conversion.Job
	w, _ := newTestWorker(executorFunc(func(_ context.Context, job conversion.Job) error {
		got = job
		return nil
	}))

	task, err := queue.NewTask(&queue.Task{SessionID: "s1", Generation: 2}, 0)
	require.NoError(t, err)
	require.NoError(t, w.HandleConvert(context.Background(), task))
	assert.Equal(t, conversion.Job{SessionID: "s1", Generation: 2}, got)
}

func TestHandleConvertBadPayloadSkipsRetry(t *testing.T) {
	w, log := newTestWorker(executorFunc(func(context.Context, conversion.Job) error {
		t.Fatal("executor must not run")
		return nil
	}))

	err := w.HandleConvert(context.Background(), asynq.NewTask(queue.TaskTypeConvert, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, log.Messages("ERROR"), "Invalid task payload")
}

func TestHandleConvertPropagatesFailure(t *testing.T) {
	boom := errors.New("store unavailable")
	w, _ := newTestWorker(executorFunc(func(context.Context, conversion.Job) error { return boom }))

	task, err := queue.NewTask(&queue.Task{SessionID: "s1", Generation: 1}, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, w.HandleConvert(context.Background(), task), boom)
}
