package conversion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/queue"
)

type executorFunc func(ctx context.Context, job Job) error

func (f executorFunc) Execute(ctx context.Context, job Job) error { return f(ctx, job) }

func TestInlineDispatcherDetachesFromRequest(t *testing.T) {
	done := make(chan error, 1)
	exec := executorFunc(func(ctx context.Context, job Job) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		done <- ctx.Err()
		return nil
	})
	d := NewInlineDispatcher(exec, time.Minute, logger.NewTestLogger())

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Dispatch(reqCtx, Job{SessionID: "s", Generation: 1}))
	d.Wait()

	assert.NoError(t, <-done)
}

func TestInlineDispatcherLogsFailures(t *testing.T) {
	log := logger.NewTestLogger()
	d := NewInlineDispatcher(executorFunc(func(context.Context, Job) error {
		return errors.New("store unavailable")
	}), 0, log)

	require.NoError(t, d.Dispatch(context.Background(), Job{SessionID: "s", Generation: 1}))
	d.Wait()
	assert.Equal(t, []string{"Run execution failed"}, log.Messages("ERROR"))
}

type fakeQueue struct {
	tasks []*queue.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, t *queue.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

func TestQueueDispatcher(t *testing.T) {
	q := &fakeQueue{}
	d := NewQueueDispatcher(q)

	require.NoError(t, d.Dispatch(context.Background(), Job{SessionID: "s", Generation: 4}))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, "s", q.tasks[0].SessionID)
	assert.Equal(t, uint64(4), q.tasks[0].Generation)

	q.err = errors.New("redis down")
	assert.Error(t, d.Dispatch(context.Background(), Job{SessionID: "s", Generation: 5}))
}
