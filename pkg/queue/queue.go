package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeConvert = "image:convert"

// Queue hands conversion runs to a worker process.
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	Close() error
}

// Task identifies one run. The worker reloads the session and drops the task
// if Generation is no longer current.
type Task struct {
	SessionID  string    `json:"sessionId"`
	Generation uint64    `json:"generation"`
	CreatedAt  time.Time `json:"createdAt"`
}

type QueueConfig struct {
	RedisAddr      string
	RedisDB        int
	ProcessTimeout time.Duration
}

type AsynqQueue struct {
	client  *asynq.Client
	timeout time.Duration
}

func NewAsynqQueue(cfg *QueueConfig) *AsynqQueue {
	timeout := cfg.ProcessTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &AsynqQueue{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		}),
		timeout: timeout,
	}
}

// NewTask builds the asynq task for t.
func NewTask(t *Task, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return asynq.NewTask(TaskTypeConvert, payload,
		// A failed run is reported to the user; retrying would race a new one.
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.TaskID(TaskID(t)),
	), nil
}

// TaskID is unique per session and generation so a run is queued once.
func TaskID(t *Task) string {
	return fmt.Sprintf("%s:%d", t.SessionID, t.Generation)
}

// ParseTask decodes a task payload.
func ParseTask(payload []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	if t.SessionID == "" || t.Generation == 0 {
		return nil, fmt.Errorf("invalid task: missing session or generation")
	}
	return &t, nil
}

func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	t, err := NewTask(task, q.timeout)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}
