package storage

import (
	"context"
	"errors"
	"time"

	"github.com/feichai0017/image-to-html/internal/models"
)

type StorageType string

const (
	StorageTypeMemory StorageType = "memory"
	StorageTypeRedis  StorageType = "redis"
)

var ErrNotFound = errors.New("session not found")

// UpdateFunc mutates a session in place. Returning an error discards the
// change and is passed through to the caller.
type UpdateFunc func(s *models.Session) error

// Storage holds session state. Update is atomic per session.
type Storage interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	// CleanupBefore drops sessions not updated since threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) (int, error)
	Close() error
}
