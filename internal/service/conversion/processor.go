package conversion

import (
	"context"

	"github.com/feichai0017/image-to-html/internal/models"
)

// Processor is the session-facing surface used by the HTTP handlers.
type Processor interface {
	CreateSession(ctx context.Context) (*models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	AcquireImage(ctx context.Context, id string, img *models.UploadedImage) (*models.Session, error)
	Notify(ctx context.Context, id, msg string) error
	ClearAlert(ctx context.Context, id string) error
	Trigger(ctx context.Context, id string) (*models.Session, error)
	Convert(ctx context.Context, img *models.UploadedImage) (string, error)
}

var _ Processor = (*Service)(nil)
