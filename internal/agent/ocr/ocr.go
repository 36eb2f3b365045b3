// Package ocr extracts text from session images.
package ocr

import (
	"context"

	"github.com/feichai0017/image-to-html/internal/models"
)

// Client detects text in an image. An image with no text yields "" and a nil
// error; callers decide what to show in that case.
type Client interface {
	Name() string
	DetectText(ctx context.Context, img *models.UploadedImage) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, img *models.UploadedImage) (string, error)

func (f ClientFunc) Name() string { return "func" }

func (f ClientFunc) DetectText(ctx context.Context, img *models.UploadedImage) (string, error) {
	return f(ctx, img)
}
