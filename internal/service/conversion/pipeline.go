package conversion

import (
	"context"
	"fmt"
	"strings"

	"github.com/feichai0017/image-to-html/internal/agent/formatter"
	"github.com/feichai0017/image-to-html/internal/agent/ocr"
	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
)

// ReportFunc receives progress checkpoints. Returning an error stops the run
// before the next upstream call.
type ReportFunc func(progress int) error

// Pipeline runs OCR then formatting for one image. Calls are strictly
// sequential and never retried.
type Pipeline struct {
	ocr       ocr.Client
	formatter formatter.Formatter
	logger    logger.Logger
}

func NewPipeline(o ocr.Client, f formatter.Formatter, log logger.Logger) *Pipeline {
	return &Pipeline{
		ocr:       o,
		formatter: f,
		logger:    log.Named("pipeline"),
	}
}

func (p *Pipeline) Run(ctx context.Context, img *models.UploadedImage, report ReportFunc) (string, error) {
	if img == nil {
		return "", models.ErrNoImage
	}
	if report == nil {
		report = func(int) error { return nil }
	}

	if err := report(models.ProgressStarted); err != nil {
		return "", err
	}

	text, err := p.ocr.DetectText(ctx, img)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		text = models.NoTextDetected
	}
	p.logger.Debug("Text extracted",
		logger.String("ocr", p.ocr.Name()),
		logger.Int("chars", len(text)),
	)
	if err := report(models.ProgressTextExtracted); err != nil {
		return "", err
	}

	out, err := p.formatter.Format(ctx, text)
	if err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		out = models.NoOutputGenerated
	}
	if err := report(models.ProgressFormatted); err != nil {
		return "", err
	}

	return out, nil
}
