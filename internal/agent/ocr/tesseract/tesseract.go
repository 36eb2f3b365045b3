// Package tesseract runs OCR locally through libtesseract.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/image-to-html/internal/agent/ocr/preprocess"
	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
)

type Config struct {
	Languages  []string
	Preprocess preprocess.Options
}

// Client creates one gosseract client per call; gosseract clients are not
// safe for concurrent use.
type Client struct {
	languages []string
	chain     preprocess.Chain
	logger    logger.Logger
}

func New(cfg Config, log logger.Logger) *Client {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &Client{
		languages: langs,
		chain:     preprocess.NewChain(cfg.Preprocess),
		logger:    log.Named("tesseract"),
	}
}

func (c *Client) Name() string { return "tesseract" }

func (c *Client) DetectText(ctx context.Context, img *models.UploadedImage) (string, error) {
	data, err := img.Bytes()
	if err != nil {
		return "", err
	}
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	processed, err := c.chain.Process(decoded)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, processed); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(c.languages...); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}

	c.logger.Debug("Tesseract recognition finished",
		logger.String("languages", strings.Join(c.languages, "+")),
		logger.Int("chars", len(text)),
	)
	return strings.TrimSpace(text), nil
}
