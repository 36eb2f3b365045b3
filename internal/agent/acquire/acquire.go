// Package acquire turns uploaded files and client data URLs into
// models.UploadedImage values.
package acquire

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/internal/utils/validator"
)

var ErrMalformedDataURL = errors.New("malformed data URL")

type Acquirer struct {
	validator *validator.ImageValidator
}

func New(v *validator.ImageValidator) *Acquirer {
	return &Acquirer{validator: v}
}

// FromReader reads one image. At most one byte past the configured limit is
// read before the upload is rejected.
func (a *Acquirer) FromReader(r io.Reader, filename string) (*models.UploadedImage, error) {
	limit := a.validator.MaxFileSize()
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return a.fromBytes(data, filename)
}

func (a *Acquirer) FromMultipart(header *multipart.FileHeader) (*models.UploadedImage, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	return a.FromReader(file, header.Filename)
}

// FromDataURL accepts a base64 data URL such as data:image/png;base64,....
// The declared type is ignored in favour of the sniffed one.
func (a *Acquirer) FromDataURL(dataURL, filename string) (*models.UploadedImage, error) {
	header, payload, ok := strings.Cut(strings.TrimSpace(dataURL), ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrMalformedDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	if limit := a.validator.MaxFileSize(); limit > 0 && int64(len(data)) > limit {
		data = data[:limit+1]
	}
	return a.fromBytes(data, filename)
}

func (a *Acquirer) fromBytes(data []byte, filename string) (*models.UploadedImage, error) {
	info := validator.FileInfo{
		Filename: filename,
		Size:     int64(len(data)),
	}
	if len(data) > 0 {
		info.MimeType, _, _ = strings.Cut(mimetype.Detect(data).String(), ";")
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			info.Width, info.Height, info.Decoded = cfg.Width, cfg.Height, true
		}
	}

	if err := a.validator.Validate(info).Err(); err != nil {
		return nil, err
	}

	return &models.UploadedImage{
		Filename: filename,
		MIMEType: info.MimeType,
		Size:     info.Size,
		Width:    info.Width,
		Height:   info.Height,
		DataURL:  models.NewDataURL(info.MimeType, data),
	}, nil
}
