package validator

import (
	"fmt"
	"strings"

	"github.com/feichai0017/image-to-html/pkg/logger"
)

// Error codes reported in ValidationError.Code.
const (
	CodeEmptyFile       = "EMPTY_FILE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeInvalidMimeType = "INVALID_MIME_TYPE"
	CodeCorruptImage    = "CORRUPT_IMAGE"
	CodeBadDimensions   = "INVALID_DIMENSIONS"
)

// ImageValidator checks uploaded images before they enter a session.
type ImageValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

type ValidatorConfig struct {
	MaxFileSize  int64    // bytes
	AllowedTypes []string // MIME types, e.g. image/png
	MinDimension int      // pixels, 0 disables
	MaxDimension int      // pixels, 0 disables
}

type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo is what the acquirer learned about an upload.
type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	// Decoded is false when the image header could not be parsed.
	Decoded bool `json:"decoded"`
}

// Failure is the error form of an invalid ValidationResult.
type Failure struct {
	Errors []ValidationError
}

func (f *Failure) Error() string {
	msgs := make([]string, len(f.Errors))
	for i, e := range f.Errors {
		msgs[i] = e.Message
	}
	return "invalid image: " + strings.Join(msgs, "; ")
}

// Has reports whether the failure carries the given code.
func (f *Failure) Has(code string) bool {
	for _, e := range f.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Err returns nil for a valid result and a *Failure otherwise.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &Failure{Errors: r.Errors}
}

func NewImageValidator(log logger.Logger, config *ValidatorConfig) *ImageValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize:  10 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/tiff", "image/bmp"},
			MaxDimension: 10000,
		}
	}
	return &ImageValidator{logger: log, config: config}
}

// MaxFileSize is the configured upload limit in bytes.
func (v *ImageValidator) MaxFileSize() int64 {
	return v.config.MaxFileSize
}

// Validate checks size, type and dimensions of an upload.
func (v *ImageValidator) Validate(info FileInfo) *ValidationResult {
	result := &ValidationResult{IsValid: true, FileInfo: info}

	for _, check := range []func(FileInfo) []ValidationError{
		v.checkSize,
		v.checkMimeType,
		v.checkDimensions,
	} {
		if errs := check(info); len(errs) > 0 {
			result.IsValid = false
			result.Errors = append(result.Errors, errs...)
		}
	}

	if !result.IsValid {
		v.logger.Warn("Image validation failed",
			logger.String("filename", info.Filename),
			logger.String("mimeType", info.MimeType),
			logger.Int64("size", info.Size),
			logger.Any("errors", result.Errors),
		)
	}
	return result
}

func (v *ImageValidator) checkSize(info FileInfo) []ValidationError {
	if info.Size == 0 {
		return []ValidationError{{
			Code:    CodeEmptyFile,
			Message: "File is empty",
			Field:   "size",
		}}
	}
	if v.config.MaxFileSize > 0 && info.Size > v.config.MaxFileSize {
		return []ValidationError{{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		}}
	}
	return nil
}

func (v *ImageValidator) checkMimeType(info FileInfo) []ValidationError {
	if info.Size == 0 {
		return nil
	}
	if !strings.HasPrefix(info.MimeType, "image/") {
		return []ValidationError{{
			Code:    CodeInvalidFileType,
			Message: fmt.Sprintf("File type %s is not an image", info.MimeType),
			Field:   "mimeType",
		}}
	}
	for _, allowed := range v.config.AllowedTypes {
		if allowed == info.MimeType {
			return nil
		}
	}
	return []ValidationError{{
		Code:    CodeInvalidMimeType,
		Message: fmt.Sprintf("Image type %s is not allowed", info.MimeType),
		Field:   "mimeType",
	}}
}

func (v *ImageValidator) checkDimensions(info FileInfo) []ValidationError {
	if info.Size == 0 || !strings.HasPrefix(info.MimeType, "image/") {
		return nil
	}
	if !info.Decoded {
		return []ValidationError{{
			Code:    CodeCorruptImage,
			Message: "Image header could not be decoded",
			Field:   "content",
		}}
	}

	var errs []ValidationError
	if v.config.MinDimension > 0 && (info.Width < v.config.MinDimension || info.Height < v.config.MinDimension) {
		errs = append(errs, ValidationError{
			Code:    CodeBadDimensions,
			Message: fmt.Sprintf("Image must be at least %dx%d pixels", v.config.MinDimension, v.config.MinDimension),
			Field:   "dimensions",
		})
	}
	if v.config.MaxDimension > 0 && (info.Width > v.config.MaxDimension || info.Height > v.config.MaxDimension) {
		errs = append(errs, ValidationError{
			Code:    CodeBadDimensions,
			Message: fmt.Sprintf("Image must be at most %dx%d pixels", v.config.MaxDimension, v.config.MaxDimension),
			Field:   "dimensions",
		})
	}
	return errs
}
