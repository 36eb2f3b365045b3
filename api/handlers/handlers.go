package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/image-to-html/internal/agent/acquire"
	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/internal/service/conversion"
	"github.com/feichai0017/image-to-html/internal/utils/validator"
	"github.com/feichai0017/image-to-html/pkg/converters"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

type Config struct {
	CookieSecure   bool
	CookieMaxAge   time.Duration
	RefreshSeconds int
}

type Handlers struct {
	Page    *PageHandler
	Session *SessionHandler
}

func NewHandlers(
	svc conversion.Processor,
	acq *acquire.Acquirer,
	conv converters.OutputConverter,
	cfg Config,
	log logger.Logger,
) *Handlers {
	if cfg.RefreshSeconds <= 0 {
		cfg.RefreshSeconds = 1
	}
	return &Handlers{
		Page:    NewPageHandler(svc, acq, conv, cfg, log.Named("page")),
		Session: NewSessionHandler(svc, acq, conv, log.Named("api")),
	}
}

// Health answers liveness probes.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps service and validation errors to HTTP status codes.
func statusFor(err error) int {
	var failure *validator.Failure
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &failure):
		if failure.Has(validator.CodeFileTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.Is(err, acquire.ErrMalformedDataURL), errors.Is(err, models.ErrNoImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError logs err and writes the JSON error body.
func handleError(c *gin.Context, log logger.Logger, status int, message string, err error) {
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	l := logger.NewContextLogger(log).FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		l.Error(message, fields...)
	} else {
		l.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, response)
}
