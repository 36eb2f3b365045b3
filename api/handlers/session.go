package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/image-to-html/internal/agent/acquire"
	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/internal/service/conversion"
	"github.com/feichai0017/image-to-html/pkg/converters"
	"github.com/feichai0017/image-to-html/pkg/logger"
)

// SessionHandler serves the JSON API.
type SessionHandler struct {
	service   conversion.Processor
	acquirer  *acquire.Acquirer
	converter converters.OutputConverter
	logger    logger.Logger
}

type ImageView struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// SessionView is the public form of a session. Image bytes are never
// included and output is sanitized.
type SessionView struct {
	ID         string     `json:"id"`
	Phase      string     `json:"phase"`
	Progress   int        `json:"progress"`
	Output     string     `json:"output"`
	Generation uint64     `json:"generation"`
	Alert      string     `json:"alert,omitempty"`
	Image      *ImageView `json:"image,omitempty"`
	CreatedAt  string     `json:"createdAt"`
	UpdatedAt  string     `json:"updatedAt"`
}

type dataURLRequest struct {
	DataURL  string `json:"dataUrl" binding:"required"`
	Filename string `json:"filename"`
}

func NewSessionHandler(svc conversion.Processor, acq *acquire.Acquirer, conv converters.OutputConverter, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		service:   svc,
		acquirer:  acq,
		converter: conv,
		logger:    log,
	}
}

func (h *SessionHandler) view(s *models.Session) SessionView {
	v := SessionView{
		ID:         s.ID,
		Phase:      string(s.Phase),
		Progress:   s.Progress,
		Output:     string(h.converter.Convert(s.Output)),
		Generation: s.Generation,
		Alert:      s.Alert,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
	if s.Image != nil {
		v.Image = &ImageView{
			Filename: s.Image.Filename,
			MIMEType: s.Image.MIMEType,
			Size:     s.Image.Size,
			Width:    s.Image.Width,
			Height:   s.Image.Height,
		}
	}
	return v
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	sess, err := h.service.CreateSession(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, http.StatusInternalServerError, "Failed to create session", err)
		return
	}
	c.JSON(http.StatusCreated, h.view(sess))
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.service.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to get session", err)
		return
	}
	c.JSON(http.StatusOK, h.view(sess))
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id := c.Param("sessionId")
	if err := h.service.DeleteSession(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to delete session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Session deleted",
		"sessionId": id,
	})
}

// UploadImage accepts multipart field "image" or a JSON body {"dataUrl": ...}.
func (h *SessionHandler) UploadImage(c *gin.Context) {
	img, err := h.readImage(c)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Invalid image upload", err)
		return
	}

	sess, err := h.service.AcquireImage(c.Request.Context(), c.Param("sessionId"), img)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to store image", err)
		return
	}
	c.JSON(http.StatusOK, h.view(sess))
}

func (h *SessionHandler) readImage(c *gin.Context) (*models.UploadedImage, error) {
	if c.ContentType() == gin.MIMEJSON {
		var req dataURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, errors.Join(acquire.ErrMalformedDataURL, err)
		}
		return h.acquirer.FromDataURL(req.DataURL, req.Filename)
	}

	header, err := c.FormFile("image")
	if err != nil {
		return nil, errors.Join(models.ErrNoImage, err)
	}
	return h.acquirer.FromMultipart(header)
}

func (h *SessionHandler) Process(c *gin.Context) {
	id := c.Param("sessionId")
	sess, err := h.service.Trigger(c.Request.Context(), id)
	if errors.Is(err, models.ErrNoImage) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Message: models.MissingImageNotice,
		})
		return
	}
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to start processing", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"sessionId":  id,
		"generation": sess.Generation,
		"progress":   sess.Progress,
	})
}

// Output returns the sanitized HTML of the last run.
func (h *SessionHandler) Output(c *gin.Context) {
	sess, err := h.service.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to get output", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.converter.Convert(sess.Output)))
}

// Convert runs the pipeline synchronously for one uploaded image.
func (h *SessionHandler) Convert(c *gin.Context) {
	img, err := h.readImage(c)
	if err != nil {
		handleError(c, h.logger, statusFor(err), "Invalid image upload", err)
		return
	}

	out, err := h.service.Convert(c.Request.Context(), img)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    err.Error(),
			"message":  "Processing failed",
			"output":   models.ErrorNotice,
			"progress": models.ProgressIdle,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"output":   string(h.converter.Convert(out)),
		"progress": models.ProgressDone,
	})
}
