package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/image-to-html/internal/agent/acquire"
	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/internal/service/conversion"
	"github.com/feichai0017/image-to-html/internal/utils/validator"
	"github.com/feichai0017/image-to-html/pkg/converters"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/pkg/storage"
)

const SessionCookie = "session_id"

// PageHandler serves the browser UI with post/redirect/get.
type PageHandler struct {
	service   conversion.Processor
	acquirer  *acquire.Acquirer
	converter converters.OutputConverter
	config    Config
	logger    logger.Logger
}

// PageView feeds index.tmpl.
type PageView struct {
	SessionID      string
	Filename       string
	PreviewURL     template.URL
	Progress       int
	ShowProgress   bool
	RefreshSeconds int
	Output         template.HTML
	Alert          string
}

func NewPageHandler(svc conversion.Processor, acq *acquire.Acquirer, conv converters.OutputConverter, cfg Config, log logger.Logger) *PageHandler {
	return &PageHandler{
		service:   svc,
		acquirer:  acq,
		converter: conv,
		config:    cfg,
		logger:    log,
	}
}

func NewPageView(s *models.Session, conv converters.OutputConverter, refresh int) PageView {
	v := PageView{
		SessionID:      s.ID,
		Progress:       s.Progress,
		ShowProgress:   s.Progress > models.ProgressIdle && s.Progress < models.ProgressDone,
		RefreshSeconds: refresh,
		Output:         conv.Convert(s.Output),
		Alert:          s.Alert,
	}
	if s.Image != nil {
		v.Filename = s.Image.Filename
		// Built by the acquirer from sniffed bytes, never from client text.
		v.PreviewURL = template.URL(s.Image.DataURL)
	}
	return v
}

// session returns the caller's session, creating one when the cookie is
// missing or stale.
func (h *PageHandler) session(c *gin.Context) (*models.Session, error) {
	ctx := c.Request.Context()
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		sess, err := h.service.GetSession(ctx, id)
		if err == nil {
			c.Request = c.Request.WithContext(logger.WithSessionID(ctx, id))
			return sess, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	sess, err := h.service.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sess.ID, int(h.config.CookieMaxAge.Seconds()), "/", "", h.config.CookieSecure, true)
	c.Request = c.Request.WithContext(logger.WithSessionID(ctx, sess.ID))
	return sess, nil
}

func (h *PageHandler) Index(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		handleError(c, h.logger, http.StatusInternalServerError, "Failed to load session", err)
		return
	}

	view := NewPageView(sess, h.converter, h.config.RefreshSeconds)
	if sess.Alert != "" {
		if err := h.service.ClearAlert(c.Request.Context(), sess.ID); err != nil {
			h.logger.Warn("Failed to clear alert", logger.String("sessionId", sess.ID), logger.Error(err))
		}
	}
	c.HTML(http.StatusOK, "index.tmpl", view)
}

// UploadImage replaces the session image. A request without a file changes
// nothing.
func (h *PageHandler) UploadImage(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		handleError(c, h.logger, http.StatusInternalServerError, "Failed to load session", err)
		return
	}
	ctx := c.Request.Context()

	header, err := c.FormFile("image")
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	img, err := h.acquirer.FromMultipart(header)
	if err != nil {
		h.logger.Warn("Rejected upload", logger.String("filename", header.Filename), logger.Error(err))
		msg := "Could not read the selected file."
		var failure *validator.Failure
		if errors.As(err, &failure) {
			msg = failure.Error()
		}
		if nerr := h.service.Notify(ctx, sess.ID, msg); nerr != nil {
			handleError(c, h.logger, statusFor(nerr), "Failed to record alert", nerr)
			return
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if _, err := h.service.AcquireImage(ctx, sess.ID, img); err != nil {
		handleError(c, h.logger, statusFor(err), "Failed to store image", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Process starts a run. Without an image the session alert is set and no
// upstream call is made.
func (h *PageHandler) Process(c *gin.Context) {
	sess, err := h.session(c)
	if err != nil {
		handleError(c, h.logger, http.StatusInternalServerError, "Failed to load session", err)
		return
	}

	if _, err := h.service.Trigger(c.Request.Context(), sess.ID); err != nil && !errors.Is(err, models.ErrNoImage) {
		// The session already carries the error notice.
		h.logger.Error("Failed to start processing", logger.String("sessionId", sess.ID), logger.Error(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}
