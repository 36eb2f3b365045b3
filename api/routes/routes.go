package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/image-to-html/api/handlers"
	"github.com/feichai0017/image-to-html/api/middleware"
	"github.com/feichai0017/image-to-html/pkg/logger"
	"github.com/feichai0017/image-to-html/web"
)

type Options struct {
	AllowOrigins []string
	// MaxMultipartMemory bounds in-memory buffering of uploads.
	MaxMultipartMemory int64
}

// NewRouter builds the engine with middleware, templates and routes.
func NewRouter(h *handlers.Handlers, opts Options, log logger.Logger) (*gin.Engine, error) {
	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)
	if opts.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMultipartMemory
	}

	SetupRoutes(r, h, opts.AllowOrigins)
	return r, nil
}

// SetupRoutes registers the page, the JSON API and health checks.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, allowOrigins []string) {
	r.Use(middleware.CORS(allowOrigins))

	r.GET("/healthz", handlers.Health)

	r.GET("/", h.Page.Index)
	r.POST("/image", h.Page.UploadImage)
	r.POST("/process", h.Page.Process)

	v1 := r.Group("/api/v1")

	sessions := v1.Group("/sessions")
	{
		sessions.POST("", h.Session.CreateSession)
		sessions.GET("/:sessionId", h.Session.GetSession)
		sessions.DELETE("/:sessionId", h.Session.DeleteSession)
		sessions.POST("/:sessionId/image", h.Session.UploadImage)
		sessions.POST("/:sessionId/process", h.Session.Process)
		sessions.GET("/:sessionId/output", h.Session.Output)
	}
	v1.POST("/convert", h.Session.Convert)
}
