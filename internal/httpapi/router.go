// Package httpapi exposes the file service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/files"
	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/session"
	"github.com/sh3r4rd/mycloud/web"
)

// FileService is the application surface the handlers depend on.
type FileService interface {
	Upload(ctx context.Context, in model.UploadRequest) (model.FileRecord, error)
	List(ctx context.Context, userID string) ([]model.FileRecord, error)
	DownloadLink(ctx context.Context, userID, fileID string) (files.DownloadLink, error)
	Logs(ctx context.Context, userID string) ([]model.ActivityLogEntry, error)
}

// Options configures NewRouter.
type Options struct {
	Logger       *slog.Logger
	SessionName  string
	SessionStore sessions.Store
	CORSOrigins  []string
	// RateLimit disables per-client limiting when zero.
	RateLimit      float64
	RateBurst      int
	MaxUploadBytes int64
}

type handler struct {
	svc            FileService
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewRouter registers routes and the middleware stack. Health checks and
// static assets are served before the session middleware so they never
// create sessions.
func NewRouter(svc FileService, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, logger: logger, maxUploadBytes: opts.MaxUploadBytes}

	r := gin.New()
	r.Use(requestID())
	r.Use(requestLogger(logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "panic recovered",
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(apperr.New(apperr.KindUnknown, "http.Recovery", "")))
	}))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type", model.IdempotencyHeader, requestIDHeader},
			ExposeHeaders:    []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(static.Serve("/static", assetFS{http.FS(web.Static())}))
	r.SetHTMLTemplate(web.Templates())

	r.GET("/health", h.health)

	app := r.Group("/")
	if opts.RateLimit > 0 {
		app.Use(newRateLimiter(opts.RateLimit, opts.RateBurst).middleware())
	}
	app.Use(sessions.Sessions(opts.SessionName, opts.SessionStore))
	app.Use(session.Identity(logger))

	app.GET("/", h.index)
	app.POST("/upload", h.upload)
	app.GET("/files", h.listFiles)
	app.GET("/download/:file_id", h.download)
	app.GET("/logs", h.logs)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody(apperr.New(apperr.KindNotFound, "http.NoRoute", "Route not found")))
	})
	return r
}

// assetFS adapts an http.FileSystem to static.ServeFileSystem.
type assetFS struct {
	http.FileSystem
}

func (a assetFS) Exists(prefix, path string) bool {
	name := strings.TrimPrefix(path, prefix)
	if name == path {
		return false
	}
	f, err := a.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	return err == nil && !info.IsDir()
}
