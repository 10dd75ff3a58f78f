// Package bootstrap wires configuration, logging, storage adapters and the
// HTTP server into runnable processes.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/sh3r4rd/mycloud/internal/config"
	"github.com/sh3r4rd/mycloud/internal/files"
	"github.com/sh3r4rd/mycloud/internal/httpapi"
	"github.com/sh3r4rd/mycloud/internal/reconcile"
	"github.com/sh3r4rd/mycloud/internal/session"
)

// Runtime is the assembled API process.
type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	reconciler *reconcile.Reconciler
}

// NewRuntime builds the API process from the config file at configPath.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(os.Stdout, cfg.ServiceID, cfg.Log.Level)
	logger.Info("bootstrapping api", "http_port", cfg.HTTP.Port, "storage_driver", cfg.Storage.Driver)

	stores, err := NewStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sessionStore, err := session.NewStore(cfg.Session)
	if err != nil {
		return nil, err
	}

	svc := files.NewService(files.Dependencies{
		Objects:        stores.Objects,
		Files:          stores.Files,
		Logs:           stores.Logs,
		Logger:         logger,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	})

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(svc, httpapi.Options{
		Logger:         logger,
		SessionName:    cfg.Session.Name,
		SessionStore:   sessionStore,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RateLimit:      cfg.RateLimit.RPS,
		RateBurst:      cfg.RateLimit.Burst,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	})

	return &Runtime{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           router,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		},
		reconciler: NewReconciler(stores, cfg, logger),
	}, nil
}

// NewReconciler builds a reconciler over stores using the configured grace.
func NewReconciler(stores Stores, cfg config.Config, logger *slog.Logger) *reconcile.Reconciler {
	return reconcile.New(reconcile.Dependencies{
		Objects: stores.Objects,
		Files:   stores.Files,
		Logs:    stores.Logs,
		Logger:  logger.With("component", "reconciler"),
		Grace:   cfg.Reconcile.Grace,
	})
}

// RunAPI serves HTTP, plus the reconcile loop when an interval is configured,
// until a signal arrives or a component fails.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if r.cfg.Reconcile.Interval > 0 {
		g.Go(func() error {
			return r.reconciler.Run(gctx, r.cfg.Reconcile.Interval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		r.logger.Error("server failure", "error", err)
		return err
	}
	return nil
}
