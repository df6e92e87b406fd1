package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, ctrl *Controller) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			ctrl.logger.Info("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(rejectCrossSite)

	e.GET("/healthz", ctrl.Health)
	e.GET("/api/entries", ctrl.ListEntries)
	e.POST("/api/tasks", ctrl.StartTask)
	e.GET("/api/tasks/current", ctrl.CurrentTask)
	e.POST("/api/tasks/current/:action", ctrl.ControlTask)
	e.GET("/api/events", ctrl.Events)
}

// rejectCrossSite refuses state-changing requests that a browser marks as
// coming from another site. Clients that send neither header pass.
func rejectCrossSite(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		req := c.Request()
		switch req.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return next(c)
		}
		if site := req.Header.Get(echo.HeaderSecFetchSite); site == "cross-site" || site == "same-site" {
			return fail(c, http.StatusForbidden, errors.New("cross-site request rejected"))
		}
		if origin := req.Header.Get(echo.HeaderOrigin); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != req.Host {
				return fail(c, http.StatusForbidden, errors.New("cross-site request rejected"))
			}
		}
		return next(c)
	}
}

// NewHandler builds the echo router for ctrl.
func NewHandler(ctrl *Controller) http.Handler {
	e := echo.New()
	RegisterRoutes(e, ctrl)
	return e
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
// and cancels any running download.
func Serve(ctx context.Context, addr string, ctrl *Controller, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(ctrl),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	ctrl.Close()
	logger.Info("server stopped")
	return nil
}
