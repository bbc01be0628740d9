// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/roster/internal/api"
	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/catalog"
	"github.com/starford/roster/internal/mcpserver"
	"github.com/starford/roster/internal/overlay"
	"github.com/starford/roster/internal/sse"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}

	cfg, logger, err := app.init()
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("overlay_backend", cfg.Overlay.Backend),
		slog.String("overlay_path", cfg.Overlay.Path),
		slog.String("remote_mode", cfg.Remote.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	broker := sse.NewBroker(cfg.Events.ChangedThrottle)
	defer broker.Close()

	engine := rt.engine(cfg, broker.Notify)
	router := newHTTPHandler(cfg, engine, rt, broker)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	if rt.fs != nil && cfg.Overlay.Watch {
		g.Go(func() error {
			err := overlay.Watch(gCtx, rt.overlay, rt.fs, logger, func() {
				broker.Notify("reloaded", 0)
			})
			if err != nil {
				logger.Warn("overlay watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// SSE streams only end when the broker closes.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// newHTTPHandler builds the root router: middleware, health checks and the
// API under /api.
func newHTTPHandler(cfg *Config, engine *catalog.Engine, rt *runtime, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Ready means the overlay backend answers; the remote may be down,
		// the catalog degrades instead of failing.
		if _, err := rt.provider.Get(overlay.RecordsKey); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(engine, rt.thumbs, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	return r
}

// RunMCP serves the catalog as MCP tools over stdio until the client
// disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(app)
	}

	cfg, logger, err := app.init()
	if err != nil {
		return err
	}
	if !cfg.MCP.Enabled {
		return errors.New("mcp server is disabled in config (mcp.enabled)")
	}

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	version := app.version
	if version == "" {
		version = "dev"
	}
	srv := mcpserver.New(rt.engine(cfg, nil), rt.thumbs, version)

	logger.Info("MCP server starting on stdio", slog.String("remote_mode", cfg.Remote.Mode))
	return srv.ServeStdio()
}
