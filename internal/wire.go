package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/roster/internal/catalog"
	"github.com/starford/roster/internal/overlay"
	"github.com/starford/roster/internal/remote"
	"github.com/starford/roster/internal/storage"
	"github.com/starford/roster/internal/thumbnail"
)

// runtime holds the components shared by the HTTP and MCP entry points.
type runtime struct {
	logger   *slog.Logger
	provider storage.Provider
	fs       *storage.FS // nil unless the file backend is used
	overlay  *overlay.Store
	remote   remote.Source
	sessions *catalog.Sessions
	thumbs   thumbnail.Resolver
}

func (app *application) init() (*Config, *slog.Logger, error) {
	if app.config == nil {
		return nil, nil, errors.New("config is required")
	}
	out := app.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := newLogger(out, app.config.App.LogLevel)
	slog.SetDefault(logger)
	return app.config, logger, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openProvider opens the configured overlay backend.
func openProvider(cfg OverlayConfig) (storage.Provider, *storage.FS, error) {
	switch cfg.Backend {
	case BackendMemory:
		return storage.NewMemory(), nil, nil
	case BackendSQLite:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite overlay: %w", err)
		}
		return db, nil, nil
	case BackendFile:
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create overlay dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init overlay storage: %w", err)
		}
		return fs, fs, nil
	}
	return nil, nil, fmt.Errorf("unknown overlay backend %q", cfg.Backend)
}

// openRemote builds the configured remote source.
func openRemote(cfg RemoteConfig) (remote.Source, error) {
	switch cfg.Mode {
	case RemoteModeFixture:
		return remote.LoadFixture(cfg.FixturePath)
	case RemoteModeMarvel:
		return remote.NewMarvel(remote.MarvelOptions{
			BaseURL:       cfg.BaseURL,
			PublicKey:     cfg.PublicKey,
			PrivateKey:    cfg.PrivateKey,
			Timeout:       cfg.Timeout,
			RatePerSecond: cfg.RatePerSecond,
			Burst:         cfg.Burst,
		}), nil
	}
	return nil, fmt.Errorf("unknown remote mode %q", cfg.Mode)
}

func newRuntime(cfg *Config, logger *slog.Logger) (*runtime, error) {
	provider, fs, err := openProvider(cfg.Overlay)
	if err != nil {
		return nil, err
	}
	src, err := openRemote(cfg.Remote)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("init remote: %w", err)
	}
	return &runtime{
		logger:   logger,
		provider: provider,
		fs:       fs,
		overlay:  overlay.Open(provider, logger),
		remote:   src,
		sessions: catalog.NewSessions(provider),
		thumbs:   thumbnail.NewResolver(cfg.Catalog.ThumbnailVariant, cfg.Catalog.ThumbnailFallback),
	}, nil
}

func (rt *runtime) engine(cfg *Config, notify catalog.Notifier) *catalog.Engine {
	return catalog.New(catalog.Deps{
		Overlay:          rt.overlay,
		Remote:           rt.remote,
		Sessions:         rt.sessions,
		Logger:           rt.logger,
		Notify:           notify,
		PageSize:         cfg.Catalog.PageSize,
		SimulatedLatency: cfg.Catalog.SimulatedLatency,
		RemoteTimeout:    cfg.Remote.Timeout,
	})
}

func (rt *runtime) Close() error {
	return rt.provider.Close()
}
