// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/bugwall/internal/api"
	"github.com/starford/bugwall/internal/catalog"
	"github.com/starford/bugwall/internal/corpus"
	"github.com/starford/bugwall/internal/render"
	"github.com/starford/bugwall/internal/sse"
	"github.com/starford/bugwall/internal/storage"
)

// NewLogger returns the structured JSON logger for cfg writing to w.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Components are the wired catalog building blocks shared by the server
// and the CLI commands.
type Components struct {
	Store    storage.Provider
	// FS is set for the fs backend; it is what the watcher observes.
	FS       *storage.FS
	Renderer *render.Renderer
	Loader   *corpus.Loader
	Catalog  *catalog.Catalog
}

// Build opens the configured content store and wires the catalog over it.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Components, error) {
	c := &Components{}

	switch cfg.Content.Backend {
	case BackendS3:
		s3, err := storage.NewS3(cfg.Content.S3Options())
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			logger.Warn("ensure bucket failed", slog.String("bucket", cfg.Content.S3.Bucket), slog.String("error", err.Error()))
		}
		c.Store = s3
	default:
		fs, err := storage.NewFS(cfg.Content.Path, cfg.Content.Extensions...)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.Store, c.FS = fs, fs
	}

	c.Renderer = render.New(render.Options{
		HighlightStyle: cfg.Render.HighlightStyle,
		Logger:         logger,
	})
	c.Loader = corpus.NewLoader(c.Store, c.Renderer,
		corpus.WithLogger(logger),
		corpus.WithConcurrency(cfg.Content.LoadConcurrency),
	)
	c.Catalog = catalog.New(c.Loader, c.Renderer, catalog.Options{
		Search:           cfg.Search.Options(),
		Locale:           cfg.Sort.Locale,
		ReloadPerRequest: cfg.Content.ReloadPerRequest,
		Logger:           logger,
	})
	return c, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := NewLogger(cfg, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_backend", cfg.Content.Backend),
		slog.String("content_path", cfg.Content.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	comps, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cat := comps.Catalog

	if !cfg.Content.ReloadPerRequest {
		if _, err := cat.Reload(ctx); err != nil {
			logger.Warn("initial load failed", slog.String("error", err.Error()))
		}
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

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
		if !cat.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","version":%q}`, cat.Version())
	})

	r.Mount("/api", api.NewRouter(cat, cfg.Contribute.Target(), broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if comps.FS != nil && cfg.Watch.Enabled && !cfg.Content.ReloadPerRequest {
		g.Go(func() error {
			err := cat.Watch(gCtx, comps.FS, cfg.Watch.Debounce, func(s *catalog.Snapshot) {
				broker.PublishReload(s.Version, len(s.Records))
			})
			if err != nil {
				logger.Warn("watcher unavailable", slog.String("error", err.Error()))
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

	// A signal cancels ctx and with it gCtx, which stops the watcher too.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...", slog.String("cause", context.Cause(gCtx).Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
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
