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

	"golang.org/x/sync/errgroup"

	"github.com/starford/neuralos/internal/api"
	"github.com/starford/neuralos/internal/inbox"
	"github.com/starford/neuralos/internal/mcpserver"
	"github.com/starford/neuralos/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run starts the HTTP server, the outbox relay and the optional inbox
// watcher, and blocks until a shutdown signal or a fatal error.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, logCloser := newLogger(cfg, app.logOut)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("vector_backend", cfg.Vector.Backend),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := buildComponents(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer c.close(logger)

	router := api.NewRouter(api.Deps{
		Notes:          c.notes,
		Search:         c.search,
		Stats:          c.stats,
		Preferences:    c.prefs,
		Notifications:  c.notifications,
		Ready:          c.db,
		Events:         c.broker,
		AllowedOrigins: cfg.App.CORS.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.relay.Run(gCtx)
	})

	if cfg.Inbox.Enabled {
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		files, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox storage: %w", err)
		}
		importer := inbox.NewImporter(files, c.notes, cfg.Inbox.UserID, logger)
		g.Go(func() error {
			return inbox.Watch(gCtx, importer, cfg.Inbox.Path, inbox.DefaultDebounce)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the relay and the inbox watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdio. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger, logCloser := newLogger(app.config, app.logOut)
	defer logCloser.Close()
	slog.SetDefault(logger)

	c, err := buildComponents(ctx, app.config, logger, false)
	if err != nil {
		return err
	}
	defer c.close(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.relay.Run(gCtx)
	})
	g.Go(func() error {
		defer cancel()
		srv := mcpserver.New(c.notes, c.search, c.stats, api.Version)
		logger.Info("MCP server listening on stdio")
		return srv.ServeStdio()
	})
	return g.Wait()
}

// Reindex schedules every note of userID (all users when empty) for
// re-embedding, drains the outbox once and prints a summary to w.
func Reindex(ctx context.Context, userID string, w io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, logCloser := newLogger(app.config, app.logOut)
	defer logCloser.Close()

	c, err := buildComponents(ctx, app.config, logger, false)
	if err != nil {
		return err
	}
	defer c.close(logger)

	scheduled, err := c.notes.Reindex(ctx, userID)
	if err != nil {
		return err
	}
	delivered, err := c.relay.Drain(ctx)
	if err != nil {
		return fmt.Errorf("drain outbox: %w", err)
	}
	_, err = fmt.Fprintf(w, "scheduled %d notes, delivered %d events\n", scheduled, delivered)
	return err
}
