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

	"github.com/starford/feedwise/internal/api"
	"github.com/starford/feedwise/internal/feeding"
	"github.com/starford/feedwise/internal/inbox"
	"github.com/starford/feedwise/internal/locale"
	"github.com/starford/feedwise/internal/mcpserver"
	"github.com/starford/feedwise/internal/reminder"
	"github.com/starford/feedwise/internal/sse"
	"github.com/starford/feedwise/internal/storage"
	"github.com/starford/feedwise/internal/store"
	"github.com/starford/feedwise/internal/ws"
)

// Run starts the HTTP server, the reminder scheduler and the import inbox
// with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("language", cfg.App.Language),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := cfg.Auth.ResolveToken(); err != nil {
		return err
	}

	db, tr, err := openCore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Push channels. Both also act as notification sinks.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	hub := ws.NewHub(logger)
	defer hub.Close()

	var sinks reminder.Fanout
	if cfg.Notifications.SSE {
		sinks = append(sinks, sse.NotificationSink{Broker: broker})
	}
	if cfg.Notifications.WebSocket {
		sinks = append(sinks, hub)
	}
	if len(sinks) == 0 {
		logger.Warn("No notification sink enabled, reminders will not be armed")
	}

	timers := reminder.NewSystemTimers()
	sched := reminder.New(timers, sinks, tr,
		reminder.WithLogger(logger),
		reminder.WithIcon(cfg.Notifications.Icon),
		reminder.WithVibrate(cfg.Notifications.Vibrate))
	defer func() {
		sched.CancelAll()
		<-timers.Stop().Done()
	}()

	svcOpts := []feeding.Option{
		feeding.WithScheduler(sched),
		feeding.WithPublisher(broker),
		feeding.WithLogger(logger),
	}
	if cfg.Data.BackupPath != "" {
		backups, err := openDir(cfg.Data.BackupPath)
		if err != nil {
			return fmt.Errorf("init backups: %w", err)
		}
		defer backups.Close()
		svcOpts = append(svcOpts,
			feeding.WithBackups(backups),
			feeding.WithBackupRetention(cfg.Data.BackupKeep))
	}
	svc := feeding.NewService(db, tr, svcOpts...)

	// Re-arm reminders from the stored profiles.
	if n, err := svc.Restore(ctx); err != nil {
		logger.Warn("restore reminders failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Reminders restored", slog.Int("profiles", n))
	}

	streams := api.Streams{Events: broker}
	if cfg.Notifications.WebSocket {
		streams.Socket = hub
	}
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, streams, logger)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Watch the import inbox.
	if cfg.Data.InboxPath != "" {
		inboxFS, err := openDir(cfg.Data.InboxPath)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		defer inboxFS.Close()
		w := inbox.New(cfg.Data.InboxPath, inboxFS, svc, logger, func(kind, path string) {
			typ := sse.TypeInboxProcessed
			if kind == "failed" {
				typ = sse.TypeInboxFailed
			}
			broker.Publish(sse.Event{Type: typ, Data: map[string]string{"path": path}})
		})
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	// Push a fresh timeline periodically.
	g.Go(func() error {
		return svc.RunScheduleRefresh(gCtx, cfg.Schedule.RefreshInterval, func(items []feeding.ScheduleEntry) {
			broker.Publish(sse.Event{Type: sse.TypeScheduleUpdated, Data: items})
			if cfg.Notifications.WebSocket {
				if err := hub.Broadcast(sse.TypeScheduleUpdated, items); err != nil {
					logger.Debug("schedule broadcast failed", slog.String("error", err.Error()))
				}
			}
		})
	})

	// Start HTTP server.
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
		// Stop the inbox and the refresh loop as well.
		stop()

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

// RunMCP serves the read-only MCP tools on stdin/stdout. No reminders are
// armed.
func RunMCP(_ context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	logger := app.logger()
	slog.SetDefault(logger)

	db, tr, err := openCore(app.config)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := feeding.NewService(db, tr, feeding.WithLogger(logger))
	logger.Info("MCP server starting", slog.String("sqlite_path", app.config.SQLite.Path))
	return mcpserver.New(svc, Version).ServeStdio()
}

// Export writes the export document of every profile to w.
func Export(ctx context.Context, w io.Writer, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	db, tr, err := openCore(app.config)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := feeding.NewService(db, tr, feeding.WithLogger(app.logger())).ExportJSON(ctx)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Import replaces every stored profile with the export document read from r.
// A running server picks the new profiles up on its next restart; drop the
// file into the inbox instead to re-arm reminders immediately.
func Import(ctx context.Context, r io.Reader, opts ...Option) (int, error) {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return 0, fmt.Errorf("config is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read import: %w", err)
	}
	db, tr, err := openCore(app.config)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return feeding.NewService(db, tr, feeding.WithLogger(app.logger())).ImportJSON(ctx, data)
}

func openCore(cfg *Config) (*store.DB, *locale.Translator, error) {
	tr, err := locale.New(cfg.App.Language)
	if err != nil {
		return nil, nil, fmt.Errorf("init locale: %w", err)
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	return db, tr, nil
}

func openDir(path string) (*storage.FS, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return storage.NewFS(path)
}
