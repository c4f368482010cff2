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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ghostwriter/internal/api"
	"github.com/starford/ghostwriter/internal/index"
	"github.com/starford/ghostwriter/internal/mcpserver"
	"github.com/starford/ghostwriter/internal/metrics"
	"github.com/starford/ghostwriter/internal/publish"
	"github.com/starford/ghostwriter/internal/sse"
)

func build(opts []Option, json bool) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	return resolve(app, json)
}

// Run starts the HTTP server with the vault watcher until ctx is cancelled
// or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := build(opts, true)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ghost_url", cfg.Ghost.URL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	broker := sse.NewBroker(sse.WithRefreshThrottle(2 * time.Second))
	defer broker.Close()

	app.offline = !cfg.Ghost.Configured()
	if app.offline {
		logger.Warn("ghost is not configured, publishing is disabled")
	}
	st, err := newStack(app, stackSpec{
		remote:  true,
		uploads: true,
		metrics: recorder,
		publish: []publish.Option{
			publish.WithEvents(broker),
			publish.WithNotifier(publish.LogNotifier{Logger: logger}),
		},
	})
	if err != nil {
		return err
	}
	defer st.close(nil)

	apiRouter := api.NewRouter(st.notes, st.publish, cfg.Auth.AuthEnabled(), cfg.Auth.Token,
		api.WithEvents(broker),
		api.WithMetrics(metrics.HTTPHandler(reg)))

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := st.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w := index.NewWatcher(st.db, st.store, st.store.Root(), logger,
			index.WithCallback(broker.PublishNoteEvent))
		return w.Run(gCtx)
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Publish renders the note at notePath and creates or updates it on Ghost.
// The success or failure notice goes to the output writer. Pending uploads
// are drained before returning.
func Publish(ctx context.Context, notePath string, opts ...Option) error {
	app, err := build(opts, false)
	if err != nil {
		return err
	}
	st, err := newStack(app, stackSpec{
		remote:  true,
		uploads: true,
		publish: []publish.Option{publish.WithNotifier(publish.WriterNotifier{W: app.out})},
	})
	if err != nil {
		return err
	}
	defer st.close(app.out)

	res, err := st.publish.Publish(ctx, notePath)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(app.out, res.EditorURL)
	return nil
}

// Render prints the Ghost HTML for the note at notePath. With WithOffline the
// enrichment stage is skipped and nothing is sent to Ghost.
func Render(ctx context.Context, notePath string, opts ...Option) error {
	app, err := build(opts, false)
	if err != nil {
		return err
	}
	if !app.config.Ghost.Configured() {
		app.offline = true
	}
	st, err := newStack(app, stackSpec{remote: true})
	if err != nil {
		return err
	}
	defer st.close(nil)

	out, err := st.publish.Render(ctx, notePath)
	if err != nil {
		return errors.New(publish.FailureMessage(err))
	}
	_, err = fmt.Fprintln(app.out, out.HTML)
	return err
}

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := build(opts, false)
	if err != nil {
		return err
	}
	app.offline = !app.config.Ghost.Configured()
	st, err := newStack(app, stackSpec{
		remote:  true,
		uploads: true,
		publish: []publish.Option{publish.WithNotifier(publish.LogNotifier{Logger: app.logger})},
	})
	if err != nil {
		return err
	}
	defer st.close(nil)

	mcpOpts := []mcpserver.Option{mcpserver.WithLogger(app.logger)}
	if st.client != nil {
		mcpOpts = append(mcpOpts, mcpserver.WithUploader(st.client))
	}
	return mcpserver.New(st.notes, st.publish, mcpOpts...).ServeStdio()
}

// Index brings the SQLite index up to date with the vault and reports how
// many notes it holds.
func Index(ctx context.Context, opts ...Option) error {
	app, err := build(opts, false)
	if err != nil {
		return err
	}
	app.offline = true
	st, err := newStack(app, stackSpec{})
	if err != nil {
		return err
	}
	defer st.close(nil)

	_, total, err := st.notes.ListNotes(ctx, 1, 0, "", "")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.out, "indexed %d notes in %s\n", total, st.store.Root())
	return err
}
