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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/starford/float/internal/api"
	"github.com/starford/float/internal/blockservice"
	"github.com/starford/float/internal/executor"
	"github.com/starford/float/internal/llm"
	"github.com/starford/float/internal/mcpserver"
	"github.com/starford/float/internal/models"
	"github.com/starford/float/internal/runlog"
	"github.com/starford/float/internal/seed"
	"github.com/starford/float/internal/sse"
	"github.com/starford/float/internal/termview"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the structured JSON logger and installs it as default.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// openSession loads the seed, connects the provider and the run log, and
// builds the block service. The returned cleanup stops executions and closes
// the run log.
func openSession(ctx context.Context, cfg *Config, logger *slog.Logger, extra ...blockservice.Option) (*blockservice.Service, func(), error) {
	ds, err := seed.Load(cfg.Seed.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load seed: %w", err)
	}

	gen, err := llm.New(ctx, cfg.LLM.ProviderConfig(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init llm: %w", err)
	}

	db, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init run log: %w", err)
	}

	execOpts := []executor.Option{executor.WithTimeout(cfg.LLM.Timeout)}
	if cfg.LLM.RatePerSecond > 0 {
		burst := max(cfg.LLM.Burst, 1)
		execOpts = append(execOpts, executor.WithLimiter(rate.NewLimiter(rate.Limit(cfg.LLM.RatePerSecond), burst)))
	}

	opts := append([]blockservice.Option{
		blockservice.WithRunLog(db),
		blockservice.WithExecutorOptions(execOpts...),
	}, extra...)

	svc, err := blockservice.New(ds, gen, logger, opts...)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init session: %w", err)
	}

	cleanup := func() {
		svc.Close()
		if err := db.Close(); err != nil {
			logger.Error("close run log", slog.String("error", err.Error()))
		}
	}
	return svc, cleanup, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("seed_path", cfg.Seed.Path),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("runlog_path", cfg.RunLog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.TreeThrottle)
	defer broker.Close()

	svc, cleanup, err := openSession(ctx, cfg, logger, blockservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer cleanup()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if _, err := svc.Get(req.Context(), models.RootID); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics (unauthenticated).
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

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

// RunMCP serves the session as MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, app.config.App.LogLevel)

	svc, cleanup, err := openSession(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc, app.version).ServeStdio()
}

// RenderTree prints the seeded block tree, optionally from a given block.
func RenderTree(ctx context.Context, from string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, app.config.App.LogLevel)

	svc, cleanup, err := openSession(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if from == "" {
		from = models.RootID
	}
	if _, err := svc.Get(ctx, from); err != nil {
		return err
	}
	_, err = io.WriteString(app.out, termview.Render(svc.Entries(from)))
	return err
}
