// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/specmon/internal/api"
	"github.com/starford/specmon/internal/history"
	"github.com/starford/specmon/internal/mcpserver"
	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/producer"
	"github.com/starford/specmon/internal/reader"
	"github.com/starford/specmon/internal/render"
	"github.com/starford/specmon/internal/scheduler"
	"github.com/starford/specmon/internal/sse"
	"github.com/starford/specmon/internal/storage"
	"github.com/starford/specmon/internal/tui"
	"github.com/starford/specmon/internal/viewservice"
)

// ErrNoFrame is returned by Snapshot when the store holds no valid frame.
var ErrNoFrame = errors.New("no valid frame available")

func (a *application) apply(opts []Option) error {
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return fmt.Errorf("config is required")
	}
	if a.mode == "" {
		a.mode = ModeServe
	}
	if a.version == "" {
		a.version = "dev"
	}
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	return nil
}

// logOutput returns where logs go. The terminal and the MCP stdio stream
// belong to the protocol in tui and mcp modes, so logs go to stderr there.
func logOutput(mode string) io.Writer {
	if mode == ModeTUI || mode == ModeMCP {
		return os.Stderr
	}
	return os.Stdout
}

// newLogger installs a structured JSON logger.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// core holds the components shared by every mode.
type core struct {
	store    storage.Store
	reader   *reader.Reader
	ctrl     *params.Controller
	sched    *scheduler.Scheduler
	renderer *render.Renderer
	history  *history.DB
	recorder *history.Recorder
	svc      *viewservice.Service
	session  string
}

func newCore(cfg *Config, logger *slog.Logger) (*core, error) {
	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	store, err := storage.Open(cfg.Store.Options())
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	rend, err := render.New(render.Options{Colormap: cfg.Render.Colormap, Width: cfg.Render.ImageWidth})
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	c := &core{
		store:    store,
		reader:   reader.New(store, logger),
		ctrl:     params.NewController(cfg.Params.Initial()),
		renderer: rend,
		session:  xid.New().String(),
	}
	c.sched = scheduler.New(cfg.Render.Scheduler(), c.reader, c.ctrl, scheduler.WithLogger(logger))

	opts := viewservice.Options{
		State:       c.sched,
		Params:      c.ctrl,
		Renderer:    rend,
		Stats:       c.reader,
		Session:     c.session,
		SnapshotDir: cfg.Snapshots.Dir,
	}
	if cfg.History.Enabled {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		c.history = db
		c.recorder = history.NewRecorder(db, c.session, cfg.History.Retain, logger)
		c.sched.Attach(c.recorder)
		opts.History = db
	}
	c.svc = viewservice.New(opts)
	return c, nil
}

func (c *core) Close() error {
	if c.history != nil {
		return c.history.Close()
	}
	return nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	if err := app.apply(opts); err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, logOutput(app.mode))

	logger.Info("Configuration loaded",
		slog.String("mode", app.mode),
		slog.String("store_dir", cfg.Store.Dir),
		slog.String("store_layout", cfg.Store.Layout),
		slog.String("render_mode", cfg.Render.Mode),
		slog.Duration("period", cfg.Render.Period),
		slog.Bool("history", cfg.History.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := newCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	logger.Info("session started", slog.String("session", c.session))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	switch app.mode {
	case ModeServe:
		if err := c.serve(gCtx, g, cfg, logger); err != nil {
			return err
		}
	case ModeTUI:
		display := tui.NewDisplay()
		c.sched.Attach(display)
		model := tui.New(c.renderer, c.ctrl, c.sched.State())
		g.Go(func() error {
			defer cancel()
			return tui.Run(gCtx, model, display)
		})
	case ModeMCP:
		srv := mcpserver.New(c.svc, app.version)
		g.Go(func() error {
			defer cancel()
			if err := srv.Listen(gCtx, app.stdin, app.stdout, logger); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp: %w", err)
			}
			return nil
		})
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}

	g.Go(func() error { return c.sched.Run(gCtx) })
	if c.recorder != nil {
		g.Go(func() error { return c.recorder.Run(gCtx) })
	}
	if cfg.Params.File != "" {
		g.Go(func() error {
			if err := params.WatchFile(gCtx, c.ctrl, cfg.Params.File, logger); err != nil {
				return fmt.Errorf("params watcher: %w", err)
			}
			return nil
		})
	}
	if cfg.Producer.Enabled {
		p := producer.New(c.store, cfg.Producer.Producer(), logger)
		g.Go(func() error { return p.Run(gCtx) })
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped successfully", slog.Uint64("renders_recorded", c.recorded()))
	return nil
}

func (c *core) recorded() uint64 {
	if c.recorder == nil {
		return 0
	}
	return c.recorder.Written()
}

func (c *core) serve(ctx context.Context, g *errgroup.Group, cfg *Config, logger *slog.Logger) error {
	broker := sse.NewBroker(2 * time.Second)
	c.sched.Attach(broker)
	c.ctrl.OnChange(broker.PublishParams)

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
			"state":  c.sched.State().State.String(),
		})
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")
		// SSE streams only end when their clients leave; close the broker first.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})
	return nil
}

// Snapshot reads the store once, renders the frame with the configured
// parameters and saves it to the snapshot directory.
func Snapshot(ctx context.Context, opts ...Option) (*viewservice.Snapshot, error) {
	app := &application{}
	if err := app.apply(opts); err != nil {
		return nil, err
	}
	cfg := *app.config
	cfg.History.Enabled = false
	logger := newLogger(&cfg, os.Stderr)

	c, err := newCore(&cfg, logger)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if out := c.sched.Tick(); !out.Fresh {
		return nil, fmt.Errorf("snapshot %s: %w", cfg.Store.Dir, ErrNoFrame)
	}
	return c.svc.SaveSnapshot(ctx)
}

// Produce runs the synthetic producer against the configured store until
// ctx is cancelled.
func Produce(ctx context.Context, opts ...Option) error {
	app := &application{}
	if err := app.apply(opts); err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, os.Stdout)

	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	store, err := storage.Open(cfg.Store.Options())
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := producer.New(store, cfg.Producer.Producer(), logger)
	return p.Run(ctx)
}
