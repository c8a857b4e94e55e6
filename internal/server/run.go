package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwarner/greenflow/internal/config"
	"github.com/mwarner/greenflow/internal/database"
	"github.com/mwarner/greenflow/internal/history"
	"github.com/mwarner/greenflow/internal/script"
	"github.com/mwarner/greenflow/internal/terminal"
	"github.com/mwarner/greenflow/internal/tn3270/s3270"
)

// Opts holds optional CLI overrides for the daemon.
type Opts struct {
	ListenAddr string
}

// Daemon owns the process-level wiring: config, database, registry, and
// the HTTP listener.
type Daemon struct {
	log  *slog.Logger
	opts Opts
}

func NewDaemon(opts Opts) *Daemon {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("component", "greenflowd")
	return &Daemon{log: log, opts: opts}
}

// Start runs the daemon until SIGINT/SIGTERM, then drains sessions and
// shuts the listener down.
func (d *Daemon) Start() error {
	cfg, err := config.Parse()
	if err != nil {
		d.log.Error("config error", "error", err)
		return fmt.Errorf("config error: %w", err)
	}

	listenAddr := d.opts.ListenAddr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", cfg.Port)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	d.log.Info("database opened", "path", cfg.DatabasePath)

	scripts, err := script.NewStore(d.log, cfg.ScriptsDir)
	if err != nil {
		return fmt.Errorf("opening script store: %w", err)
	}

	dialer := s3270.NewDialer(d.log, cfg.S3270Path)
	pool := terminal.NewPool(cfg.DriverWorkers)
	registry := terminal.NewRegistry(d.log, dialer, pool)
	executor := script.NewExecutor(d.log, registry)

	srv := New(Deps{
		Log:      d.log,
		Cfg:      cfg,
		Registry: registry,
		Scripts:  scripts,
		Executor: executor,
		History:  history.NewStore(db),
	})

	httpSrv := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		d.log.Info("received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.Shutdown(ctx)
		_ = httpSrv.Shutdown(ctx)
	}()

	d.log.Info("HTTP server listening", "addr", listenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		d.log.Error("serve error", "error", err)
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
