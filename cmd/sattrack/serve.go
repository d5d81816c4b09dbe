package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/sattrack/internal/api"
	"github.com/star/sattrack/internal/archive"
	"github.com/star/sattrack/internal/store"
	"github.com/star/sattrack/web"
)

// runServe runs the HTTP server until SIGINT/SIGTERM.
func runServe(args []string, stdout, stderr io.Writer) int {
	logger := newLogger(stdout)

	addr := os.Getenv("SATTRACK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	storeCfg := loadStoreConfig(logger)

	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&addr, "addr", addr, "listen address")
	flags.StringVar(&storeCfg.Path, "store", storeCfg.Path, "store file to serve")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() != 0 {
		io.WriteString(stderr, usage)
		return 2
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		return 1
	}
	cfg := api.Config{Auth: authCfg, TrustProxy: loadTrustProxy(logger)}

	snapshot := store.NewSnapshot(store.NewFile(storeCfg))
	if _, err := snapshot.Get(); err != nil {
		logger.Warn("store not loaded at startup", "path", storeCfg.Path, "error", err)
	}

	// A nil *archive.DB must not become a non-nil interface.
	var attempts api.AttemptLog
	if path := os.Getenv("SATTRACK_ARCHIVE_DB"); path != "" {
		db, err := archive.Open(path)
		if err != nil {
			logger.Warn("archive unavailable, attempts endpoint disabled", "path", path, "error", err)
		} else {
			defer db.Close()
			attempts = db
		}
	}

	var static fs.FS = web.Content
	srv := api.NewServer(addr, logger, cfg, snapshot, attempts, static)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "store", storeCfg.Path, "auth_enabled", authCfg.Enabled, "archive_enabled", attempts != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		return 1
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return 1
	}

	logger.Info("server stopped")
	return 0
}
