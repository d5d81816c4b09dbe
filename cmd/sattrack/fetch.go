package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/sattrack/internal/archive"
	"github.com/star/sattrack/internal/metrics"
	"github.com/star/sattrack/internal/n2yo"
	"github.com/star/sattrack/internal/notify"
	"github.com/star/sattrack/internal/request"
	"github.com/star/sattrack/internal/store"
	"github.com/star/sattrack/internal/tracker"
)

const notifyTimeout = 5 * time.Second

// runFetch performs one batch run. Logs go to stderr; stdout carries only
// the summary line.
func runFetch(args []string, stdout, stderr io.Writer) int {
	logger := newLogger(stderr)

	clientCfg := loadClientConfig(logger)
	trackerCfg := loadTrackerConfig(logger)
	storeCfg := loadStoreConfig(logger)
	notifyCfg := loadNotifyConfig(logger)
	archivePath := os.Getenv("SATTRACK_ARCHIVE_DB")
	textfile := os.Getenv("SATTRACK_METRICS_TEXTFILE")

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&storeCfg.Path, "output", storeCfg.Path, "store file to update")
	fs.IntVar(&trackerCfg.Workers, "workers", trackerCfg.Workers, "concurrent lookups (1 = sequential)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	if trackerCfg.Workers < 1 {
		fmt.Fprintln(stderr, "-workers must be at least 1")
		return 2
	}

	inputPath := fs.Arg(0)
	in, err := os.Open(inputPath)
	if err != nil {
		logger.Error("cannot open input file", "path", inputPath, "error", err)
		return 1
	}
	reqs, err := request.Parse(in, logger)
	in.Close()
	if err != nil {
		logger.Error("cannot read input file", "path", inputPath, "error", err)
		return 1
	}
	logger.Info("requests loaded", "path", inputPath, "count", len(reqs))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	file := store.NewFile(storeCfg)
	st, err := file.Load()
	if errors.Is(err, store.ErrUnreadable) {
		logger.Error("cannot read store", "path", file.Path(), "error", err)
		return 1
	}
	if err != nil {
		logger.Warn("starting from an empty store", "path", file.Path(), "error", err)
	}

	client := n2yo.NewClient(clientCfg, logger)
	driver := tracker.NewDriver(client, trackerCfg, logger)

	counters, attempts, err := driver.Run(ctx, st, reqs)
	if err != nil {
		logger.Error("run aborted, store not written", "error", err)
		return 1
	}

	if err := file.Save(st); err != nil {
		logger.Error("cannot write store", "path", file.Path(), "error", err)
		return 1
	}

	if archivePath != "" {
		archiveAttempts(ctx, archivePath, attempts, logger)
	}

	if notifyCfg.URL != "" {
		publishTransitions(notifyCfg, attempts, logger)
	}

	metrics.SetRunCompleted(time.Now(), counters.OK, counters.Failed)
	if textfile != "" {
		if err := metrics.WriteTextfile(textfile); err != nil {
			logger.Warn("cannot write metrics textfile", "path", textfile, "error", err)
		}
	}

	fmt.Fprintf(stdout, "Done. Updated %s (%d ok, %d failed)\n", file.Path(), counters.OK, counters.Failed)

	if counters.OK > 0 {
		return 0
	}
	return 1
}

// archiveAttempts appends the run to the attempt log. Failures are logged only.
func archiveAttempts(ctx context.Context, path string, attempts []tracker.Attempt, logger *slog.Logger) {
	db, err := archive.Open(path)
	if err != nil {
		logger.Warn("cannot open archive", "component", "archive", "path", path, "error", err)
		return
	}
	defer db.Close()

	if err := db.Append(ctx, archiveEntries(attempts)); err != nil {
		logger.Warn("cannot archive attempts", "component", "archive", "path", path, "error", err)
		return
	}
	logger.Debug("attempts archived", "component", "archive", "count", len(attempts))
}

func archiveEntries(attempts []tracker.Attempt) []archive.Entry {
	entries := make([]archive.Entry, len(attempts))
	for i, a := range attempts {
		e := archive.Entry{
			SatelliteID: a.Request.ID,
			CheckedAt:   time.Unix(a.CheckedAt, 0).UTC(),
			Outcome:     a.Result.Kind.String(),
			SatName:     a.SatName,
			FailCount:   a.FailCount,
			Decayed:     a.Decayed,
		}
		if p := a.Result.Point; p != nil {
			lat, lon, t := p.Lat, p.Lon, p.T
			e.Lat, e.Lon, e.T = &lat, &lon, &t
		}
		if a.Err != nil {
			e.Error = a.Err.Error()
		}
		entries[i] = e
	}
	return entries
}

// publishTransitions sends decay/recovery events. Failures are logged only.
func publishTransitions(cfg notify.Config, attempts []tracker.Attempt, logger *slog.Logger) {
	if len(notify.Events(attempts)) == 0 {
		return
	}

	conn, err := notify.Connect(cfg.URL, notifyTimeout, logger)
	if err != nil {
		logger.Warn("cannot connect to nats", "component", "notify", "error", err)
		return
	}
	sent := notify.New(conn, cfg.Subject, logger).Publish(attempts)
	if err := conn.Close(notifyTimeout); err != nil {
		logger.Warn("nats flush failed", "component", "notify", "error", err)
	}
	logger.Info("transitions published", "component", "notify", "count", sent)
}
