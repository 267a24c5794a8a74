// Command mediadrop downloads media URLs given on the command line and keeps
// watching subscribed feeds for new entries. Without URLs it runs as a
// long-lived scheduler until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mediadrop/mediadrop/internal/config"
	"github.com/mediadrop/mediadrop/internal/download"
	"github.com/mediadrop/mediadrop/internal/format"
	"github.com/mediadrop/mediadrop/internal/model"
	"github.com/mediadrop/mediadrop/internal/platform"
	"github.com/mediadrop/mediadrop/internal/storage"
	"github.com/mediadrop/mediadrop/internal/subscription"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mediadrop:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to the settings file (default <data-dir>/settings.toml)")
		dataDir    = flag.String("data-dir", defaultDataDir(), "directory for the database and settings")
		audio      = flag.Bool("audio", false, "extract audio instead of video")
		quality    = flag.String("quality", "", "quality preset override (best, good, normal, bad, worst)")
		outputDir  = flag.String("dir", "", "output directory override")
		verbose    = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := platform.EnsureDir(*dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if *configPath == "" {
		*configPath = filepath.Join(*dataDir, "settings.toml")
	}

	settings, err := config.NewFileSettings(*configPath, logger)
	if err != nil {
		return err
	}
	defer settings.Close()

	if *quality != "" && !config.ValidPreset(config.QualityPreset(*quality)) {
		return fmt.Errorf("unknown quality preset %q", *quality)
	}

	db, err := storage.Open(filepath.Join(*dataDir, "mediadrop.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	tools, err := platform.ResolveToolchain()
	if err != nil {
		return err
	}
	logger.Info("toolchain resolved", "extractor", tools.ExtractorPath, "transcoder", tools.TranscoderPath)

	engine := download.NewEngine(settings, db.History(), tools, logger)
	defer engine.Close()

	manager := subscription.NewManager(db.Subscriptions(), logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Load(ctx); err != nil {
		return err
	}

	interval := time.Duration(settings.Snapshot().PollIntervalHours) * time.Hour
	scheduler := subscription.NewScheduler(manager, subscription.NewGofeedResolver(), engine, interval, logger)
	defer scheduler.Close()

	events, unsubscribe := engine.Subscribe(0)
	defer unsubscribe()

	kind := model.JobKindVideo
	if *audio {
		kind = model.JobKindAudio
	}

	pending := make(map[string]bool)
	for _, url := range flag.Args() {
		spec := download.JobSpec{URL: url, Kind: kind, OutputDir: *outputDir}
		if *quality != "" {
			spec.FormatSelector = format.Build(kind, config.QualityPreset(*quality))
		}
		id, err := engine.Submit(spec)
		if err != nil {
			logger.Error("submission rejected", "url", url, "error", err)
			continue
		}
		pending[id] = true
	}

	if len(flag.Args()) > 0 && len(pending) == 0 {
		return fmt.Errorf("no jobs could be submitted")
	}

	oneShot := len(pending) > 0
	failures := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logEvent(logger, ev)
			if !ev.Terminal() || !pending[ev.Job.ID] {
				continue
			}
			delete(pending, ev.Job.ID)
			if ev.Type == model.EventFailed {
				failures++
			}
			if oneShot && len(pending) == 0 {
				if failures > 0 {
					return fmt.Errorf("%d job(s) failed", failures)
				}
				return nil
			}
		}
	}
}

func logEvent(logger *slog.Logger, ev model.Event) {
	job := ev.Job
	switch ev.Type {
	case model.EventStarted:
		logger.Info("download started", "job_id", job.ID, "url", job.URL)
	case model.EventProgress:
		logger.Debug("download progress",
			"job_id", job.ID,
			"percent", fmt.Sprintf("%.1f", job.Progress.Percent),
			"stage", job.Progress.Stage,
			"eta", job.ETAString(),
		)
	case model.EventCompleted:
		logger.Info("download completed", "job_id", job.ID, "output", job.OutputPath)
	case model.EventFailed:
		logger.Error("download failed", "job_id", job.ID, "error", job.LastError)
	case model.EventCancelled:
		logger.Info("download cancelled", "job_id", job.ID)
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mediadrop")
	}
	return ".mediadrop"
}
