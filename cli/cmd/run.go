package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/assay/adapter"
	redisadapter "github.com/justapithecus/assay/adapter/redis"
	"github.com/justapithecus/assay/adapter/webhook"
	"github.com/justapithecus/assay/archive"
	"github.com/justapithecus/assay/cli/config"
	"github.com/justapithecus/assay/collector"
	"github.com/justapithecus/assay/filter"
	"github.com/justapithecus/assay/iox"
	"github.com/justapithecus/assay/log"
	"github.com/justapithecus/assay/metrics"
	"github.com/justapithecus/assay/report"
	"github.com/justapithecus/assay/scheduler"
	"github.com/justapithecus/assay/source/jolokia"
	"github.com/justapithecus/assay/state"
	"github.com/justapithecus/assay/types"
)

// Exit codes for the run command.
const (
	exitSuccess     = 0
	exitConfigError = 1
	exitDrainError  = 2
)

// RunCommand returns the run command, the daemon entrypoint.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Poll the configured engine fleet and write report files",
		Flags: []cli.Flag{
			ConfigFlag,
			ReportDirFlag,
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval override (e.g. 30s, 2m)",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if c.IsSet("report-dir") {
		cfg.ReportDir = c.String("report-dir")
	}
	if c.IsSet("interval") {
		cfg.Interval.Duration = c.Duration("interval")
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitConfigError)
	}

	logger := log.NewLogger()
	defer iox.DiscardErr(logger.Sync)
	stats := metrics.NewCollector()

	filt, err := filter.New(cfg.IgnoreInternalEntities(), cfg.Includes())
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid include pattern: %v", err), exitConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rotHook report.RotationHook
	var archiver *archive.Archiver
	if cfg.Archive.Backend == "s3" {
		uploader, err := archive.NewS3Uploader(ctx, archive.S3Config{
			Bucket:       cfg.Archive.Bucket,
			Prefix:       cfg.Archive.Prefix,
			Region:       cfg.Archive.Region,
			Endpoint:     cfg.Archive.Endpoint,
			UsePathStyle: cfg.Archive.S3PathStyle,
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("archive setup failed: %v", err), exitConfigError)
		}
		archiver = archive.NewArchiver(context.Background(), uploader, logger, stats)
		rotHook = archiver.Hook()
		defer archiver.Close()
	}

	notifier, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter setup failed: %v", err), exitConfigError)
	}
	if notifier != nil {
		defer iox.DiscardClose(notifier)
	}

	categories := cfg.Categories()
	endpoints := make(map[string]types.EngineEndpoint, len(cfg.Engines))
	collectors := make([]*collector.Collector, 0, len(cfg.Engines))
	for _, ep := range cfg.Engines {
		src, err := jolokia.New(jolokia.Config{Endpoint: ep})
		if err != nil {
			return cli.Exit(fmt.Sprintf("engine %s: %v", ep.Name, err), exitConfigError)
		}

		var wopts []report.Option
		if rotHook != nil {
			wopts = append(wopts, report.WithRotationHook(rotHook))
		}

		endpoints[ep.Name] = ep
		collectors = append(collectors, collector.New(collector.Config{
			Endpoint:   ep,
			Source:     src,
			Writer:     report.NewWriter(ep, cfg.ReportDir, wopts...),
			Filter:     filt,
			Categories: categories,
			Logger:     logger,
			Stats:      stats,
		}))
	}

	if err := os.MkdirAll(cfg.ReportDir, 0755); err != nil {
		return cli.Exit(fmt.Sprintf("cannot create report dir: %v", err), exitConfigError)
	}
	store := state.NewStore(cfg.ReportDir, cfg.Interval.Duration)

	onCycle := func(ctx context.Context, tickID string, res collector.CycleResult) {
		ep := endpoints[res.Engine]
		store.RecordCycle(ep, res)
		if notifier == nil {
			return
		}
		ev := adapter.NewCycleCompletedEvent(tickID, ep, res)
		if err := notifier.Publish(ctx, ev); err != nil {
			stats.IncPublishFailure()
			logger.Warn("cycle event publish failed", map[string]any{
				"engine": res.Engine,
				"error":  err.Error(),
			})
			return
		}
		stats.IncPublishSuccess()
	}

	onTick := func(string, time.Time) {
		if err := store.Write(stats.Snapshot()); err != nil {
			logger.Warn("state snapshot write failed", map[string]any{"error": err.Error()})
		}
	}

	logger.Info("starting fleet collection", map[string]any{
		"engines":    len(collectors),
		"categories": len(categories),
		"interval":   cfg.Interval.Duration.String(),
		"report_dir": cfg.ReportDir,
	})

	sched := scheduler.New(scheduler.Config{
		Collectors:  collectors,
		Interval:    cfg.Interval.Duration,
		GracePeriod: cfg.GracePeriod.Duration,
		Logger:      logger,
		Stats:       stats,
		OnCycle:     onCycle,
		OnTick:      onTick,
	})

	if err := sched.Run(ctx); err != nil {
		if errors.Is(err, scheduler.ErrDrainTimeout) {
			return cli.Exit("shutdown incomplete: collection cycles still running", exitDrainError)
		}
		return cli.Exit(err.Error(), exitDrainError)
	}

	// Final snapshot so status reflects the drained fleet.
	if err := store.Write(stats.Snapshot()); err != nil {
		logger.Warn("final state snapshot failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// buildAdapter constructs the configured notification adapter, or nil
// when notifications are disabled.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := -1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case "redis":
		rc := redisadapter.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: redisadapter.DefaultRetries,
		}
		if retries >= 0 {
			rc.Retries = retries
		}
		return redisadapter.New(rc)
	case "webhook":
		wc := webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if retries >= 0 {
			wc.Retries = retries
		}
		return webhook.New(wc)
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}
