// Command pharos gathers page audit artifacts from a running browser over
// its remote debugging endpoint and writes them out as a saved run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/bus"
	"github.com/odvcencio/pharos/pkg/config"
	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/logging"
	"github.com/odvcencio/pharos/pkg/runner"
	"github.com/odvcencio/pharos/pkg/storage"
	"github.com/odvcencio/pharos/pkg/telemetry"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

type cliOptions struct {
	url         string
	wsEndpoint  string
	configPath  string
	mode        string
	outputPath  string
	archivePath string
	onlyAudits  string
	skipAudits  string
	blockedURLs string
	timespanFor time.Duration
	natsURL     string
	trace       bool
	quiet       bool
	listRuns    bool
	showVersion bool
}

func main() {
	var opts cliOptions
	flag.StringVar(&opts.url, "url", "", "page URL to gather (required in navigation mode)")
	flag.StringVar(&opts.wsEndpoint, "ws", "", "browser remote debugging websocket endpoint (required)")
	flag.StringVar(&opts.configPath, "config", "", "path to a YAML gather configuration")
	flag.StringVar(&opts.mode, "mode", string(gather.ModeNavigation), "gather mode: navigation, snapshot, or timespan")
	flag.StringVar(&opts.outputPath, "output", "pharos-run.json", "path the saved run JSON is written to")
	flag.StringVar(&opts.archivePath, "archive", "", "sqlite archive database path (empty disables archiving)")
	flag.StringVar(&opts.onlyAudits, "only-audits", "", "comma-separated audit ids to narrow the run to")
	flag.StringVar(&opts.skipAudits, "skip-audits", "", "comma-separated audit ids to exclude")
	flag.StringVar(&opts.blockedURLs, "blocked-urls", "", "comma-separated URL patterns the browser should refuse to load")
	flag.DurationVar(&opts.timespanFor, "timespan-for", 0, "timespan mode: record for this long, then stop (default: until interrupted)")
	flag.StringVar(&opts.natsURL, "nats", "", "publish run lifecycle events to this NATS server")
	flag.BoolVar(&opts.trace, "trace", false, "write spans to stderr")
	flag.BoolVar(&opts.quiet, "quiet", false, "only log warnings and errors")
	flag.BoolVar(&opts.listRuns, "list-runs", false, "list archived runs and exit (requires -archive)")
	flag.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flag.Parse()

	if opts.showVersion {
		fmt.Printf("pharos %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pharos: %v\n", err)
		os.Exit(1)
	}
}

func run(opts cliOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.listRuns {
		return listRuns(opts.archivePath)
	}

	mode, err := gather.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	if opts.wsEndpoint == "" {
		return fmt.Errorf("-ws is required")
	}
	if mode == gather.ModeNavigation && opts.url == "" {
		return fmt.Errorf("-url is required in navigation mode")
	}

	level := slog.LevelInfo
	if opts.quiet {
		level = slog.LevelWarn
	}
	logger := logging.New("pharos", level)

	if opts.trace {
		provider, err := telemetry.InitTracing(os.Stderr)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer provider.Shutdown(context.Background())
	}

	var eventBus bus.MessageBus
	if opts.natsURL != "" {
		natsBus, err := bus.NewNATSBus(opts.natsURL)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		defer natsBus.Close()
		eventBus = natsBus
	}

	resolved, warnings, err := resolveConfig(opts, mode)
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		logger.Warn("configuration", "warning", warning)
	}

	drv := driver.New(opts.wsEndpoint)
	orchestrator := runner.New(runner.Options{
		Logger:    logger,
		Bus:       eventBus,
		Telemetry: telemetry.NewRecorder(),
	})

	run, err := execute(ctx, orchestrator, drv, resolved, warnings, mode, opts)
	if run != nil {
		if saveErr := run.Save(opts.outputPath); saveErr != nil {
			logger.Error("writing saved run failed", "path", opts.outputPath, "error", saveErr)
		} else {
			logger.Info("run saved", "path", opts.outputPath, "artifacts", len(run.Artifacts))
		}
	}
	return err
}

func execute(ctx context.Context, orchestrator *runner.Runner, drv *driver.Driver, resolved *config.ResolvedConfig, warnings []string, mode gather.Mode, opts cliOptions) (*artifact.SavedRun, error) {
	switch mode {
	case gather.ModeNavigation:
		return orchestrator.Navigation(ctx, drv, resolved, opts.url, warnings)
	case gather.ModeSnapshot:
		return orchestrator.Snapshot(ctx, drv, resolved, warnings)
	case gather.ModeTimespan:
		recording, err := orchestrator.StartTimespan(ctx, drv, resolved, warnings)
		if err != nil {
			return nil, err
		}
		waitForTimespanEnd(ctx, opts.timespanFor)
		return recording.End(context.WithoutCancel(ctx))
	default:
		return nil, fmt.Errorf("unsupported gather mode %q", mode)
	}
}

// waitForTimespanEnd blocks until the recording window elapses or the user
// interrupts.
func waitForTimespanEnd(ctx context.Context, window time.Duration) {
	if window <= 0 {
		<-ctx.Done()
		return
	}
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func resolveConfig(opts cliOptions, mode gather.Mode) (*config.ResolvedConfig, []string, error) {
	var raw *config.RawConfig
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, nil, err
		}
		raw = loaded
	}

	overrides := &gather.Settings{
		OnlyAudits:         splitList(opts.onlyAudits),
		SkipAudits:         splitList(opts.skipAudits),
		BlockedURLPatterns: splitList(opts.blockedURLs),
		ArchivePath:        opts.archivePath,
	}
	return config.Resolve(raw, config.Options{
		GatherMode:        mode,
		SettingsOverrides: overrides,
	})
}

func listRuns(archivePath string) error {
	if archivePath == "" {
		return fmt.Errorf("-list-runs requires -archive")
	}
	archive, err := storage.Open(archivePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	records, err := archive.RecentRuns(50)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no archived runs")
		return nil
	}
	for _, record := range records {
		status := "ok"
		if record.PageLoadError != "" {
			status = record.PageLoadError
		}
		fmt.Printf("%s  %-10s  %-8s  %3d artifacts  %s  %s\n",
			record.FetchTime.Format(time.RFC3339), record.GatherMode, status,
			record.ArtifactCount, record.Duration.Round(time.Millisecond), record.RequestedURL)
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
