package runner

import (
	"context"
	"fmt"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/bus"
	"github.com/odvcencio/pharos/pkg/config"
	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
)

// Snapshot captures the page exactly as it currently stands. No navigation
// happens and no instrumentation hooks run; each collector settles its
// artifact in one pass.
func (r *Runner) Snapshot(ctx context.Context, drv *driver.Driver, cfg *config.ResolvedConfig, resolveWarnings []string) (*artifact.SavedRun, error) {
	if cfg.GatherMode != gather.ModeSnapshot {
		return nil, fmt.Errorf("runner: configuration resolved for %q mode, not snapshot", cfg.GatherMode)
	}
	if err := r.connect(ctx, drv, cfg.Settings); err != nil {
		return nil, err
	}
	defer drv.Disconnect(context.WithoutCancel(ctx))

	state := newRunState(gather.ModeSnapshot, drv.URL(), cfg.Settings)
	state.finalURL = drv.URL()
	state.warnings = append(state.warnings, resolveWarnings...)

	ctx, span := r.telemetry.StartSpan(ctx, "runner.snapshot")
	defer span.End()
	bus.PublishEvent(ctx, r.bus, bus.SubjectRunStarted, bus.Event{
		RunID: state.runID,
		URL:   state.requestedURL,
		Mode:  string(gather.ModeSnapshot),
	})
	r.logger.WithRun(state.runID).Info("snapshot run started", "url", state.requestedURL)

	r.runArtifactPhase(ctx, drv, state, cfg.Artifacts)
	r.addBaseArtifacts(ctx, drv, state)
	return r.finish(ctx, state, "ok")
}

// Timespan is an in-flight timespan run: instrumentation is armed and
// recording whatever the embedder does to the page until End is called.
type Timespan struct {
	runner *Runner
	driver *driver.Driver
	config *config.ResolvedConfig
	state  *runState
	ended  bool
}

// StartTimespan arms instrumentation on the current page and begins
// recording. The caller interacts with the page, then calls End.
func (r *Runner) StartTimespan(ctx context.Context, drv *driver.Driver, cfg *config.ResolvedConfig, resolveWarnings []string) (*Timespan, error) {
	if cfg.GatherMode != gather.ModeTimespan {
		return nil, fmt.Errorf("runner: configuration resolved for %q mode, not timespan", cfg.GatherMode)
	}
	if err := r.connect(ctx, drv, cfg.Settings); err != nil {
		return nil, err
	}

	state := newRunState(gather.ModeTimespan, drv.URL(), cfg.Settings)
	state.warnings = append(state.warnings, resolveWarnings...)

	bus.PublishEvent(ctx, r.bus, bus.SubjectRunStarted, bus.Event{
		RunID: state.runID,
		URL:   state.requestedURL,
		Mode:  string(gather.ModeTimespan),
	})
	r.logger.WithRun(state.runID).Info("timespan recording started", "url", state.requestedURL)

	r.runHookPhase(ctx, drv, state, PhaseStartInstrumentation, cfg.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StartInstrumentation(ctx, gctx)
		})
	r.runHookPhase(ctx, drv, state, PhaseStartSensitiveInstrumentation, cfg.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StartSensitiveInstrumentation(ctx, gctx)
		})

	return &Timespan{runner: r, driver: drv, config: cfg, state: state}, nil
}

// End stops recording, settles every artifact, and returns the saved run.
// The driver is disconnected afterwards. Calling End twice is an error.
func (t *Timespan) End(ctx context.Context) (*artifact.SavedRun, error) {
	if t.ended {
		return nil, fmt.Errorf("runner: timespan already ended")
	}
	t.ended = true
	defer t.driver.Disconnect(context.WithoutCancel(ctx))

	r := t.runner
	r.runHookPhase(ctx, t.driver, t.state, PhaseStopSensitiveInstrumentation, t.config.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StopSensitiveInstrumentation(ctx, gctx)
		})
	r.runHookPhase(ctx, t.driver, t.state, PhaseStopInstrumentation, t.config.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StopInstrumentation(ctx, gctx)
		})
	r.runArtifactPhase(ctx, t.driver, t.state, t.config.Artifacts)

	t.state.finalURL = t.driver.URL()
	r.addBaseArtifacts(ctx, t.driver, t.state)
	return r.finish(ctx, t.state, "ok")
}
