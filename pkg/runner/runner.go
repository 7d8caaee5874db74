// Package runner orchestrates gather runs: it walks the resolved
// configuration's collectors through their lifecycle phases, drives the
// browser through navigations, and merges everything into a saved run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/bus"
	"github.com/odvcencio/pharos/pkg/config"
	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
	"github.com/odvcencio/pharos/pkg/logging"
	"github.com/odvcencio/pharos/pkg/storage"
	"github.com/odvcencio/pharos/pkg/telemetry"
)

// PageLoadErrorArtifactID is the bag key a non-fatal page load error is
// recorded under.
const PageLoadErrorArtifactID = "PageLoadError"

// Base artifact ids the runner contributes itself, alongside collector
// output.
const (
	GatherContextArtifactID = "GatherContext"
	HostUserAgentArtifactID = "HostUserAgent"
	URLArtifactID           = "URL"
)

// Lifecycle phase names, used for timing entries, bus subjects, and metrics.
const (
	PhaseStartInstrumentation          = "startInstrumentation"
	PhaseStartSensitiveInstrumentation = "startSensitiveInstrumentation"
	PhaseNavigate                      = "navigate"
	PhaseStopSensitiveInstrumentation  = "stopSensitiveInstrumentation"
	PhaseStopInstrumentation           = "stopInstrumentation"
	PhaseGetArtifact                   = "getArtifact"
)

// Options configures a Runner. Every field is optional.
type Options struct {
	Logger    *logging.Logger
	Bus       bus.MessageBus
	Telemetry *telemetry.Recorder
}

// Runner executes gather runs against a connected driver.
type Runner struct {
	logger    *logging.Logger
	bus       bus.MessageBus
	telemetry *telemetry.Recorder
}

// New builds a Runner. Missing options fall back to no-op implementations.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		logger:    logger,
		bus:       opts.Bus,
		telemetry: opts.Telemetry,
	}
}

// runState accumulates everything a run produces.
type runState struct {
	runID        string
	requestedURL string
	finalURL     string
	mode         gather.Mode
	settings     gather.Settings
	startedAt    time.Time

	bag      *artifact.Bag
	warnings []string
	timing   []artifact.TimingEntry

	// firstHookErr holds the first instrumentation hook failure per
	// collector. A poisoned collector skips its remaining phases and its
	// artifact settles to this error.
	firstHookErr map[string]error
}

func newRunState(mode gather.Mode, requestedURL string, settings gather.Settings) *runState {
	return &runState{
		runID:        ulid.Make().String(),
		requestedURL: requestedURL,
		mode:         mode,
		settings:     settings,
		startedAt:    time.Now().UTC(),
		bag:          artifact.NewBag(),
		firstHookErr: make(map[string]error),
	}
}

func (s *runState) warn(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *runState) recordTiming(name string, startedAt time.Time) {
	finished := time.Now().UTC()
	s.timing = append(s.timing, artifact.TimingEntry{
		Name:       name,
		Duration:   finished.Sub(startedAt),
		StartedAt:  startedAt,
		FinishedAt: finished,
	})
}

// collectorContext assembles the per-invocation context for one collector,
// resolving its declared dependencies from already-settled artifacts.
func (r *Runner) collectorContext(drv *driver.Driver, state *runState, def *config.ArtifactDefinition) *gatherer.Context {
	gctx := &gatherer.Context{
		Driver:       drv,
		GatherMode:   state.mode,
		Settings:     state.settings,
		RequestedURL: state.requestedURL,
	}
	if len(def.Dependencies) > 0 {
		gctx.Dependencies = make(map[string]artifact.Result, len(def.Dependencies))
		for name, dep := range def.Dependencies {
			result, ok := state.bag.Get(dep.ID)
			if !ok {
				result = artifact.Failure(fmt.Errorf("dependency %q did not produce an artifact", dep.ID))
			}
			gctx.Dependencies[name] = result
		}
	}
	return gctx
}

type hookFunc func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error

// runHookPhase invokes one instrumentation hook across the given collectors
// in declared order. A collector failure is recorded and isolated; it never
// stops the phase.
func (r *Runner) runHookPhase(ctx context.Context, drv *driver.Driver, state *runState, phase string, defs []*config.ArtifactDefinition, hook hookFunc) {
	startedAt := time.Now().UTC()
	ctx, span := r.telemetry.StartSpan(ctx, "runner."+phase)
	defer span.End()

	for _, def := range defs {
		if state.firstHookErr[def.ID] != nil {
			continue
		}
		if err := hook(def.Gatherer, ctx, r.collectorContext(drv, state, def)); err != nil {
			r.collectorFailed(ctx, state, def.ID, phase, err)
		}
	}

	state.recordTiming(phase, startedAt)
	r.telemetry.ObservePhase(phase, time.Since(startedAt))
	bus.PublishEvent(ctx, r.bus, bus.SubjectPhaseBase+phase, bus.Event{
		RunID: state.runID,
		Mode:  string(state.mode),
		Phase: phase,
	})
}

// runArtifactPhase settles every collector's artifact. Poisoned collectors
// settle to their first hook error without being invoked.
func (r *Runner) runArtifactPhase(ctx context.Context, drv *driver.Driver, state *runState, defs []*config.ArtifactDefinition) {
	startedAt := time.Now().UTC()
	ctx, span := r.telemetry.StartSpan(ctx, "runner."+PhaseGetArtifact)
	defer span.End()

	for _, def := range defs {
		var result artifact.Result
		if hookErr := state.firstHookErr[def.ID]; hookErr != nil {
			result = artifact.Failure(hookErr)
		} else {
			value, err := def.Gatherer.GetArtifact(ctx, r.collectorContext(drv, state, def))
			if err != nil {
				r.collectorFailed(ctx, state, def.ID, PhaseGetArtifact, err)
				result = artifact.Failure(err)
			} else {
				result = artifact.Value(value)
			}
		}
		if err := state.bag.Set(def.ID, result); err != nil {
			state.warn("artifact %q: %v", def.ID, err)
		}
	}

	state.recordTiming(PhaseGetArtifact, startedAt)
	r.telemetry.ObservePhase(PhaseGetArtifact, time.Since(startedAt))
}

func (r *Runner) collectorFailed(ctx context.Context, state *runState, id, phase string, err error) {
	if _, seen := state.firstHookErr[id]; !seen {
		state.firstHookErr[id] = err
	}
	r.logger.Warn("collector failed", "collector", id, "phase", phase, "error", err)
	r.telemetry.CollectorFailed(id)
	bus.PublishEvent(ctx, r.bus, bus.SubjectCollectorFailed, bus.Event{
		RunID:     state.runID,
		Collector: id,
		Phase:     phase,
		Error:     err.Error(),
	})
}

// addBaseArtifacts contributes the artifacts the runner produces itself.
func (r *Runner) addBaseArtifacts(ctx context.Context, drv *driver.Driver, state *runState) {
	if err := state.bag.Set(GatherContextArtifactID, artifact.Value(map[string]string{
		"gatherMode": string(state.mode),
	})); err != nil {
		state.warn("base artifact: %v", err)
	}

	var uaResult artifact.Result
	if browserUA, _, err := drv.UserAgent(ctx); err != nil {
		uaResult = artifact.Failure(err)
	} else {
		uaResult = artifact.Value(browserUA)
	}
	if err := state.bag.Set(HostUserAgentArtifactID, uaResult); err != nil {
		state.warn("base artifact: %v", err)
	}

	if err := state.bag.Set(URLArtifactID, artifact.Value(map[string]string{
		"requestedUrl": state.requestedURL,
		"finalUrl":     state.finalURL,
	})); err != nil {
		state.warn("base artifact: %v", err)
	}
}

// finish seals the bag, archives the run when configured, and emits the run
// summary events.
func (r *Runner) finish(ctx context.Context, state *runState, outcome string) (*artifact.SavedRun, error) {
	run := &artifact.SavedRun{
		RunID:        state.runID,
		RequestedURL: state.requestedURL,
		FinalURL:     state.finalURL,
		GatherMode:   state.mode,
		FetchTime:    state.startedAt,
		Settings:     state.settings,
		Artifacts:    state.bag.Freeze(),
		Warnings:     state.warnings,
		Timing:       state.timing,
	}

	r.telemetry.RunCompleted(string(state.mode), outcome)
	bus.PublishEvent(ctx, r.bus, bus.SubjectRunFinished, bus.Event{
		RunID: state.runID,
		URL:   state.requestedURL,
		Mode:  string(state.mode),
	})

	if state.settings.ArchivePath != "" {
		if err := r.archive(run, outcome); err != nil {
			r.logger.Warn("archiving run failed", "run_id", state.runID, "error", err)
			run.Warnings = append(run.Warnings, fmt.Sprintf("run archive: %v", err))
		}
	}
	return run, nil
}

func (r *Runner) archive(run *artifact.SavedRun, outcome string) error {
	archive, err := storage.Open(run.Settings.ArchivePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	errorCount := 0
	for _, result := range run.Artifacts {
		if result.IsError() {
			errorCount++
		}
	}
	var pageLoadCode string
	if result, ok := run.Artifacts[PageLoadErrorArtifactID]; ok && result.IsError() {
		var coder artifact.Coder
		if errors.As(result.Err(), &coder) {
			pageLoadCode = coder.ErrorCode()
		}
	}
	if outcome == "failed" && pageLoadCode == "" {
		pageLoadCode = CodeFailedDocumentRequest
	}
	record := &storage.RunRecord{
		RunID:         run.RunID,
		RequestedURL:  run.RequestedURL,
		FinalURL:      run.FinalURL,
		GatherMode:    string(run.GatherMode),
		FetchTime:     run.FetchTime,
		Duration:      time.Since(run.FetchTime),
		ArtifactCount: len(run.Artifacts),
		ErrorCount:    errorCount,
		WarningCount:  len(run.Warnings),
		PageLoadError: pageLoadCode,
	}
	return archive.SaveRun(record, run)
}

// connect brings the driver up and applies the session-wide protocol
// timeout.
func (r *Runner) connect(ctx context.Context, drv *driver.Driver, settings gather.Settings) error {
	if err := drv.Connect(ctx); err != nil {
		return fmt.Errorf("runner: connect driver: %w", err)
	}
	if settings.ProtocolTimeoutMs > 0 {
		drv.Session().SetDefaultTimeout(time.Duration(settings.ProtocolTimeoutMs) * time.Millisecond)
	}
	return nil
}
