package runner

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/bus"
	"github.com/odvcencio/pharos/pkg/config"
	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
	"github.com/odvcencio/pharos/pkg/logging"
)

// Navigation executes a full navigation-mode run: every navigation plan in
// order, each walking its collectors through the lifecycle phases around a
// fresh page load of requestedURL.
//
// A fatal page load error aborts the run after settling the current
// navigation's artifacts; later navigations never load the page. A warn-mode
// failure is recorded and the run moves on.
func (r *Runner) Navigation(ctx context.Context, drv *driver.Driver, cfg *config.ResolvedConfig, requestedURL string, resolveWarnings []string) (*artifact.SavedRun, error) {
	if cfg.GatherMode != gather.ModeNavigation {
		return nil, fmt.Errorf("runner: configuration resolved for %q mode, not navigation", cfg.GatherMode)
	}
	if len(cfg.Navigations) == 0 {
		return nil, fmt.Errorf("runner: no navigations survived configuration resolution")
	}

	state := newRunState(gather.ModeNavigation, requestedURL, cfg.Settings)
	state.warnings = append(state.warnings, resolveWarnings...)
	logger := r.logger.WithRun(state.runID)

	if err := r.connect(ctx, drv, cfg.Settings); err != nil {
		return nil, err
	}
	defer drv.Disconnect(context.WithoutCancel(ctx))

	ctx, span := r.telemetry.StartSpan(ctx, "runner.navigation")
	defer span.End()
	bus.PublishEvent(ctx, r.bus, bus.SubjectRunStarted, bus.Event{
		RunID: state.runID,
		URL:   requestedURL,
		Mode:  string(gather.ModeNavigation),
	})
	logger.Info("navigation run started", "url", requestedURL, "navigations", len(cfg.Navigations))

	r.resetStorage(ctx, drv, state)
	if len(cfg.Settings.BlockedURLPatterns) > 0 {
		if err := drv.SetBlockedURLPatterns(ctx, cfg.Settings.BlockedURLPatterns); err != nil {
			state.warn("blocked url patterns: %v", err)
		}
	}

	var fatal *PageLoadError
	for _, nav := range cfg.Navigations {
		pageErr, err := r.runNavigation(ctx, drv, state, nav, logger.WithNavigation(nav.ID))
		if err != nil {
			return nil, err
		}
		if pageErr != nil && fatalFor(nav.LoadFailureMode) {
			fatal = pageErr
			break
		}
	}

	r.cleanupStorage(ctx, drv, state)
	r.addBaseArtifacts(ctx, drv, state)
	if fatal != nil {
		run, _ := r.finish(ctx, state, "failed")
		return run, fatal
	}
	return r.finish(ctx, state, "ok")
}

// runNavigation executes one navigation plan. It returns a page load error
// as a value; the returned error is reserved for context cancellation and
// broken connections.
func (r *Runner) runNavigation(ctx context.Context, drv *driver.Driver, state *runState, nav config.NavigationPlan, logger *logging.Logger) (*PageLoadError, error) {
	bus.PublishEvent(ctx, r.bus, bus.SubjectNavigationBase+nav.ID, bus.Event{
		RunID:      state.runID,
		URL:        state.requestedURL,
		Navigation: nav.ID,
	})

	if nav.BlankPage != "" {
		if err := drv.GotoBlank(ctx, nav.BlankPage); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			state.warn("navigation %q: blank page: %v", nav.ID, err)
		}
	}
	r.applyThrottling(ctx, drv, state, nav)

	r.runHookPhase(ctx, drv, state, PhaseStartInstrumentation, nav.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StartInstrumentation(ctx, gctx)
		})
	r.runHookPhase(ctx, drv, state, PhaseStartSensitiveInstrumentation, nav.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StartSensitiveInstrumentation(ctx, gctx)
		})

	navStarted := time.Now().UTC()
	outcome, navErr := drv.Navigate(ctx, state.requestedURL, driver.NavigateOptions{
		MaxWaitForLoad:        time.Duration(state.settings.MaxWaitForLoadMs) * time.Millisecond,
		MaxWaitForFCP:         time.Duration(state.settings.MaxWaitForFCPMs) * time.Millisecond,
		NetworkQuietThreshold: nav.NetworkQuietThreshold,
		CPUQuietThreshold:     nav.CPUQuietThreshold,
	})
	state.recordTiming(PhaseNavigate, navStarted)
	r.telemetry.ObservePhase(PhaseNavigate, time.Since(navStarted))
	if navErr != nil && ctx.Err() != nil {
		return nil, navErr
	}

	if outcome != nil {
		if state.finalURL == "" && outcome.FinalURL != "" {
			state.finalURL = outcome.FinalURL
		}
		state.warnings = append(state.warnings, outcome.Warnings...)
	}

	pageErr := classifyNavigation(outcome, navErr, state.settings.MaxWaitForFCPMs > 0)
	if pageErr != nil {
		logger.Warn("page load failed", "navigation", nav.ID, "code", pageErr.Code, "error", pageErr)
		r.telemetry.PageLoadError(pageErr.Code)
		r.settleFailedNavigation(state, nav, pageErr)
		return pageErr, nil
	}

	r.runHookPhase(ctx, drv, state, PhaseStopSensitiveInstrumentation, nav.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StopSensitiveInstrumentation(ctx, gctx)
		})
	r.runHookPhase(ctx, drv, state, PhaseStopInstrumentation, nav.Artifacts,
		func(g gatherer.Gatherer, ctx context.Context, gctx *gatherer.Context) error {
			return g.StopInstrumentation(ctx, gctx)
		})
	r.runArtifactPhase(ctx, drv, state, nav.Artifacts)

	logger.Info("navigation finished", "navigation", nav.ID, "final_url", outcome.FinalURL)
	return nil, nil
}

// settleFailedNavigation records the page load error as an artifact and
// settles every uncollected artifact of the navigation to it. Artifacts
// already collected by an earlier navigation are left alone.
func (r *Runner) settleFailedNavigation(state *runState, nav config.NavigationPlan, pageErr *PageLoadError) {
	state.warn("navigation %q: %s", nav.ID, pageErr.Error())
	if !state.bag.Has(PageLoadErrorArtifactID) {
		if err := state.bag.Set(PageLoadErrorArtifactID, artifact.Failure(pageErr)); err != nil {
			state.warn("artifact %q: %v", PageLoadErrorArtifactID, err)
		}
	}
	for _, def := range nav.Artifacts {
		if state.bag.Has(def.ID) {
			continue
		}
		if err := state.bag.Set(def.ID, artifact.Failure(pageErr)); err != nil {
			state.warn("artifact %q: %v", def.ID, err)
		}
	}
}

// applyThrottling configures emulated network and CPU conditions for the
// upcoming page load.
func (r *Runner) applyThrottling(ctx context.Context, drv *driver.Driver, state *runState, nav config.NavigationPlan) {
	if nav.DisableThrottling || state.settings.DisableThrottling {
		if err := drv.DisableThrottling(ctx); err != nil {
			state.warn("navigation %q: disable throttling: %v", nav.ID, err)
		}
		return
	}
	if err := drv.ApplyThrottling(ctx, state.settings.Throttling); err != nil {
		state.warn("navigation %q: apply throttling: %v", nav.ID, err)
	}
}

// resetStorage clears the target origin's storage and browser cache so the
// run observes a cold load. Suppressed by DisableStorageReset.
func (r *Runner) resetStorage(ctx context.Context, drv *driver.Driver, state *runState) {
	if state.settings.DisableStorageReset {
		return
	}
	origin := originOf(state.requestedURL)
	if origin == "" {
		state.warn("storage reset skipped: could not derive origin from %q", state.requestedURL)
		return
	}
	if err := drv.ClearStorageForOrigin(ctx, origin); err != nil {
		state.warn("storage reset: %v", err)
	}
	if err := drv.SetCacheDisabled(ctx, true); err != nil {
		state.warn("disable cache: %v", err)
	}
}

// cleanupStorage is the once-per-run cleanup step: after the last navigation
// it wipes the origin's storage again and re-enables the browser cache.
// Suppressed by DisableStorageReset.
func (r *Runner) cleanupStorage(ctx context.Context, drv *driver.Driver, state *runState) {
	if state.settings.DisableStorageReset {
		return
	}
	origin := originOf(state.requestedURL)
	if origin == "" {
		return
	}
	if err := drv.ClearStorageForOrigin(ctx, origin); err != nil {
		state.warn("storage cleanup: %v", err)
	}
	if err := drv.SetCacheDisabled(ctx, false); err != nil {
		state.warn("restore cache: %v", err)
	}
}

func originOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
