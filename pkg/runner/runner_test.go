package runner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/config"
	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
	"github.com/odvcencio/pharos/pkg/protocol"
	"github.com/odvcencio/pharos/pkg/protocol/protocoltest"
)

// scriptedCollector records which hooks ran and can be told to fail in one.
type scriptedCollector struct {
	mu       sync.Mutex
	symbol   *gatherer.Symbol
	modes    []gather.Mode
	deps     map[string]*gatherer.Symbol
	value    any
	failIn   string
	failErr  error
	calls    []string
	seenDeps map[string]artifact.Result
}

func newScriptedCollector(name string, value any) *scriptedCollector {
	return &scriptedCollector{
		symbol: gatherer.NewSymbol(name),
		modes:  gather.Modes(),
		value:  value,
	}
}

func (c *scriptedCollector) Meta() gatherer.Meta {
	return gatherer.Meta{Symbol: c.symbol, SupportedModes: c.modes, Dependencies: c.deps}
}

func (c *scriptedCollector) hook(phase string, gctx *gatherer.Context) error {
	c.mu.Lock()
	c.calls = append(c.calls, phase)
	if gctx.Dependencies != nil {
		c.seenDeps = gctx.Dependencies
	}
	c.mu.Unlock()
	if c.failIn == phase {
		return c.failErr
	}
	return nil
}

func (c *scriptedCollector) StartInstrumentation(_ context.Context, gctx *gatherer.Context) error {
	return c.hook(PhaseStartInstrumentation, gctx)
}

func (c *scriptedCollector) StartSensitiveInstrumentation(_ context.Context, gctx *gatherer.Context) error {
	return c.hook(PhaseStartSensitiveInstrumentation, gctx)
}

func (c *scriptedCollector) StopSensitiveInstrumentation(_ context.Context, gctx *gatherer.Context) error {
	return c.hook(PhaseStopSensitiveInstrumentation, gctx)
}

func (c *scriptedCollector) StopInstrumentation(_ context.Context, gctx *gatherer.Context) error {
	return c.hook(PhaseStopInstrumentation, gctx)
}

func (c *scriptedCollector) GetArtifact(_ context.Context, gctx *gatherer.Context) (any, error) {
	if err := c.hook(PhaseGetArtifact, gctx); err != nil {
		return nil, err
	}
	return c.value, nil
}

func (c *scriptedCollector) phases() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// newBrowserConn scripts the browser side of a run: frame tree, version,
// and page navigations that fire their load event. URLs listed in failURLs
// answer Page.navigate with a network error instead.
func newBrowserConn(failURLs ...string) *protocoltest.Conn {
	conn := protocoltest.NewConn()
	conn.HandleResult("Page.getFrameTree", map[string]any{
		"frameTree": map[string]any{
			"frame": map[string]any{"id": "F1", "url": "about:blank"},
		},
	})
	conn.HandleResult("Browser.getVersion", map[string]string{
		"product":   "HeadlessChrome/130.0",
		"userAgent": "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/130.0",
	})
	conn.Handle("Page.navigate", func(call protocoltest.Call) (any, *protocol.ResponseError) {
		var params struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(call.Params, &params)
		for _, failURL := range failURLs {
			if params.URL == failURL {
				return map[string]string{"errorText": "net::ERR_NAME_NOT_RESOLVED"}, nil
			}
		}
		go func() {
			conn.Emit("Page.frameNavigated", "", map[string]any{
				"frame": map[string]any{"id": "F1", "url": params.URL},
			})
			conn.Emit("Page.loadEventFired", "", nil)
		}()
		return map[string]string{"frameId": "F1"}, nil
	})
	return conn
}

func testSettings() gather.Settings {
	return gather.Settings{
		BlankPage:         "about:blank",
		MaxWaitForLoadMs:  2_000,
		ProtocolTimeoutMs: 2_000,
	}
}

func navigationConfig(navs ...config.NavigationPlan) *config.ResolvedConfig {
	cfg := &config.ResolvedConfig{
		GatherMode:  gather.ModeNavigation,
		Navigations: navs,
		Settings:    testSettings(),
	}
	seen := map[string]bool{}
	for _, nav := range navs {
		for _, def := range nav.Artifacts {
			if !seen[def.ID] {
				seen[def.ID] = true
				cfg.Artifacts = append(cfg.Artifacts, def)
			}
		}
	}
	return cfg
}

func TestNavigationRunCollectsArtifactsInPhaseOrder(t *testing.T) {
	provider := newScriptedCollector("Provider", "provider-value")
	dependent := newScriptedCollector("Dependent", "dependent-value")
	dependent.deps = map[string]*gatherer.Symbol{"source": provider.symbol}

	cfg := navigationConfig(config.NavigationPlan{
		ID:              "default",
		LoadFailureMode: config.LoadFailureFatal,
		BlankPage:       "about:blank",
		Artifacts: []*config.ArtifactDefinition{
			{ID: "Provider", Gatherer: provider},
			{ID: "Dependent", Gatherer: dependent, Dependencies: map[string]config.Dependency{
				"source": {ID: "Provider"},
			}},
		},
	})

	conn := newBrowserConn()
	drv := driver.NewWithConn(conn)
	run, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, "https://example.com/", run.RequestedURL)
	assert.Equal(t, "https://example.com/", run.FinalURL)
	assert.Equal(t, gather.ModeNavigation, run.GatherMode)
	assert.NotEmpty(t, run.RunID)

	value, err := run.Artifacts["Provider"].Get()
	require.NoError(t, err)
	assert.Equal(t, "provider-value", value)
	value, err = run.Artifacts["Dependent"].Get()
	require.NoError(t, err)
	assert.Equal(t, "dependent-value", value)

	// The dependent observed the provider's settled result.
	seen, err := dependent.seenDeps["source"].Get()
	require.NoError(t, err)
	assert.Equal(t, "provider-value", seen)

	assert.Equal(t, []string{
		PhaseStartInstrumentation,
		PhaseStartSensitiveInstrumentation,
		PhaseStopSensitiveInstrumentation,
		PhaseStopInstrumentation,
		PhaseGetArtifact,
	}, provider.phases())

	// Runner-contributed artifacts ride along.
	assert.Contains(t, run.Artifacts, GatherContextArtifactID)
	assert.Contains(t, run.Artifacts, HostUserAgentArtifactID)
	assert.Contains(t, run.Artifacts, URLArtifactID)
	assert.NotEmpty(t, run.Timing)
}

func TestCollectorFailureIsIsolated(t *testing.T) {
	broken := newScriptedCollector("Broken", nil)
	broken.failIn = PhaseStartInstrumentation
	broken.failErr = errors.New("instrumentation refused")
	healthy := newScriptedCollector("Healthy", 42)

	cfg := navigationConfig(config.NavigationPlan{
		ID:              "default",
		LoadFailureMode: config.LoadFailureFatal,
		Artifacts: []*config.ArtifactDefinition{
			{ID: "Broken", Gatherer: broken},
			{ID: "Healthy", Gatherer: healthy},
		},
	})

	drv := driver.NewWithConn(newBrowserConn())
	run, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.NoError(t, err, "one collector's failure never aborts the run")

	require.True(t, run.Artifacts["Broken"].IsError())
	assert.ErrorContains(t, run.Artifacts["Broken"].Err(), "instrumentation refused")
	// The failed collector is poisoned: no later hooks run for it.
	assert.Equal(t, []string{PhaseStartInstrumentation}, broken.phases())

	value, err := run.Artifacts["Healthy"].Get()
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestFailedDependencyIsPassedThroughAsError(t *testing.T) {
	provider := newScriptedCollector("Provider", nil)
	provider.failIn = PhaseGetArtifact
	provider.failErr = errors.New("document unavailable")
	dependent := newScriptedCollector("Dependent", "still-produced")
	dependent.deps = map[string]*gatherer.Symbol{"source": provider.symbol}

	cfg := navigationConfig(config.NavigationPlan{
		ID:              "default",
		LoadFailureMode: config.LoadFailureFatal,
		Artifacts: []*config.ArtifactDefinition{
			{ID: "Provider", Gatherer: provider},
			{ID: "Dependent", Gatherer: dependent, Dependencies: map[string]config.Dependency{
				"source": {ID: "Provider"},
			}},
		},
	})

	drv := driver.NewWithConn(newBrowserConn())
	run, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.NoError(t, err)

	require.True(t, run.Artifacts["Provider"].IsError())

	// The dependent still ran, with the failure visible in its dependencies.
	source := dependent.seenDeps["source"]
	require.True(t, source.IsError())
	assert.ErrorContains(t, source.Err(), "document unavailable")
	value, err := run.Artifacts["Dependent"].Get()
	require.NoError(t, err)
	assert.Equal(t, "still-produced", value)
}

func TestFatalPageLoadErrorAbortsRemainingNavigations(t *testing.T) {
	first := newScriptedCollector("First", 1)
	second := newScriptedCollector("Second", 2)

	cfg := navigationConfig(
		config.NavigationPlan{
			ID:              "primary",
			LoadFailureMode: config.LoadFailureFatal,
			BlankPage:       "about:blank",
			Artifacts:       []*config.ArtifactDefinition{{ID: "First", Gatherer: first}},
		},
		config.NavigationPlan{
			ID:              "secondary",
			LoadFailureMode: config.LoadFailureFatal,
			BlankPage:       "about:blank",
			Artifacts:       []*config.ArtifactDefinition{{ID: "Second", Gatherer: second}},
		},
	)

	conn := newBrowserConn("https://down.example/")
	drv := driver.NewWithConn(conn)
	run, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://down.example/", nil)
	require.Error(t, err)

	var pageErr *PageLoadError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, CodeFailedDocumentRequest, pageErr.Code)

	require.NotNil(t, run, "the partial run is still returned")
	require.True(t, run.Artifacts[PageLoadErrorArtifactID].IsError())
	assert.True(t, run.Artifacts["First"].IsError())

	// The second navigation never started: one blank load plus one page load.
	assert.Equal(t, 2, conn.CallCount("Page.navigate"))
	assert.Empty(t, second.phases())
	assert.NotContains(t, run.Artifacts, "Second")
}

func TestWarnModePageLoadErrorIsRecordedAndRunContinues(t *testing.T) {
	tolerant := newScriptedCollector("Tolerant", "unused")
	later := newScriptedCollector("Later", "collected")

	cfg := navigationConfig(
		config.NavigationPlan{
			ID:              "flaky",
			LoadFailureMode: config.LoadFailureWarn,
			Artifacts:       []*config.ArtifactDefinition{{ID: "Tolerant", Gatherer: tolerant}},
		},
		config.NavigationPlan{
			ID:              "steady",
			LoadFailureMode: config.LoadFailureFatal,
			Artifacts:       []*config.ArtifactDefinition{{ID: "Later", Gatherer: later}},
		},
	)

	// Every load of this URL fails; with both navigations in warn mode the
	// run still completes and each failure is recorded.
	conn := newBrowserConn("https://flaky.example/")
	cfg.Navigations[1].LoadFailureMode = config.LoadFailureWarn
	drv := driver.NewWithConn(conn)
	run, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://flaky.example/", nil)
	require.NoError(t, err, "warn mode failures never abort the run")

	require.True(t, run.Artifacts[PageLoadErrorArtifactID].IsError())
	var coder artifact.Coder
	require.ErrorAs(t, run.Artifacts[PageLoadErrorArtifactID].Err(), &coder)
	assert.Equal(t, CodeFailedDocumentRequest, coder.ErrorCode())

	assert.True(t, run.Artifacts["Tolerant"].IsError())
	assert.True(t, run.Artifacts["Later"].IsError())
	assert.NotEmpty(t, run.Warnings)

	// Both navigations attempted their page load.
	assert.Equal(t, 4, conn.CallCount("Page.navigate"))
}

func TestSnapshotRunsArtifactPhaseOnly(t *testing.T) {
	collector := newScriptedCollector("DocSnapshot", "<html></html>")
	cfg := &config.ResolvedConfig{
		GatherMode: gather.ModeSnapshot,
		Artifacts:  []*config.ArtifactDefinition{{ID: "DocSnapshot", Gatherer: collector}},
		Settings:   testSettings(),
	}

	drv := driver.NewWithConn(newBrowserConn())
	run, err := New(Options{}).Snapshot(context.Background(), drv, cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{PhaseGetArtifact}, collector.phases())
	value, err := run.Artifacts["DocSnapshot"].Get()
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", value)
	assert.Equal(t, gather.ModeSnapshot, run.GatherMode)
}

func TestTimespanRunsInstrumentationAroundTheWindow(t *testing.T) {
	collector := newScriptedCollector("TraceWindow", "recorded")
	cfg := &config.ResolvedConfig{
		GatherMode: gather.ModeTimespan,
		Artifacts:  []*config.ArtifactDefinition{{ID: "TraceWindow", Gatherer: collector}},
		Settings:   testSettings(),
	}

	drv := driver.NewWithConn(newBrowserConn())
	runner := New(Options{})
	recording, err := runner.StartTimespan(context.Background(), drv, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		PhaseStartInstrumentation,
		PhaseStartSensitiveInstrumentation,
	}, collector.phases())

	run, err := recording.End(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		PhaseStartInstrumentation,
		PhaseStartSensitiveInstrumentation,
		PhaseStopSensitiveInstrumentation,
		PhaseStopInstrumentation,
		PhaseGetArtifact,
	}, collector.phases())

	value, err := run.Artifacts["TraceWindow"].Get()
	require.NoError(t, err)
	assert.Equal(t, "recorded", value)

	_, err = recording.End(context.Background())
	require.Error(t, err, "a timespan can only end once")
}

func TestRunnerRejectsMismatchedMode(t *testing.T) {
	cfg := &config.ResolvedConfig{GatherMode: gather.ModeSnapshot, Settings: testSettings()}
	drv := driver.NewWithConn(newBrowserConn())
	_, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.Error(t, err)
}

func TestSensitivePhaseFailureLeavesSiblingsUntouched(t *testing.T) {
	left := newScriptedCollector("Left", "left-value")
	broken := newScriptedCollector("Broken", nil)
	broken.failIn = PhaseStartSensitiveInstrumentation
	broken.failErr = errors.New("boom")
	right := newScriptedCollector("Right", "right-value")

	cfg := navigationConfig(config.NavigationPlan{
		ID:              "default",
		LoadFailureMode: config.LoadFailureFatal,
		Artifacts: []*config.ArtifactDefinition{
			{ID: "Left", Gatherer: left},
			{ID: "Broken", Gatherer: broken},
			{ID: "Right", Gatherer: right},
		},
	})

	drv := driver.NewWithConn(newBrowserConn())
	run, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.NoError(t, err)

	require.True(t, run.Artifacts["Broken"].IsError())
	assert.ErrorContains(t, run.Artifacts["Broken"].Err(), "boom")
	assert.Equal(t, []string{
		PhaseStartInstrumentation,
		PhaseStartSensitiveInstrumentation,
	}, broken.phases())

	value, err := run.Artifacts["Left"].Get()
	require.NoError(t, err)
	assert.Equal(t, "left-value", value)
	value, err = run.Artifacts["Right"].Get()
	require.NoError(t, err)
	assert.Equal(t, "right-value", value)
}

func TestDisjointArtifactsAcrossNavigationsMerge(t *testing.T) {
	fontSize := newScriptedCollector("FontSize", "16px")
	console := newScriptedCollector("ConsoleMessages", []string{"hello"})

	cfg := navigationConfig(
		config.NavigationPlan{
			ID:              "first",
			LoadFailureMode: config.LoadFailureWarn,
			Artifacts:       []*config.ArtifactDefinition{{ID: "FontSize", Gatherer: fontSize}},
		},
		config.NavigationPlan{
			ID:              "second",
			LoadFailureMode: config.LoadFailureWarn,
			Artifacts:       []*config.ArtifactDefinition{{ID: "ConsoleMessages", Gatherer: console}},
		},
	)

	drv := driver.NewWithConn(newBrowserConn())
	run, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.NoError(t, err)

	value, err := run.Artifacts["FontSize"].Get()
	require.NoError(t, err)
	assert.Equal(t, "16px", value)
	value, err = run.Artifacts["ConsoleMessages"].Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, value)
}

func TestStorageCleanupRunsAfterTheLastNavigation(t *testing.T) {
	first := newScriptedCollector("First", 1)
	second := newScriptedCollector("Second", 2)

	cfg := navigationConfig(
		config.NavigationPlan{
			ID:              "first",
			LoadFailureMode: config.LoadFailureWarn,
			Artifacts:       []*config.ArtifactDefinition{{ID: "First", Gatherer: first}},
		},
		config.NavigationPlan{
			ID:              "second",
			LoadFailureMode: config.LoadFailureWarn,
			Artifacts:       []*config.ArtifactDefinition{{ID: "Second", Gatherer: second}},
		},
	)

	conn := newBrowserConn()
	drv := driver.NewWithConn(conn)
	_, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.NoError(t, err)

	lastNavigate, lastClear, lastCache := -1, -1, -1
	for i, call := range conn.Calls() {
		switch call.Method {
		case "Page.navigate":
			lastNavigate = i
		case "Storage.clearDataForOrigin":
			lastClear = i
		case "Network.setCacheDisabled":
			lastCache = i
		}
	}
	require.NotEqual(t, -1, lastClear)
	assert.Greater(t, lastClear, lastNavigate, "cleanup clears storage after the last page load")
	assert.Greater(t, lastCache, lastNavigate, "cleanup restores the cache after the last page load")
}

func TestStorageCleanupIsSuppressedByDisableStorageReset(t *testing.T) {
	only := newScriptedCollector("Only", 1)
	cfg := navigationConfig(config.NavigationPlan{
		ID:              "default",
		LoadFailureMode: config.LoadFailureWarn,
		Artifacts:       []*config.ArtifactDefinition{{ID: "Only", Gatherer: only}},
	})
	cfg.Settings.DisableStorageReset = true

	conn := newBrowserConn()
	drv := driver.NewWithConn(conn)
	_, err := New(Options{}).Navigation(context.Background(), drv, cfg, "https://example.com/", nil)
	require.NoError(t, err)

	assert.Zero(t, conn.CallCount("Storage.clearDataForOrigin"))
}
