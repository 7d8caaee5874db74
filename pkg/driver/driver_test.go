package driver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pharos/pkg/protocol"
	"github.com/odvcencio/pharos/pkg/protocol/protocoltest"
)

func newTestDriver(t *testing.T) (*Driver, *protocoltest.Conn) {
	t.Helper()
	conn := protocoltest.NewConn()
	conn.HandleResult("Page.getFrameTree", map[string]any{
		"frameTree": map[string]any{
			"frame": map[string]any{"id": "MAIN", "url": "about:blank"},
		},
	})
	drv := NewWithConn(conn)
	t.Cleanup(func() { drv.Disconnect(context.Background()) })
	return drv, conn
}

func TestConnectIsIdempotent(t *testing.T) {
	drv, conn := newTestDriver(t)

	require.NoError(t, drv.Connect(context.Background()))
	require.NoError(t, drv.Connect(context.Background()))
	assert.True(t, drv.Connected())

	assert.Equal(t, 1, conn.CallCount("Page.enable"))
	assert.Equal(t, 1, conn.CallCount("Runtime.enable"))
	assert.Equal(t, 1, conn.CallCount("Network.enable"))
	assert.Equal(t, 1, conn.CallCount("Page.setLifecycleEventsEnabled"))
	assert.Equal(t, "about:blank", drv.URL())
}

func TestDisconnectWithoutConnectIsSafe(t *testing.T) {
	conn := protocoltest.NewConn()
	drv := NewWithConn(conn)
	require.NoError(t, drv.Disconnect(context.Background()))
	assert.False(t, drv.Connected())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	drv, _ := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))
	require.NoError(t, drv.Disconnect(context.Background()))
	require.NoError(t, drv.Disconnect(context.Background()))
	assert.False(t, drv.Connected())
}

func TestFrameNavigationUpdatesURL(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))

	conn.Emit("Page.frameNavigated", "", map[string]any{
		"frame": map[string]any{"id": "MAIN", "url": "https://example.com/pricing"},
	})
	require.Eventually(t, func() bool {
		return drv.URL() == "https://example.com/pricing"
	}, time.Second, 5*time.Millisecond)

	// Child frame navigations do not move the main frame URL.
	conn.Emit("Page.frameNavigated", "", map[string]any{
		"frame": map[string]any{"id": "CHILD", "parentId": "MAIN", "url": "https://ads.example/frame"},
	})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "https://example.com/pricing", drv.URL())
}

func TestNavigateWaitsForLoadEvent(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))

	conn.Handle("Page.navigate", func(call protocoltest.Call) (any, *protocol.ResponseError) {
		var params struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(call.Params, &params)
		go func() {
			conn.Emit("Page.frameNavigated", "", map[string]any{
				"frame": map[string]any{"id": "MAIN", "url": params.URL},
			})
			conn.Emit("Page.lifecycleEvent", "", map[string]any{"name": "firstContentfulPaint"})
			conn.Emit("Page.loadEventFired", "", nil)
		}()
		return map[string]string{"frameId": "MAIN"}, nil
	})

	outcome, err := drv.Navigate(context.Background(), "https://example.com/", NavigateOptions{
		MaxWaitForLoad: 2 * time.Second,
		MaxWaitForFCP:  500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, outcome.LoadEventFired)
	assert.True(t, outcome.SawFirstPaint)
	assert.False(t, outcome.TimedOut)
	assert.False(t, outcome.MainDocumentFailed)
	assert.Equal(t, "https://example.com/", outcome.FinalURL)
}

func TestNavigateReportsMainDocumentError(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))

	conn.HandleResult("Page.navigate", map[string]string{
		"errorText": "net::ERR_CONNECTION_REFUSED",
	})

	outcome, err := drv.Navigate(context.Background(), "https://refused.example/", NavigateOptions{
		MaxWaitForLoad: time.Second,
	})
	require.NoError(t, err)
	assert.True(t, outcome.MainDocumentFailed)
	assert.Equal(t, "net::ERR_CONNECTION_REFUSED", outcome.MainDocumentError)
	assert.False(t, outcome.LoadEventFired)
}

func TestNavigateTimesOutWhenLoadNeverFires(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))
	conn.HandleResult("Page.navigate", map[string]string{"frameId": "MAIN"})

	outcome, err := drv.Navigate(context.Background(), "https://hung.example/", NavigateOptions{
		MaxWaitForLoad: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, outcome.TimedOut)
	assert.False(t, outcome.LoadEventFired)
}

func TestEvaluateReturnsValueAndSurfacesExceptions(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))

	conn.HandleResult("Runtime.evaluate", map[string]any{
		"result": map[string]any{"value": "<html></html>"},
	})
	raw, err := drv.Evaluate(context.Background(), "document.documentElement.outerHTML", EvalOptions{})
	require.NoError(t, err)
	var value string
	require.NoError(t, json.Unmarshal(raw, &value))
	assert.Equal(t, "<html></html>", value)

	conn.HandleResult("Runtime.evaluate", map[string]any{
		"result": map[string]any{},
		"exceptionDetails": map[string]any{
			"text":      "Uncaught",
			"exception": map[string]any{"description": "ReferenceError: nope is not defined"},
		},
	})
	_, err = drv.Evaluate(context.Background(), "nope()", EvalOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReferenceError")
}

func TestIsolatedEvaluationCachesTheWorldPerFrame(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))

	conn.HandleResult("Page.createIsolatedWorld", map[string]any{"executionContextId": 7})
	conn.HandleResult("Runtime.evaluate", map[string]any{
		"result": map[string]any{"value": true},
	})

	_, err := drv.Evaluate(context.Background(), "1", EvalOptions{Isolated: true})
	require.NoError(t, err)
	_, err = drv.Evaluate(context.Background(), "2", EvalOptions{Isolated: true})
	require.NoError(t, err)
	assert.Equal(t, 1, conn.CallCount("Page.createIsolatedWorld"))

	// The isolated context id rides along on the evaluate params.
	for _, call := range conn.Calls() {
		if call.Method == "Runtime.evaluate" {
			var params struct {
				ContextID int64 `json:"contextId"`
			}
			require.NoError(t, json.Unmarshal(call.Params, &params))
			assert.Equal(t, int64(7), params.ContextID)
		}
	}
}

func TestUserAgent(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))
	conn.HandleResult("Browser.getVersion", map[string]string{
		"product":   "HeadlessChrome/130.0",
		"userAgent": "Mozilla/5.0 Headless",
	})

	browser, network, err := drv.UserAgent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HeadlessChrome/130.0", browser)
	assert.Equal(t, "Mozilla/5.0 Headless", network)
}

func TestSetBlockedURLPatterns(t *testing.T) {
	drv, conn := newTestDriver(t)
	require.NoError(t, drv.Connect(context.Background()))

	require.NoError(t, drv.SetBlockedURLPatterns(context.Background(), []string{"*.doubleclick.net", "*tracker*"}))
	require.NoError(t, drv.SetBlockedURLPatterns(context.Background(), nil))

	var urls [][]string
	for _, call := range conn.Calls() {
		if call.Method == "Network.setBlockedURLs" {
			var params struct {
				URLs []string `json:"urls"`
			}
			require.NoError(t, json.Unmarshal(call.Params, &params))
			urls = append(urls, params.URLs)
		}
	}
	require.Len(t, urls, 2)
	assert.Equal(t, []string{"*.doubleclick.net", "*tracker*"}, urls[0])
	assert.Empty(t, urls[1])
}
