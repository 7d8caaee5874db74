package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/odvcencio/pharos/pkg/protocol"
)

const quietPollInterval = 25 * time.Millisecond

// NavigateOptions bounds the waits performed after the navigation request.
type NavigateOptions struct {
	MaxWaitForLoad        time.Duration
	MaxWaitForFCP         time.Duration
	NetworkQuietThreshold time.Duration
	CPUQuietThreshold     time.Duration
}

// NavigationOutcome reports what the driver observed while loading a page.
// Classification of these observations into a page-load error belongs to the
// orchestrator.
type NavigationOutcome struct {
	RequestedURL       string
	FinalURL           string
	LoadEventFired     bool
	SawFirstPaint      bool
	TimedOut           bool
	MainDocumentFailed bool
	MainDocumentError  string
	Warnings           []string
}

// GotoBlank parks the tab on a neutral page. Failures here are tolerated by
// the caller; a blank-page miss is never fatal on its own.
func (d *Driver) GotoBlank(ctx context.Context, blankURL string) error {
	session, err := d.requireSession()
	if err != nil {
		return err
	}
	loadFired := make(chan struct{})
	remove := session.Once("Page.loadEventFired", func(protocol.Event) {
		close(loadFired)
	})
	defer remove()

	if _, err := session.Send(ctx, "Page.navigate", map[string]string{"url": blankURL}); err != nil {
		return fmt.Errorf("driver: blank page: %w", err)
	}
	select {
	case <-loadFired:
	case <-time.After(time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Navigate drives the tab to url and waits for load, first paint, and a
// quiet network/CPU window, bounded by MaxWaitForLoad.
func (d *Driver) Navigate(ctx context.Context, url string, opts NavigateOptions) (*NavigationOutcome, error) {
	session, err := d.requireSession()
	if err != nil {
		return nil, err
	}
	if opts.MaxWaitForLoad <= 0 {
		opts.MaxWaitForLoad = 45 * time.Second
	}

	outcome := &NavigationOutcome{RequestedURL: url}

	loadFired := make(chan struct{})
	removeLoad := session.Once("Page.loadEventFired", func(protocol.Event) {
		close(loadFired)
	})
	defer removeLoad()

	paintSeen := make(chan struct{})
	removePaint := session.On("Page.lifecycleEvent", func(ev protocol.Event) {
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		if payload.Name == "firstContentfulPaint" || payload.Name == "firstPaint" {
			select {
			case <-paintSeen:
			default:
				close(paintSeen)
			}
		}
	})
	defer removePaint()

	monitor := newNetworkMonitor(session)
	defer monitor.detach()

	deadline := time.NewTimer(opts.MaxWaitForLoad)
	defer deadline.Stop()

	var navResult struct {
		ErrorText string `json:"errorText"`
	}
	if err := session.SendAndDecode(ctx, "Page.navigate", map[string]string{"url": url}, &navResult); err != nil {
		return nil, err
	}
	if navResult.ErrorText != "" {
		outcome.MainDocumentFailed = true
		outcome.MainDocumentError = navResult.ErrorText
		outcome.FinalURL = d.URL()
		return outcome, nil
	}

	select {
	case <-loadFired:
		outcome.LoadEventFired = true
	case <-deadline.C:
		outcome.TimedOut = true
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if outcome.LoadEventFired {
		if !d.waitForNetworkQuiet(ctx, monitor, opts.NetworkQuietThreshold, deadline.C) {
			outcome.Warnings = append(outcome.Warnings, "page did not reach network quiescence before the wait budget expired")
		}
		d.settleCPU(ctx, opts.CPUQuietThreshold, deadline.C)
		if opts.MaxWaitForFCP > 0 {
			fcpDeadline := time.NewTimer(opts.MaxWaitForFCP)
			select {
			case <-paintSeen:
			case <-fcpDeadline.C:
			case <-ctx.Done():
				fcpDeadline.Stop()
				return nil, ctx.Err()
			}
			fcpDeadline.Stop()
		}
	}

	select {
	case <-paintSeen:
		outcome.SawFirstPaint = true
	default:
	}
	if failed, errorText := monitor.mainDocumentFailure(); failed {
		outcome.MainDocumentFailed = true
		outcome.MainDocumentError = errorText
	}
	outcome.FinalURL = d.URL()
	return outcome, nil
}

// waitForNetworkQuiet polls until the network has been idle for the
// threshold, the deadline fires, or the caller cancels.
func (d *Driver) waitForNetworkQuiet(ctx context.Context, monitor *networkMonitor, threshold time.Duration, deadline <-chan time.Time) bool {
	if threshold < 0 {
		return true
	}
	ticker := time.NewTicker(quietPollInterval)
	defer ticker.Stop()
	for {
		if monitor.quietFor(threshold) {
			return true
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// settleCPU waits out the CPU quiet window. The protocol gives no direct
// main-thread idle signal, so the window is a plain cooperative delay.
func (d *Driver) settleCPU(ctx context.Context, threshold time.Duration, deadline <-chan time.Time) {
	if threshold <= 0 {
		return
	}
	timer := time.NewTimer(threshold)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-deadline:
	case <-ctx.Done():
	}
}
