package driver

import (
	"context"
	"fmt"

	"github.com/odvcencio/pharos/pkg/gather"
)

// ApplyThrottling emulates the configured network and CPU conditions.
func (d *Driver) ApplyThrottling(ctx context.Context, t gather.Throttling) error {
	session, err := d.requireSession()
	if err != nil {
		return err
	}
	_, err = session.Send(ctx, "Network.emulateNetworkConditions", map[string]any{
		"offline":            false,
		"latency":            t.RTTMs,
		"downloadThroughput": kbpsToBytes(t.DownloadThroughputKbps),
		"uploadThroughput":   kbpsToBytes(t.UploadThroughputKbps),
	})
	if err != nil {
		return fmt.Errorf("driver: network conditions: %w", err)
	}
	rate := t.CPUSlowdownMultiplier
	if rate < 1 {
		rate = 1
	}
	_, err = session.Send(ctx, "Emulation.setCPUThrottlingRate", map[string]any{"rate": rate})
	if err != nil {
		return fmt.Errorf("driver: cpu throttling: %w", err)
	}
	return nil
}

// DisableThrottling restores real network and CPU conditions.
func (d *Driver) DisableThrottling(ctx context.Context) error {
	session, err := d.requireSession()
	if err != nil {
		return err
	}
	_, err = session.Send(ctx, "Network.emulateNetworkConditions", map[string]any{
		"offline":            false,
		"latency":            0,
		"downloadThroughput": -1,
		"uploadThroughput":   -1,
	})
	if err != nil {
		return fmt.Errorf("driver: reset network conditions: %w", err)
	}
	_, err = session.Send(ctx, "Emulation.setCPUThrottlingRate", map[string]any{"rate": 1})
	return err
}

// SetCacheDisabled toggles the browser cache for subsequent requests.
func (d *Driver) SetCacheDisabled(ctx context.Context, disabled bool) error {
	session, err := d.requireSession()
	if err != nil {
		return err
	}
	_, err = session.Send(ctx, "Network.setCacheDisabled", map[string]bool{"cacheDisabled": disabled})
	return err
}

func kbpsToBytes(kbps float64) float64 {
	if kbps <= 0 {
		return -1
	}
	return kbps * 1024 / 8
}
