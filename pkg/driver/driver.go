// Package driver composes the protocol session with navigation primitives
// and page evaluation into the object handed to collectors.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/pharos/pkg/protocol"
)

// Driver is the collector-facing facade over one browser tab. Connect and
// Disconnect are idempotent; every other method requires a connected driver.
type Driver struct {
	dial   func(ctx context.Context) (*protocol.Connection, error)
	logger *slog.Logger

	mu             sync.Mutex
	conn           *protocol.Connection
	session        *protocol.Session
	connected      bool
	mainFrameID    string
	currentURL     string
	isolatedWorlds map[string]int64
	removeTracking []func()
}

// New returns a driver that dials the given remote-debugging websocket URL
// on Connect.
func New(wsURL string) *Driver {
	return &Driver{
		dial: func(ctx context.Context) (*protocol.Connection, error) {
			return protocol.Dial(ctx, wsURL)
		},
		logger: slog.Default().With("component", "driver"),
	}
}

// NewWithConn returns a driver bound to an existing transport. Used by tests
// and embedders that manage the websocket themselves.
func NewWithConn(conn protocol.Conn) *Driver {
	c := protocol.NewConnection(conn)
	return &Driver{
		dial: func(ctx context.Context) (*protocol.Connection, error) {
			return c, nil
		},
		logger: slog.Default().With("component", "driver"),
	}
}

// Connect establishes the session and enables the protocol domains the
// pipeline depends on. Calling Connect on a connected driver is a no-op.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return nil
	}

	conn, err := d.dial(ctx)
	if err != nil {
		return err
	}
	d.conn = conn
	d.session = conn.RootSession()
	d.isolatedWorlds = make(map[string]int64)

	// The enables are independent; issue them concurrently.
	group, groupCtx := errgroup.WithContext(ctx)
	for _, method := range []string{"Page.enable", "Runtime.enable", "Network.enable"} {
		method := method
		group.Go(func() error {
			if _, err := d.session.Send(groupCtx, method, nil); err != nil {
				return fmt.Errorf("driver: %s: %w", method, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		conn.Close()
		d.conn = nil
		d.session = nil
		return err
	}
	if _, err := d.session.Send(ctx, "Page.setLifecycleEventsEnabled", map[string]bool{"enabled": true}); err != nil {
		conn.Close()
		d.conn = nil
		d.session = nil
		return fmt.Errorf("driver: enable lifecycle events: %w", err)
	}

	if err := d.loadFrameTree(ctx); err != nil {
		conn.Close()
		d.conn = nil
		d.session = nil
		return err
	}

	remove := d.session.On("Page.frameNavigated", func(ev protocol.Event) {
		var payload struct {
			Frame struct {
				ID       string `json:"id"`
				ParentID string `json:"parentId"`
				URL      string `json:"url"`
			} `json:"frame"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		if payload.Frame.ParentID != "" {
			return
		}
		d.mu.Lock()
		d.mainFrameID = payload.Frame.ID
		d.currentURL = payload.Frame.URL
		// Navigation tears down execution contexts.
		d.isolatedWorlds = make(map[string]int64)
		d.mu.Unlock()
	})
	d.removeTracking = append(d.removeTracking, remove)

	d.connected = true
	return nil
}

func (d *Driver) loadFrameTree(ctx context.Context) error {
	var tree struct {
		FrameTree struct {
			Frame struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"frame"`
		} `json:"frameTree"`
	}
	if err := d.session.SendAndDecode(ctx, "Page.getFrameTree", nil, &tree); err != nil {
		return fmt.Errorf("driver: frame tree: %w", err)
	}
	d.mainFrameID = tree.FrameTree.Frame.ID
	d.currentURL = tree.FrameTree.Frame.URL
	return nil
}

// Disconnect disposes the session. Safe to call repeatedly and safe to call
// on a driver that never connected.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil
	}
	for _, remove := range d.removeTracking {
		remove()
	}
	d.removeTracking = nil
	err := d.session.Dispose(ctx)
	d.conn = nil
	d.session = nil
	d.connected = false
	return err
}

// Connected reports whether the driver holds a live session.
func (d *Driver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Session exposes the protocol session for collectors that issue raw
// commands or subscribe to events.
func (d *Driver) Session() *protocol.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// URL returns the main frame's current URL.
func (d *Driver) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentURL
}

func (d *Driver) requireSession() (*protocol.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected || d.session == nil {
		return nil, fmt.Errorf("driver: not connected")
	}
	return d.session, nil
}

// UserAgent returns the browser and network user agent strings.
func (d *Driver) UserAgent(ctx context.Context) (browser string, network string, err error) {
	session, err := d.requireSession()
	if err != nil {
		return "", "", err
	}
	var version struct {
		Product   string `json:"product"`
		UserAgent string `json:"userAgent"`
	}
	if err := session.SendAndDecode(ctx, "Browser.getVersion", nil, &version); err != nil {
		return "", "", fmt.Errorf("driver: browser version: %w", err)
	}
	return version.Product, version.UserAgent, nil
}

// ClearStorageForOrigin wipes the origin's storage (cookies, caches, local
// and session storage) as the post-run cleanup step.
func (d *Driver) ClearStorageForOrigin(ctx context.Context, origin string) error {
	session, err := d.requireSession()
	if err != nil {
		return err
	}
	_, err = session.Send(ctx, "Storage.clearDataForOrigin", map[string]string{
		"origin":       origin,
		"storageTypes": "all",
	})
	return err
}
