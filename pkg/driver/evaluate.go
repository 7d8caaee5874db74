package driver

import (
	"context"
	"encoding/json"
	"fmt"
)

const isolatedWorldName = "pharos-isolated"

// EvalOptions controls page expression evaluation.
type EvalOptions struct {
	// Isolated runs the expression in a private execution context so page
	// scripts cannot observe or tamper with it.
	Isolated bool
	// AwaitPromise resolves a returned promise before reporting the value.
	AwaitPromise bool
}

// Evaluate runs a JavaScript expression in the page and returns its value.
func (d *Driver) Evaluate(ctx context.Context, expression string, opts EvalOptions) (json.RawMessage, error) {
	session, err := d.requireSession()
	if err != nil {
		return nil, err
	}

	params := map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  opts.AwaitPromise,
	}
	if opts.Isolated {
		contextID, err := d.isolatedContext(ctx)
		if err != nil {
			return nil, err
		}
		params["contextId"] = contextID
	}

	var result struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := session.SendAndDecode(ctx, "Runtime.evaluate", params, &result); err != nil {
		return nil, err
	}
	if details := result.ExceptionDetails; details != nil {
		msg := details.Text
		if details.Exception != nil && details.Exception.Description != "" {
			msg = details.Exception.Description
		}
		return nil, fmt.Errorf("driver: evaluate threw: %s", msg)
	}
	return result.Result.Value, nil
}

// isolatedContext returns the cached isolated world for the main frame,
// creating it on first use. Navigation invalidates the cache.
func (d *Driver) isolatedContext(ctx context.Context) (int64, error) {
	d.mu.Lock()
	frameID := d.mainFrameID
	if id, ok := d.isolatedWorlds[frameID]; ok {
		d.mu.Unlock()
		return id, nil
	}
	session := d.session
	d.mu.Unlock()

	if session == nil {
		return 0, fmt.Errorf("driver: not connected")
	}
	var created struct {
		ExecutionContextID int64 `json:"executionContextId"`
	}
	err := session.SendAndDecode(ctx, "Page.createIsolatedWorld", map[string]any{
		"frameId":   frameID,
		"worldName": isolatedWorldName,
	}, &created)
	if err != nil {
		return 0, fmt.Errorf("driver: isolated world: %w", err)
	}

	d.mu.Lock()
	d.isolatedWorlds[frameID] = created.ExecutionContextID
	d.mu.Unlock()
	return created.ExecutionContextID, nil
}
