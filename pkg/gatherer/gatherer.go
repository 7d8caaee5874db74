// Package gatherer defines the collector contract: the lifecycle hooks a
// collector may implement, the capability meta it declares, and the registry
// that resolves collector ids into factories.
package gatherer

import (
	"context"
	"fmt"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/driver"
	"github.com/odvcencio/pharos/pkg/gather"
)

// Symbol is an opaque identity token for a collector type. Dependencies are
// declared against symbols, not string ids, so renaming an artifact id never
// silently rebinds a dependency. Symbols compare by pointer.
type Symbol struct {
	name string
}

// NewSymbol mints a new identity token. Each collector type creates exactly
// one, at package init.
func NewSymbol(name string) *Symbol {
	return &Symbol{name: name}
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil symbol>"
	}
	return s.name
}

// Meta is a collector's declared capability descriptor.
type Meta struct {
	// Symbol identifies this collector type to dependents.
	Symbol *Symbol
	// SupportedModes is authoritative: the orchestrator never invokes a
	// collector in a mode it does not declare.
	SupportedModes []gather.Mode
	// Dependencies maps a dependency name to the symbol of the collector
	// that must provide it.
	Dependencies map[string]*Symbol
}

// SupportsMode reports whether the collector runs in the given gather mode.
func (m Meta) SupportsMode(mode gather.Mode) bool {
	for _, supported := range m.SupportedModes {
		if supported == mode {
			return true
		}
	}
	return false
}

// Context is the per-invocation state handed to every lifecycle hook.
type Context struct {
	Driver       *driver.Driver
	GatherMode   gather.Mode
	Settings     gather.Settings
	RequestedURL string

	// Dependencies holds the already-settled results of this collector's
	// declared dependencies, keyed by dependency name. A failed dependency
	// is passed through as its error result, not dropped.
	Dependencies map[string]artifact.Result
}

// Dependency returns the named dependency's value. A dependency that failed
// upstream surfaces its original error here.
func (c *Context) Dependency(name string) (any, error) {
	result, ok := c.Dependencies[name]
	if !ok {
		return nil, fmt.Errorf("gatherer: dependency %q was not provided", name)
	}
	return result.Get()
}

// Gatherer is the full lifecycle hook contract. The configuration resolver
// rejects any collector that does not satisfy it. Collectors that only need
// a subset of hooks embed Base for the rest.
type Gatherer interface {
	Meta() Meta
	StartInstrumentation(ctx context.Context, gctx *Context) error
	StartSensitiveInstrumentation(ctx context.Context, gctx *Context) error
	StopSensitiveInstrumentation(ctx context.Context, gctx *Context) error
	StopInstrumentation(ctx context.Context, gctx *Context) error
	GetArtifact(ctx context.Context, gctx *Context) (any, error)
}

// Base provides no-op implementations of the four instrumentation hooks.
// GetArtifact is deliberately absent: every collector must produce something.
type Base struct{}

func (Base) StartInstrumentation(context.Context, *Context) error          { return nil }
func (Base) StartSensitiveInstrumentation(context.Context, *Context) error { return nil }
func (Base) StopSensitiveInstrumentation(context.Context, *Context) error  { return nil }
func (Base) StopInstrumentation(context.Context, *Context) error           { return nil }

// ValidateMeta checks a collector's capability descriptor at resolution
// time, so malformed collectors fail the run before any browser interaction.
func ValidateMeta(id string, m Meta) error {
	if m.Symbol == nil {
		return fmt.Errorf("collector %q declares no symbol", id)
	}
	if len(m.SupportedModes) == 0 {
		return fmt.Errorf("collector %q supports no gather modes", id)
	}
	for _, mode := range m.SupportedModes {
		if !mode.Valid() {
			return fmt.Errorf("collector %q declares invalid gather mode %q", id, mode)
		}
	}
	for name, sym := range m.Dependencies {
		if sym == nil {
			return fmt.Errorf("collector %q dependency %q references no symbol", id, name)
		}
	}
	return nil
}
