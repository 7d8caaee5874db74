// Package audit holds the metadata side of audits: what artifacts each
// audit requires and how audits group into categories. The audits themselves
// are pure functions over the final artifact bag and live outside the gather
// core.
package audit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/odvcencio/pharos/pkg/gather"
)

// Meta declares an audit's requirements to the configuration resolver.
type Meta struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	RequiredArtifacts []string      `json:"requiredArtifacts"`
	SupportedModes    []gather.Mode `json:"supportedModes,omitempty"`
	// Manual audits are checklists, not automated checks. A category made up
	// entirely of manual audits is dropped during resolution.
	Manual bool `json:"manual,omitempty"`
}

// SupportsMode reports whether the audit can run on artifacts gathered in
// the given mode. An empty mode list means every mode.
func (m Meta) SupportsMode(mode gather.Mode) bool {
	if len(m.SupportedModes) == 0 {
		return true
	}
	for _, supported := range m.SupportedModes {
		if supported == mode {
			return true
		}
	}
	return false
}

// Ref is a category's weighted reference to an audit.
type Ref struct {
	ID     string  `json:"id" yaml:"id"`
	Weight float64 `json:"weight" yaml:"weight"`
	Group  string  `json:"group,omitempty" yaml:"group,omitempty"`
}

// Category groups audit references under a score heading.
type Category struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	AuditRefs   []Ref  `json:"auditRefs" yaml:"audit_refs"`
}

// Group labels a cluster of audits inside a category's report section.
type Group struct {
	Title string `json:"title" yaml:"title"`
}

// Resolver looks up audit metadata by id.
type Resolver func(id string) (Meta, error)

// Registry is the default Resolver implementation.
type Registry struct {
	mu    sync.RWMutex
	metas map[string]Meta
}

// NewRegistry returns an empty audit registry.
func NewRegistry() *Registry {
	return &Registry{metas: make(map[string]Meta)}
}

// Register adds audit metadata. Duplicate ids are an error.
func (r *Registry) Register(meta Meta) error {
	if meta.ID == "" {
		return fmt.Errorf("audit: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metas[meta.ID]; exists {
		return fmt.Errorf("audit: %q already registered", meta.ID)
	}
	r.metas[meta.ID] = meta
	return nil
}

// MustRegister is Register for package-init wiring.
func (r *Registry) MustRegister(meta Meta) {
	if err := r.Register(meta); err != nil {
		panic(err)
	}
}

// Resolve returns the metadata registered under id.
func (r *Registry) Resolve(id string) (Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metas[id]
	if !ok {
		return Meta{}, fmt.Errorf("audit: unknown audit %q", id)
	}
	return meta, nil
}

// Resolver adapts the registry to the Resolver function type.
func (r *Registry) Resolver() Resolver {
	return r.Resolve
}

// IDs returns registered audit ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.metas))
	for id := range r.metas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
