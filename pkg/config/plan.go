package config

import (
	"time"

	"github.com/odvcencio/pharos/pkg/audit"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
)

// LoadFailureMode controls whether a failed page load aborts the whole run
// or is recorded and skipped past.
type LoadFailureMode string

const (
	LoadFailureFatal LoadFailureMode = "fatal"
	LoadFailureWarn  LoadFailureMode = "warn"
)

// Dependency points a dependency name at the artifact definition providing
// it.
type Dependency struct {
	ID string
}

// ArtifactDefinition is one resolved collector: a concrete instance plus its
// resolved dependencies. Identity is ID, unique within a plan.
type ArtifactDefinition struct {
	ID           string
	Gatherer     gatherer.Gatherer
	Dependencies map[string]Dependency
}

// NavigationPlan is one resolved navigation: the ordered artifact
// definitions it collects and its load policy.
type NavigationPlan struct {
	ID                    string
	Artifacts             []*ArtifactDefinition
	BlankPage             string
	LoadFailureMode       LoadFailureMode
	DisableThrottling     bool
	NetworkQuietThreshold time.Duration
	CPUQuietThreshold     time.Duration
}

// ResolvedConfig is the immutable execution plan handed to the orchestrator.
// Navigations is nil outside navigation mode; Artifacts always carries the
// flat definition list in execution order.
type ResolvedConfig struct {
	GatherMode  gather.Mode
	Artifacts   []*ArtifactDefinition
	Navigations []NavigationPlan
	Audits      []audit.Meta
	Categories  map[string]audit.Category
	Groups      map[string]audit.Group
	Settings    gather.Settings
}

// Definition returns the artifact definition with the given id.
func (c *ResolvedConfig) Definition(id string) *ArtifactDefinition {
	for _, def := range c.Artifacts {
		if def.ID == id {
			return def
		}
	}
	return nil
}
