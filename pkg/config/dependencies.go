package config

import (
	"time"

	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
)

// resolveArtifacts instantiates every referenced collector, resolves
// declared dependencies in strict forward order, and builds the navigation
// plans. Dependency lookup only sees collectors already resolved: earlier in
// the same navigation, or in an earlier navigation.
func resolveArtifacts(working *RawConfig, resolve gatherer.Resolver, settings gather.Settings) ([]*ArtifactDefinition, []NavigationPlan, error) {
	type entry struct {
		id       string
		gatherer string
	}
	var ordered []entry
	seenIDs := make(map[string]bool)

	appendEntry := func(id, gathererID string) {
		if seenIDs[id] {
			return
		}
		seenIDs[id] = true
		if gathererID == "" {
			gathererID = id
		}
		ordered = append(ordered, entry{id: id, gatherer: gathererID})
	}

	navIDs := make(map[string]bool)
	for _, nav := range working.Navigations {
		if nav.ID == "" {
			return nil, nil, newError("navigation with empty id")
		}
		if navIDs[nav.ID] {
			return nil, nil, newError("duplicate navigation id %q", nav.ID)
		}
		navIDs[nav.ID] = true
		for _, artifactID := range nav.Artifacts {
			appendEntry(artifactID, "")
		}
	}
	for _, raw := range working.Artifacts {
		if raw.ID == "" {
			return nil, nil, newError("artifact with empty id")
		}
		appendEntry(raw.ID, raw.Gatherer)
	}

	// Instantiate and validate each collector once.
	defs := make([]*ArtifactDefinition, 0, len(ordered))
	byID := make(map[string]*ArtifactDefinition, len(ordered))
	bySymbol := make(map[*gatherer.Symbol]*ArtifactDefinition, len(ordered))
	for _, e := range ordered {
		factory, err := resolve(e.gatherer)
		if err != nil {
			return nil, nil, newError("unknown collector %q for artifact %q", e.gatherer, e.id)
		}
		instance := factory()
		if instance == nil {
			return nil, nil, newError("collector %q produced no instance", e.gatherer)
		}
		meta := instance.Meta()
		if err := gatherer.ValidateMeta(e.id, meta); err != nil {
			return nil, nil, newError("%v", err)
		}

		def := &ArtifactDefinition{ID: e.id, Gatherer: instance}
		if len(meta.Dependencies) > 0 {
			def.Dependencies = make(map[string]Dependency, len(meta.Dependencies))
			for name, symbol := range meta.Dependencies {
				provider, ok := bySymbol[symbol]
				if !ok {
					return nil, nil, newError("Failed to find dependency %q for %q", symbol, e.id)
				}
				if err := checkDependencyModes(e.id, meta, provider); err != nil {
					return nil, nil, err
				}
				def.Dependencies[name] = Dependency{ID: provider.ID}
			}
		}

		defs = append(defs, def)
		byID[e.id] = def
		bySymbol[meta.Symbol] = def
	}

	// Build navigation plans over the resolved definitions.
	navigations := make([]NavigationPlan, 0, len(working.Navigations))
	for _, nav := range working.Navigations {
		plan := NavigationPlan{
			ID:                    nav.ID,
			BlankPage:             nav.BlankPage,
			LoadFailureMode:       LoadFailureMode(nav.LoadFailureMode),
			DisableThrottling:     nav.DisableThrottling,
			NetworkQuietThreshold: time.Duration(nav.NetworkQuietThresholdMs) * time.Millisecond,
			CPUQuietThreshold:     time.Duration(nav.CPUQuietThresholdMs) * time.Millisecond,
		}
		if plan.BlankPage == "" {
			plan.BlankPage = settings.BlankPage
		}
		switch plan.LoadFailureMode {
		case "":
			plan.LoadFailureMode = LoadFailureFatal
		case LoadFailureFatal, LoadFailureWarn:
		default:
			return nil, nil, newError("navigation %q has invalid load failure mode %q", nav.ID, nav.LoadFailureMode)
		}
		if nav.NetworkQuietThresholdMs == 0 {
			plan.NetworkQuietThreshold = time.Duration(settings.NetworkQuietThresholdMs) * time.Millisecond
		}
		if nav.CPUQuietThresholdMs == 0 {
			plan.CPUQuietThreshold = time.Duration(settings.CPUQuietThresholdMs) * time.Millisecond
		}
		for _, artifactID := range nav.Artifacts {
			plan.Artifacts = append(plan.Artifacts, byID[artifactID])
		}
		navigations = append(navigations, plan)
	}

	return defs, navigations, nil
}

// modeClass buckets a collector for the dependency compatibility rule.
type modeClass int

const (
	classNavigation modeClass = iota // supports navigation, may depend on anything
	classTimespanOnly
	classSnapshotOnly
	classMixed // timespan+snapshot without navigation
)

func classify(meta gatherer.Meta) modeClass {
	if meta.SupportsMode(gather.ModeNavigation) {
		return classNavigation
	}
	timespan := meta.SupportsMode(gather.ModeTimespan)
	snapshot := meta.SupportsMode(gather.ModeSnapshot)
	switch {
	case timespan && !snapshot:
		return classTimespanOnly
	case snapshot && !timespan:
		return classSnapshotOnly
	default:
		return classMixed
	}
}

// checkDependencyModes enforces the pairing rule: a timespan-only collector
// may depend only on a timespan-only collector, snapshot-only likewise, and
// a navigation-capable collector may depend on anything.
func checkDependencyModes(dependentID string, dependent gatherer.Meta, provider *ArtifactDefinition) error {
	dependentClass := classify(dependent)
	if dependentClass == classNavigation {
		return nil
	}
	providerClass := classify(provider.Gatherer.Meta())
	if dependentClass != classMixed && dependentClass == providerClass {
		return nil
	}
	return newError("Dependency %q for %q is invalid: gather mode support is incompatible", provider.ID, dependentID)
}
