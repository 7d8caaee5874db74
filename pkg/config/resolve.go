package config

import (
	"path/filepath"

	"dario.cat/mergo"

	"github.com/odvcencio/pharos/pkg/audit"
	"github.com/odvcencio/pharos/pkg/gather"
	"github.com/odvcencio/pharos/pkg/gatherer"
	"github.com/odvcencio/pharos/pkg/gatherer/gatherers"
)

// PluginResolver loads a plugin's configuration fragment by name.
type PluginResolver func(name string) (*RawConfig, error)

// Options carries the resolution context: the requested gather mode plus the
// injected registries. Nil registries fall back to the built-ins.
type Options struct {
	GatherMode        gather.Mode
	ConfigPath        string
	SettingsOverrides *gather.Settings
	Gatherers         gatherer.Resolver
	Audits            audit.Resolver
	Plugins           PluginResolver
}

// Resolve turns a raw configuration into a validated execution plan. The
// input is never mutated; the returned plan shares no nested objects with
// it. Validation failures are fatal *Error values; recoverable oddities are
// returned as warnings.
func Resolve(raw *RawConfig, opts Options) (*ResolvedConfig, []string, error) {
	if !opts.GatherMode.Valid() {
		return nil, nil, newError("invalid gather mode %q", opts.GatherMode)
	}
	if opts.ConfigPath != "" && !filepath.IsAbs(opts.ConfigPath) {
		return nil, nil, newError("configPath must be an absolute path, got %q", opts.ConfigPath)
	}
	if opts.Gatherers == nil {
		opts.Gatherers = gatherers.DefaultRegistry().Resolver()
	}
	if opts.Audits == nil {
		opts.Audits = audit.DefaultRegistry().Resolver()
	}

	if raw == nil {
		raw = &RawConfig{Extends: ExtendsDefault}
	}
	working, err := raw.clone()
	if err != nil {
		return nil, nil, err
	}

	if working.Extends != "" {
		if working.Extends != ExtendsDefault {
			return nil, nil, newError("config can only extend %q, got %q", ExtendsDefault, working.Extends)
		}
		working = mergeRaw(DefaultRawConfig(), working)
	}

	if err := applyPlugins(working, opts.Plugins); err != nil {
		return nil, nil, err
	}

	settings := DefaultSettings()
	if working.Settings != nil {
		if err := mergo.Merge(&settings, *working.Settings, mergo.WithOverride); err != nil {
			return nil, nil, newError("merge config settings: %v", err)
		}
	}
	if opts.SettingsOverrides != nil {
		if err := mergo.Merge(&settings, *opts.SettingsOverrides, mergo.WithOverride); err != nil {
			return nil, nil, newError("merge settings overrides: %v", err)
		}
	}

	defs, navigations, err := resolveArtifacts(working, opts.Gatherers, settings)
	if err != nil {
		return nil, nil, err
	}

	audits, err := resolveAudits(working.Audits, opts.Audits)
	if err != nil {
		return nil, nil, err
	}

	plan := &ResolvedConfig{
		GatherMode:  opts.GatherMode,
		Artifacts:   defs,
		Navigations: navigations,
		Audits:      audits,
		Categories:  working.Categories,
		Groups:      working.Groups,
		Settings:    settings,
	}
	if opts.GatherMode != gather.ModeNavigation {
		plan.Navigations = nil
	}

	var warnings []string
	plan = applyFilters(plan, &warnings)
	return plan, warnings, nil
}

// mergeRaw lays override on top of base: non-empty list fields replace,
// map fields merge key-by-key with override winning.
func mergeRaw(base, override *RawConfig) *RawConfig {
	out := *base
	out.Extends = ""
	out.Plugins = override.Plugins
	if len(override.Artifacts) > 0 {
		out.Artifacts = override.Artifacts
	}
	if len(override.Navigations) > 0 {
		out.Navigations = override.Navigations
	}
	if len(override.Audits) > 0 {
		out.Audits = override.Audits
	}
	if len(override.Categories) > 0 {
		if out.Categories == nil {
			out.Categories = make(map[string]audit.Category)
		}
		for key, category := range override.Categories {
			out.Categories[key] = category
		}
	}
	if len(override.Groups) > 0 {
		if out.Groups == nil {
			out.Groups = make(map[string]audit.Group)
		}
		for key, group := range override.Groups {
			out.Groups[key] = group
		}
	}
	if override.Settings != nil {
		out.Settings = override.Settings
	}
	return &out
}

func resolveAudits(ids []string, resolver audit.Resolver) ([]audit.Meta, error) {
	seen := make(map[string]bool, len(ids))
	metas := make([]audit.Meta, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		meta, err := resolver(id)
		if err != nil {
			return nil, newError("unknown audit %q", id)
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
