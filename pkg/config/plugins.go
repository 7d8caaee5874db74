package config

import (
	"strings"

	"github.com/odvcencio/pharos/pkg/audit"
)

// applyPlugins merges each named plugin's configuration fragment into the
// working config. A plugin contributes audits, collectors, and categories;
// its category keys must not collide with existing ones.
func applyPlugins(working *RawConfig, resolve PluginResolver) error {
	if len(working.Plugins) == 0 {
		return nil
	}
	if resolve == nil {
		return newError("config names plugins but no plugin resolver is configured")
	}

	for _, name := range working.Plugins {
		if !strings.HasPrefix(name, PluginPrefix) {
			return newError("plugin name %q must start with %q", name, PluginPrefix)
		}
		fragment, err := resolve(name)
		if err != nil {
			return newError("load plugin %q: %v", name, err)
		}
		if fragment == nil {
			return newError("plugin %q resolved to nothing", name)
		}

		working.Artifacts = append(working.Artifacts, fragment.Artifacts...)
		working.Navigations = append(working.Navigations, fragment.Navigations...)
		working.Audits = appendUnique(working.Audits, fragment.Audits)

		for key, category := range fragment.Categories {
			if _, exists := working.Categories[key]; exists {
				return newError("plugin %q category %q collides with an existing category", name, key)
			}
			if working.Categories == nil {
				working.Categories = make(map[string]audit.Category)
			}
			working.Categories[key] = category
		}
		for key, group := range fragment.Groups {
			if _, exists := working.Groups[key]; exists {
				return newError("plugin %q group %q collides with an existing group", name, key)
			}
			if working.Groups == nil {
				working.Groups = make(map[string]audit.Group)
			}
			working.Groups[key] = group
		}
	}
	return nil
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, id := range base {
		seen[id] = true
	}
	for _, id := range extra {
		if !seen[id] {
			seen[id] = true
			base = append(base, id)
		}
	}
	return base
}
