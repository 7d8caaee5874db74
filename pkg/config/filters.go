package config

import (
	"fmt"

	"github.com/odvcencio/pharos/pkg/audit"
)

// applyFilters runs the narrowing pipeline over a resolved plan. Each step
// is a pure function from plan to plan; the input plan value is never
// mutated in place.
func applyFilters(plan *ResolvedConfig, warnings *[]string) *ResolvedConfig {
	plan = filterArtifactsByMode(plan)
	plan = applyOnlySkipFilters(plan, warnings)
	plan = filterArtifactsByAudits(plan)
	plan = filterNavigations(plan)
	plan = filterAuditsByArtifacts(plan, warnings)
	plan = filterCategoriesAndGroups(plan)
	return plan
}

// filterArtifactsByMode drops collectors whose supported modes exclude the
// requested gather mode.
func filterArtifactsByMode(plan *ResolvedConfig) *ResolvedConfig {
	out := *plan
	out.Artifacts = nil
	for _, def := range plan.Artifacts {
		if def.Gatherer.Meta().SupportsMode(plan.GatherMode) {
			out.Artifacts = append(out.Artifacts, def)
		}
	}
	return &out
}

// applyOnlySkipFilters narrows the audit list per the explicit include and
// exclude settings. Infrastructure audits always survive.
func applyOnlySkipFilters(plan *ResolvedConfig, warnings *[]string) *ResolvedConfig {
	settings := plan.Settings
	if len(settings.OnlyAudits) == 0 && len(settings.OnlyCategories) == 0 && len(settings.SkipAudits) == 0 {
		return plan
	}

	known := make(map[string]bool, len(plan.Audits))
	for _, meta := range plan.Audits {
		known[meta.ID] = true
	}

	keep := make(map[string]bool)
	hasOnly := len(settings.OnlyAudits) > 0 || len(settings.OnlyCategories) > 0
	if hasOnly {
		for _, id := range settings.OnlyAudits {
			if !known[id] {
				*warnings = append(*warnings, fmt.Sprintf("unknown audit %q in onlyAudits", id))
				continue
			}
			keep[id] = true
		}
		for _, categoryID := range settings.OnlyCategories {
			category, ok := plan.Categories[categoryID]
			if !ok {
				*warnings = append(*warnings, fmt.Sprintf("unknown category %q in onlyCategories", categoryID))
				continue
			}
			for _, ref := range category.AuditRefs {
				keep[ref.ID] = true
			}
		}
	} else {
		for id := range known {
			keep[id] = true
		}
	}
	for _, id := range settings.SkipAudits {
		if !known[id] {
			*warnings = append(*warnings, fmt.Sprintf("unknown audit %q in skipAudits", id))
		}
		delete(keep, id)
	}
	keep[audit.FullPageScreenshotAuditID] = known[audit.FullPageScreenshotAuditID]

	out := *plan
	out.Audits = nil
	for _, meta := range plan.Audits {
		if keep[meta.ID] {
			out.Audits = append(out.Audits, meta)
		}
	}
	if len(settings.OnlyCategories) > 0 {
		only := make(map[string]bool, len(settings.OnlyCategories))
		for _, id := range settings.OnlyCategories {
			only[id] = true
		}
		out.Categories = make(map[string]audit.Category)
		for id, category := range plan.Categories {
			if only[id] {
				out.Categories[id] = category
			}
		}
	}
	return &out
}

// filterArtifactsByAudits keeps only collectors transitively required by a
// surviving audit. A plan with no audits at all is a pure gather plan and
// keeps everything.
func filterArtifactsByAudits(plan *ResolvedConfig) *ResolvedConfig {
	if len(plan.Audits) == 0 {
		return plan
	}

	required := make(map[string]bool)
	for _, meta := range plan.Audits {
		for _, artifactID := range meta.RequiredArtifacts {
			required[artifactID] = true
		}
	}

	// A required collector pulls in its own dependencies, recursively.
	var include func(def *ArtifactDefinition)
	include = func(def *ArtifactDefinition) {
		for _, dep := range def.Dependencies {
			if !required[dep.ID] {
				required[dep.ID] = true
				if provider := plan.Definition(dep.ID); provider != nil {
					include(provider)
				}
			}
		}
	}
	for _, def := range plan.Artifacts {
		if required[def.ID] {
			include(def)
		}
	}

	out := *plan
	out.Artifacts = nil
	for _, def := range plan.Artifacts {
		if required[def.ID] {
			out.Artifacts = append(out.Artifacts, def)
		}
	}
	return &out
}

// filterNavigations narrows each navigation to the surviving collectors and
// drops navigations left empty.
func filterNavigations(plan *ResolvedConfig) *ResolvedConfig {
	if plan.Navigations == nil {
		return plan
	}
	surviving := make(map[string]bool, len(plan.Artifacts))
	for _, def := range plan.Artifacts {
		surviving[def.ID] = true
	}

	out := *plan
	out.Navigations = nil
	for _, nav := range plan.Navigations {
		filtered := nav
		filtered.Artifacts = nil
		for _, def := range nav.Artifacts {
			if def != nil && surviving[def.ID] {
				filtered.Artifacts = append(filtered.Artifacts, def)
			}
		}
		if len(filtered.Artifacts) > 0 {
			out.Navigations = append(out.Navigations, filtered)
		}
	}
	return &out
}

// filterAuditsByArtifacts drops audits whose required artifacts are no
// longer collected, and audits that cannot run in the gather mode.
func filterAuditsByArtifacts(plan *ResolvedConfig, warnings *[]string) *ResolvedConfig {
	available := make(map[string]bool, len(plan.Artifacts))
	for _, def := range plan.Artifacts {
		available[def.ID] = true
	}

	out := *plan
	out.Audits = nil
	for _, meta := range plan.Audits {
		if !meta.SupportsMode(plan.GatherMode) {
			continue
		}
		missing := ""
		for _, artifactID := range meta.RequiredArtifacts {
			if !available[artifactID] {
				missing = artifactID
				break
			}
		}
		if missing != "" {
			*warnings = append(*warnings, fmt.Sprintf("audit %q dropped: artifact %q is not gathered", meta.ID, missing))
			continue
		}
		out.Audits = append(out.Audits, meta)
	}
	return &out
}

// filterCategoriesAndGroups prunes audit references to dropped audits,
// removes categories left empty or containing only manual audits, and keeps
// only the groups still referenced.
func filterCategoriesAndGroups(plan *ResolvedConfig) *ResolvedConfig {
	byID := make(map[string]audit.Meta, len(plan.Audits))
	for _, meta := range plan.Audits {
		byID[meta.ID] = meta
	}

	out := *plan
	out.Categories = make(map[string]audit.Category, len(plan.Categories))
	usedGroups := make(map[string]bool)
	for id, category := range plan.Categories {
		var refs []audit.Ref
		automated := false
		for _, ref := range category.AuditRefs {
			meta, ok := byID[ref.ID]
			if !ok {
				continue
			}
			refs = append(refs, ref)
			if !meta.Manual {
				automated = true
			}
		}
		if len(refs) == 0 || !automated {
			continue
		}
		filtered := category
		filtered.AuditRefs = refs
		out.Categories[id] = filtered
		for _, ref := range refs {
			if ref.Group != "" {
				usedGroups[ref.Group] = true
			}
		}
	}

	out.Groups = make(map[string]audit.Group)
	for id, group := range plan.Groups {
		if usedGroups[id] {
			out.Groups[id] = group
		}
	}
	return &out
}
