package audit

import "github.com/odvcencio/pharos/pkg/gather"

// FullPageScreenshotAuditID is infrastructure: it survives every narrowing
// filter because report rendering needs the screenshot regardless of which
// audits were requested.
const FullPageScreenshotAuditID = "full-page-screenshot"

// DefaultRegistry returns the built-in audit metadata set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Meta{
		ID:                "console-errors",
		Title:             "No browser errors logged to the console",
		RequiredArtifacts: []string{"ConsoleMessages"},
		SupportedModes:    []gather.Mode{gather.ModeTimespan, gather.ModeNavigation},
	})
	r.MustRegister(Meta{
		ID:                "image-alt",
		Title:             "Image elements have alt attributes",
		RequiredArtifacts: []string{"ImageElements"},
	})
	r.MustRegister(Meta{
		ID:                "font-size",
		Title:             "Document uses legible font sizes",
		RequiredArtifacts: []string{"FontSize"},
	})
	r.MustRegister(Meta{
		ID:                "network-requests",
		Title:             "Network requests",
		RequiredArtifacts: []string{"NetworkRecords"},
		SupportedModes:    []gather.Mode{gather.ModeTimespan, gather.ModeNavigation},
	})
	r.MustRegister(Meta{
		ID:                "meta-description",
		Title:             "Document has a meta description",
		RequiredArtifacts: []string{"MetaElements"},
	})
	r.MustRegister(Meta{
		ID:                "js-libraries",
		Title:             "Detected JavaScript libraries",
		RequiredArtifacts: []string{"Stacks"},
	})
	r.MustRegister(Meta{
		ID:                "script-elements",
		Title:             "Script elements on the page",
		RequiredArtifacts: []string{"ScriptElements"},
	})
	r.MustRegister(Meta{
		ID:                FullPageScreenshotAuditID,
		Title:             "Full-page screenshot",
		RequiredArtifacts: []string{"FullPageScreenshot"},
	})
	r.MustRegister(Meta{
		ID:     "manual-keyboard-review",
		Title:  "The page is navigable by keyboard",
		Manual: true,
	})
	return r
}

// DefaultCategories returns the built-in category layout.
func DefaultCategories() map[string]Category {
	return map[string]Category{
		"correctness": {
			Title: "Correctness",
			AuditRefs: []Ref{
				{ID: "console-errors", Weight: 1},
				{ID: "network-requests", Weight: 1, Group: "diagnostics"},
				{ID: "script-elements", Weight: 0, Group: "diagnostics"},
			},
		},
		"accessibility": {
			Title: "Accessibility",
			AuditRefs: []Ref{
				{ID: "image-alt", Weight: 3},
				{ID: "font-size", Weight: 2},
				{ID: "manual-keyboard-review", Weight: 0},
			},
		},
		"content": {
			Title: "Content",
			AuditRefs: []Ref{
				{ID: "meta-description", Weight: 1},
				{ID: "js-libraries", Weight: 0, Group: "diagnostics"},
			},
		},
	}
}

// DefaultGroups returns the built-in report groups.
func DefaultGroups() map[string]Group {
	return map[string]Group{
		"diagnostics": {Title: "Diagnostics"},
	}
}
