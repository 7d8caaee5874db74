// Package config resolves a loosely specified raw configuration into a
// validated, immutable execution plan: concrete collector instances with
// their dependencies checked, filtered down to the requested gather mode and
// the audits that will actually run.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/pharos/pkg/audit"
	"github.com/odvcencio/pharos/pkg/gather"
)

// ExtendsDefault names the built-in base configuration.
const ExtendsDefault = "default"

// PluginPrefix is the required name prefix for configuration plugins.
const PluginPrefix = "pharos-plugin-"

// RawConfig is the caller-supplied configuration before resolution. All
// fields are optional; omitted ones fall back to the built-in defaults when
// the config extends "default".
type RawConfig struct {
	Extends     string                    `yaml:"extends,omitempty"`
	Plugins     []string                  `yaml:"plugins,omitempty"`
	Artifacts   []RawArtifact             `yaml:"artifacts,omitempty"`
	Navigations []RawNavigation           `yaml:"navigations,omitempty"`
	Audits      []string                  `yaml:"audits,omitempty"`
	Categories  map[string]audit.Category `yaml:"categories,omitempty"`
	Groups      map[string]audit.Group    `yaml:"groups,omitempty"`
	Settings    *gather.Settings          `yaml:"settings,omitempty"`
}

// RawArtifact names one collector to run. Gatherer defaults to ID when the
// registry id and artifact id coincide, which they do for every built-in.
type RawArtifact struct {
	ID       string `yaml:"id"`
	Gatherer string `yaml:"gatherer,omitempty"`
}

// RawNavigation describes one page load and the artifacts collected during
// it, in dependency order.
type RawNavigation struct {
	ID                      string   `yaml:"id"`
	Artifacts               []string `yaml:"artifacts"`
	BlankPage               string   `yaml:"blank_page,omitempty"`
	LoadFailureMode         string   `yaml:"load_failure_mode,omitempty"`
	DisableThrottling       bool     `yaml:"disable_throttling,omitempty"`
	NetworkQuietThresholdMs int      `yaml:"network_quiet_threshold_ms,omitempty"`
	CPUQuietThresholdMs     int      `yaml:"cpu_quiet_threshold_ms,omitempty"`
}

// Load reads a raw configuration from a YAML file.
func Load(path string) (*RawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var raw RawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &raw, nil
}

// clone deep-copies a raw configuration through its YAML form so resolution
// never mutates, or shares nested objects with, the caller's value.
func (c *RawConfig) clone() (*RawConfig, error) {
	if c == nil {
		return nil, nil
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: clone: %w", err)
	}
	var out RawConfig
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("config: clone: %w", err)
	}
	return &out, nil
}

// DefaultRawConfig is the built-in base configuration: every built-in
// collector in one navigation, dependency providers listed first.
func DefaultRawConfig() *RawConfig {
	return &RawConfig{
		Navigations: []RawNavigation{{
			ID: "default",
			Artifacts: []string{
				"ConsoleMessages",
				"NetworkRecords",
				"MainDocumentContent",
				"ScriptElements",
				"ImageElements",
				"MetaElements",
				"FontSize",
				"Stacks",
				"FullPageScreenshot",
			},
			LoadFailureMode: string(LoadFailureFatal),
		}},
		Audits: []string{
			"console-errors",
			"image-alt",
			"font-size",
			"network-requests",
			"meta-description",
			"js-libraries",
			"script-elements",
			"full-page-screenshot",
			"manual-keyboard-review",
		},
		Categories: audit.DefaultCategories(),
		Groups:     audit.DefaultGroups(),
	}
}

// DefaultSettings is the bottom layer of settings resolution.
func DefaultSettings() gather.Settings {
	return gather.Settings{
		BlankPage:               "about:blank",
		MaxWaitForLoadMs:        45_000,
		MaxWaitForFCPMs:         15_000,
		NetworkQuietThresholdMs: 1_000,
		CPUQuietThresholdMs:     1_000,
		ProtocolTimeoutMs:       30_000,
		Throttling: gather.Throttling{
			RTTMs:                  150,
			CPUSlowdownMultiplier:  4,
			DownloadThroughputKbps: 1_638.4,
			UploadThroughputKbps:   675,
		},
	}
}
