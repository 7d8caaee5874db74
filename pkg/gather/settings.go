package gather

// Throttling describes the simulated network and CPU conditions applied
// before a navigation.
type Throttling struct {
	RTTMs                  int     `yaml:"rtt_ms" json:"rttMs"`
	ThroughputKbps         float64 `yaml:"throughput_kbps" json:"throughputKbps"`
	CPUSlowdownMultiplier  float64 `yaml:"cpu_slowdown_multiplier" json:"cpuSlowdownMultiplier"`
	RequestLatencyMs       int     `yaml:"request_latency_ms" json:"requestLatencyMs"`
	DownloadThroughputKbps float64 `yaml:"download_throughput_kbps" json:"downloadThroughputKbps"`
	UploadThroughputKbps   float64 `yaml:"upload_throughput_kbps" json:"uploadThroughputKbps"`
}

// Settings is the fully layered configuration for a run. Values are resolved
// once (defaults < config file < explicit overrides) and never change after
// resolution.
type Settings struct {
	// BlankPage is the neutral page the driver parks on between navigations.
	BlankPage string `yaml:"blank_page" json:"blankPage"`

	// MaxWaitForLoadMs bounds how long a navigation waits for the load event.
	MaxWaitForLoadMs int `yaml:"max_wait_for_load_ms" json:"maxWaitForLoadMs"`
	// MaxWaitForFCPMs bounds how long a navigation waits for first paint.
	MaxWaitForFCPMs int `yaml:"max_wait_for_fcp_ms" json:"maxWaitForFcpMs"`

	// NetworkQuietThresholdMs and CPUQuietThresholdMs are the default quiet
	// windows a navigation waits for; individual navigations may override.
	NetworkQuietThresholdMs int `yaml:"network_quiet_threshold_ms" json:"networkQuietThresholdMs"`
	CPUQuietThresholdMs     int `yaml:"cpu_quiet_threshold_ms" json:"cpuQuietThresholdMs"`

	// ProtocolTimeoutMs is the default per-command protocol timeout.
	ProtocolTimeoutMs int `yaml:"protocol_timeout_ms" json:"protocolTimeoutMs"`

	Throttling          Throttling `yaml:"throttling" json:"throttling"`
	DisableThrottling   bool       `yaml:"disable_throttling" json:"disableThrottling"`
	DisableStorageReset bool       `yaml:"disable_storage_reset" json:"disableStorageReset"`

	// BlockedURLPatterns are substring patterns ("*" wildcards allowed) for
	// requests the browser should refuse during every navigation.
	BlockedURLPatterns []string `yaml:"blocked_url_patterns" json:"blockedUrlPatterns,omitempty"`

	// Audit narrowing filters, applied during configuration resolution.
	OnlyAudits     []string `yaml:"only_audits" json:"onlyAudits,omitempty"`
	OnlyCategories []string `yaml:"only_categories" json:"onlyCategories,omitempty"`
	SkipAudits     []string `yaml:"skip_audits" json:"skipAudits,omitempty"`

	// ArchivePath, when set, makes the runner persist a summary of every run
	// into a local archive database.
	ArchivePath string `yaml:"archive_path" json:"archivePath,omitempty"`
}
