package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/odvcencio/pharos/pkg/gather"
)

// SavedRun is the on-disk form of a gathered run: everything the scoring
// layer needs to audit without re-gathering.
type SavedRun struct {
	RunID        string            `json:"runId"`
	RequestedURL string            `json:"requestedUrl"`
	FinalURL     string            `json:"finalUrl,omitempty"`
	GatherMode   gather.Mode       `json:"gatherMode"`
	FetchTime    time.Time         `json:"fetchTime"`
	Settings     gather.Settings   `json:"settings"`
	Artifacts    map[string]Result `json:"artifacts"`
	Warnings     []string          `json:"warnings,omitempty"`
	Timing       []TimingEntry     `json:"timing,omitempty"`
}

// TimingEntry records how long a named pipeline step took.
type TimingEntry struct {
	Name       string        `json:"name"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Save writes the run to path as indented JSON, creating parent directories
// as needed.
func (s *SavedRun) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: encode run: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("artifact: create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write run: %w", err)
	}
	return nil
}

// LoadRun reads a run previously written by Save.
func LoadRun(path string) (*SavedRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read run: %w", err)
	}
	var run SavedRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("artifact: decode run: %w", err)
	}
	if run.Artifacts == nil {
		run.Artifacts = make(map[string]Result)
	}
	return &run, nil
}
