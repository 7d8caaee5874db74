// Package storage persists summaries of completed gather runs into a local
// SQLite archive, so report tooling can revisit them without re-gathering.
package storage

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/odvcencio/pharos/pkg/artifact"
)

//go:embed schema.sql
var schemaSQL string

// RunRecord is one archived run summary.
type RunRecord struct {
	ID            int64         `json:"id"`
	RunID         string        `json:"runId"`
	RequestedURL  string        `json:"requestedUrl"`
	FinalURL      string        `json:"finalUrl,omitempty"`
	GatherMode    string        `json:"gatherMode"`
	FetchTime     time.Time     `json:"fetchTime"`
	Duration      time.Duration `json:"duration"`
	ArtifactCount int           `json:"artifactCount"`
	ErrorCount    int           `json:"errorCount"`
	WarningCount  int           `json:"warningCount"`
	PageLoadError string        `json:"pageLoadError,omitempty"`
}

// Archive manages the run archive database.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive at path and applies the schema.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create archive directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open archive: %w", err)
	}
	// One writer at a time; WAL lets readers overlap it.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// SaveRun archives a completed run alongside its full artifact JSON.
func (a *Archive) SaveRun(record *RunRecord, run *artifact.SavedRun) error {
	artifactsJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("storage: encode run: %w", err)
	}
	result, err := a.db.Exec(`
		INSERT INTO runs (run_id, requested_url, final_url, gather_mode, fetch_time,
			duration_ms, artifact_count, error_count, warning_count, page_load_error, artifacts_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID,
		record.RequestedURL,
		record.FinalURL,
		record.GatherMode,
		record.FetchTime.UTC().Format(time.RFC3339Nano),
		record.Duration.Milliseconds(),
		record.ArtifactCount,
		record.ErrorCount,
		record.WarningCount,
		record.PageLoadError,
		artifactsJSON,
	)
	if err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}
	record.ID, err = result.LastInsertId()
	if err != nil {
		return err
	}
	return nil
}

// LoadRun restores the archived artifact JSON for a run id.
func (a *Archive) LoadRun(runID string) (*artifact.SavedRun, error) {
	var blob []byte
	err := a.db.QueryRow(`SELECT artifacts_json FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("storage: load run %q: %w", runID, err)
	}
	var run artifact.SavedRun
	if err := json.Unmarshal(blob, &run); err != nil {
		return nil, fmt.Errorf("storage: decode run %q: %w", runID, err)
	}
	return &run, nil
}

// RecentRuns lists the most recent archived runs, newest first.
func (a *Archive) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.Query(`
		SELECT id, run_id, requested_url, final_url, gather_mode, fetch_time,
			duration_ms, artifact_count, error_count, warning_count, page_load_error
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var record RunRecord
		var fetchTime string
		var durationMs int64
		if err := rows.Scan(&record.ID, &record.RunID, &record.RequestedURL, &record.FinalURL,
			&record.GatherMode, &fetchTime, &durationMs, &record.ArtifactCount,
			&record.ErrorCount, &record.WarningCount, &record.PageLoadError); err != nil {
			return nil, err
		}
		record.FetchTime, _ = time.Parse(time.RFC3339Nano, fetchTime)
		record.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close releases the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
