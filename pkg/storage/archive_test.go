package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/pharos/pkg/artifact"
	"github.com/odvcencio/pharos/pkg/gather"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func sampleRun(runID string) *artifact.SavedRun {
	return &artifact.SavedRun{
		RunID:        runID,
		RequestedURL: "https://example.com/",
		FinalURL:     "https://example.com/home",
		GatherMode:   gather.ModeNavigation,
		FetchTime:    time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
		Artifacts: map[string]artifact.Result{
			"MainDocumentContent": artifact.Value("<html></html>"),
			"ConsoleMessages":     artifact.Failure(errors.New("log domain unavailable")),
		},
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	archive := openTestArchive(t)

	run := sampleRun("01ARCHIVE")
	record := &RunRecord{
		RunID:         run.RunID,
		RequestedURL:  run.RequestedURL,
		FinalURL:      run.FinalURL,
		GatherMode:    string(run.GatherMode),
		FetchTime:     run.FetchTime,
		Duration:      3 * time.Second,
		ArtifactCount: 2,
		ErrorCount:    1,
	}
	require.NoError(t, archive.SaveRun(record, run))
	assert.NotZero(t, record.ID)

	restored, err := archive.LoadRun("01ARCHIVE")
	require.NoError(t, err)
	assert.Equal(t, run.RunID, restored.RunID)
	assert.Equal(t, run.GatherMode, restored.GatherMode)

	doc, ok := restored.Artifacts["MainDocumentContent"]
	require.True(t, ok)
	value, err := doc.Get()
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", value)
	assert.True(t, restored.Artifacts["ConsoleMessages"].IsError())
}

func TestRecentRunsNewestFirst(t *testing.T) {
	archive := openTestArchive(t)

	for i, runID := range []string{"01FIRST", "02SECOND", "03THIRD"} {
		run := sampleRun(runID)
		record := &RunRecord{
			RunID:        runID,
			RequestedURL: run.RequestedURL,
			GatherMode:   string(run.GatherMode),
			FetchTime:    run.FetchTime.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, archive.SaveRun(record, run))
	}

	records, err := archive.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "03THIRD", records[0].RunID)
	assert.Equal(t, "02SECOND", records[1].RunID)
}

func TestLoadRunMissingID(t *testing.T) {
	archive := openTestArchive(t)
	_, err := archive.LoadRun("does-not-exist")
	require.Error(t, err)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	archive := openTestArchive(t)
	run := sampleRun("01DUP")
	record := &RunRecord{RunID: "01DUP", GatherMode: "navigation", FetchTime: time.Now()}
	require.NoError(t, archive.SaveRun(record, run))

	again := &RunRecord{RunID: "01DUP", GatherMode: "navigation", FetchTime: time.Now()}
	require.Error(t, archive.SaveRun(again, run))
}
