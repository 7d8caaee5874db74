package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedFieldsAccumulate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "runner", slog.LevelInfo)

	logger.WithRun("01TESTRUN").WithNavigation("default").Info("navigation started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "runner", line["component"])
	assert.Equal(t, "01TESTRUN", line["run_id"])
	assert.Equal(t, "default", line["navigation_id"])
	assert.Equal(t, "navigation started", line["msg"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "protocol", slog.LevelWarn)

	logger.Debug("frame received")
	logger.Info("command sent")
	assert.Zero(t, buf.Len())

	logger.Warn("command timed out")
	assert.NotZero(t, buf.Len())
}

func TestDiscardLoggerDropsOutput(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard().WithRun("x").Error("nothing to see")
	})
}
