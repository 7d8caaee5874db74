package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder

	r.RunCompleted("navigation", "ok")
	r.ObservePhase("navigate", time.Second)
	r.CollectorFailed("ConsoleMessages")
	r.PageLoadError("NO_FCP")

	ctx, span := r.StartSpan(context.Background(), "noop")
	require.NotNil(t, span)
	span.End()
	assert.NotNil(t, ctx)
	assert.Nil(t, r.Registry())
}

func TestRecorderCountsByLabel(t *testing.T) {
	r := NewRecorder()

	r.RunCompleted("navigation", "ok")
	r.RunCompleted("navigation", "ok")
	r.RunCompleted("snapshot", "failed")
	r.CollectorFailed("Trace")
	r.PageLoadError("PAGE_HUNG")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.runs.WithLabelValues("navigation", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.runs.WithLabelValues("snapshot", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.collectorFailures.WithLabelValues("Trace")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.pageLoadErrors.WithLabelValues("PAGE_HUNG")))
}
