// Package telemetry records gather pipeline metrics and traces: run counts,
// phase durations, collector failures, and per-phase spans.
package telemetry

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/odvcencio/pharos"

// Recorder owns the pipeline's metrics and tracer. A nil *Recorder is valid
// and records nothing, so wiring telemetry stays optional.
type Recorder struct {
	registry          *prometheus.Registry
	runs              *prometheus.CounterVec
	phaseDuration     *prometheus.HistogramVec
	collectorFailures *prometheus.CounterVec
	pageLoadErrors    *prometheus.CounterVec
	tracer            trace.Tracer
}

// NewRecorder builds a recorder with its own prometheus registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharos_runs_total",
			Help: "Gather runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pharos_phase_duration_seconds",
			Help:    "Duration of orchestrator phases.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"phase"}),
		collectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharos_collector_failures_total",
			Help: "Collector hook failures captured as artifact errors.",
		}, []string{"collector"}),
		pageLoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharos_page_load_errors_total",
			Help: "Navigation failures by classification code.",
		}, []string{"code"}),
		tracer: otel.Tracer(tracerName),
	}
	r.registry.MustRegister(r.runs, r.phaseDuration, r.collectorFailures, r.pageLoadErrors)
	return r
}

// Registry exposes the metrics registry for scraping or test inspection.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RunCompleted counts one finished run.
func (r *Recorder) RunCompleted(mode, outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(mode, outcome).Inc()
}

// ObservePhase records one phase duration.
func (r *Recorder) ObservePhase(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// CollectorFailed counts one captured collector error.
func (r *Recorder) CollectorFailed(collector string) {
	if r == nil {
		return
	}
	r.collectorFailures.WithLabelValues(collector).Inc()
}

// PageLoadError counts one classified navigation failure.
func (r *Recorder) PageLoadError(code string) {
	if r == nil {
		return
	}
	r.pageLoadErrors.WithLabelValues(code).Inc()
}

// StartSpan opens a pipeline span. With a nil recorder it returns a no-op
// span.
func (r *Recorder) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if r == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// InitTracing installs a stdout trace exporter on the global provider and
// returns it for shutdown. Intended for CLI debugging runs.
func InitTracing(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider, nil
}
