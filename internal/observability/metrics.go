package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics carries the ETL instruments. Instruments resolve through
// the global meter provider, so construction is safe before the Manager
// installs it.
type PipelineMetrics struct {
	runs     metric.Int64Counter
	records  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewPipelineMetrics registers the ETL instruments.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter("github.com/Additional-Code/edibridge/etl")

	runs, err := meter.Int64Counter("etl_runs_total",
		metric.WithDescription("Completed ETL runs by mode and outcome"))
	if err != nil {
		return nil, err
	}

	records, err := meter.Int64Counter("etl_records_total",
		metric.WithDescription("Processed inbound records by outcome"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("etl_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of ETL runs"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{runs: runs, records: records, duration: duration}, nil
}

// ObserveRun records one completed run.
func (m *PipelineMetrics) ObserveRun(ctx context.Context, mode string, succeeded, failed int, elapsed time.Duration, runFailed bool) {
	if m == nil {
		return
	}

	outcome := "success"
	if runFailed {
		outcome = "failure"
	}
	modeAttr := attribute.String("mode", mode)

	m.runs.Add(ctx, 1, metric.WithAttributes(modeAttr, attribute.String("outcome", outcome)))
	m.records.Add(ctx, int64(succeeded), metric.WithAttributes(modeAttr, attribute.String("result", "succeeded")))
	m.records.Add(ctx, int64(failed), metric.WithAttributes(modeAttr, attribute.String("result", "failed")))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(modeAttr))
}
