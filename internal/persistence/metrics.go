package persistence

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	operationDuration metric.Float64Histogram
	failures          metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.operationDuration, err = meter.Float64Histogram(
		"persistence_operation_duration_seconds",
		metric.WithDescription("Duration of data file reads and writes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create persistence_operation_duration histogram: %w", err)
	}

	m.failures, err = meter.Int64Counter(
		"persistence_failures_total",
		metric.WithDescription("Total number of failed data file operations"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create persistence_failures_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOperation(ctx context.Context, operation string, durationSeconds float64, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.operationDuration.Record(ctx, durationSeconds, attrs)
	if err != nil {
		m.failures.Add(ctx, 1, attrs)
	}
}
