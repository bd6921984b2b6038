package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
	unitsSold         metric.Int64Counter
	discountedSales   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.operationsTotal, err = meter.Int64Counter(
		"store_operations_total",
		metric.WithDescription("Total number of store operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create store_operations_total counter: %w", err)
	}

	m.operationDuration, err = meter.Float64Histogram(
		"store_operation_duration_seconds",
		metric.WithDescription("Duration of store operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create store_operation_duration histogram: %w", err)
	}

	m.unitsSold, err = meter.Int64Counter(
		"sales_units_total",
		metric.WithDescription("Total number of units sold"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sales_units_total counter: %w", err)
	}

	m.discountedSales, err = meter.Int64Counter(
		"sales_discounts_total",
		metric.WithDescription("Total number of sales that earned the bulk discount"),
		metric.WithUnit("{sale}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sales_discounts_total counter: %w", err)
	}

	return m, nil
}

// RecordOperation counts one store operation; outcome is "success" or an error kind.
func (m *Metrics) RecordOperation(ctx context.Context, operation, outcome string, durationSeconds float64) {
	m.operationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	m.operationDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

func (m *Metrics) RecordSale(ctx context.Context, units int, discounted bool) {
	m.unitsSold.Add(ctx, int64(units))
	if discounted {
		m.discountedSales.Add(ctx, 1)
	}
}
