package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/ferretec/internal/events"
	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/ports"
	"github.com/dejobratic/ferretec/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservablePublisher struct {
	publisher ports.SalePublisher
	metrics   *events.Metrics
}

func NewObservablePublisher(publisher ports.SalePublisher, metrics *events.Metrics) *ObservablePublisher {
	return &ObservablePublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *ObservablePublisher) PublishSaleCompleted(ctx context.Context, sale domain.Sale) error {
	ctx, span := telemetry.StartSpan(ctx, "SalePublisher.PublishSaleCompleted")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("sale.id", sale.ID),
		attribute.String("event.type", events.SaleCompletedType),
	)

	start := time.Now()
	err := p.publisher.PublishSaleCompleted(ctx, sale)
	p.metrics.RecordPublish(ctx, events.SaleCompletedType, time.Since(start).Seconds(), err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
