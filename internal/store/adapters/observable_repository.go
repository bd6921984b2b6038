package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/ferretec/internal/persistence"
	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/ports"
	"github.com/dejobratic/ferretec/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableRepository struct {
	repo    ports.Repository
	metrics *persistence.Metrics
}

func NewObservableRepository(repo ports.Repository, metrics *persistence.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Load(ctx context.Context) (ports.Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "Repository.Load")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("operation", "load"))

	start := time.Now()
	snapshot, err := r.repo.Load(ctx)
	r.metrics.RecordOperation(ctx, "load", time.Since(start).Seconds(), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return ports.Snapshot{}, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.Int("result.products", len(snapshot.Products)),
		attribute.Int("result.customers", len(snapshot.Customers)),
		attribute.Int("result.skipped", snapshot.Skipped),
	)
	telemetry.SetSpanSuccess(span)
	return snapshot, nil
}

func (r *ObservableRepository) SaveProducts(ctx context.Context, products []domain.ProductInfo) error {
	return r.observeWrite(ctx, "save_products", len(products), func(ctx context.Context) error {
		return r.repo.SaveProducts(ctx, products)
	})
}

func (r *ObservableRepository) SaveCustomers(ctx context.Context, customers []domain.CustomerRecord) error {
	return r.observeWrite(ctx, "save_customers", len(customers), func(ctx context.Context) error {
		return r.repo.SaveCustomers(ctx, customers)
	})
}

func (r *ObservableRepository) AppendSale(ctx context.Context, sale domain.Sale) error {
	return r.observeWrite(ctx, "append_sale", 1, func(ctx context.Context) error {
		return r.repo.AppendSale(ctx, sale)
	})
}

func (r *ObservableRepository) Sales(ctx context.Context) ([]domain.Sale, error) {
	ctx, span := telemetry.StartSpan(ctx, "Repository.Sales")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("operation", "read_sales"))

	start := time.Now()
	sales, err := r.repo.Sales(ctx)
	r.metrics.RecordOperation(ctx, "read_sales", time.Since(start).Seconds(), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(sales)))
	telemetry.SetSpanSuccess(span)
	return sales, nil
}

func (r *ObservableRepository) observeWrite(ctx context.Context, operation string, records int, write func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "Repository."+operation)
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("operation", operation),
		attribute.Int("records", records),
	)

	start := time.Now()
	err := write(ctx)
	r.metrics.RecordOperation(ctx, operation, time.Since(start).Seconds(), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
