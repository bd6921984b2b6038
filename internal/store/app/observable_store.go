package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/metrics"
	"github.com/dejobratic/ferretec/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableStore wraps a Catalog with spans, metrics and structured logs.
type ObservableStore struct {
	catalog Catalog
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableStore(catalog Catalog, logger *slog.Logger, metrics *metrics.Metrics) *ObservableStore {
	return &ObservableStore{
		catalog: catalog,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableStore) RegisterProduct(ctx context.Context, input RegisterProductInput) (domain.ProductInfo, error) {
	return observe(ctx, o, "register_product",
		[]attribute.KeyValue{attribute.String("product.name", input.Name)},
		func(ctx context.Context) (domain.ProductInfo, error) {
			return o.catalog.RegisterProduct(ctx, input)
		})
}

func (o *ObservableStore) RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (domain.CustomerRecord, error) {
	return observe(ctx, o, "register_customer",
		[]attribute.KeyValue{attribute.String("customer.email", input.Email)},
		func(ctx context.Context) (domain.CustomerRecord, error) {
			return o.catalog.RegisterCustomer(ctx, input)
		})
}

func (o *ObservableStore) ListProducts(ctx context.Context) []domain.ProductInfo {
	return o.catalog.ListProducts(ctx)
}

func (o *ObservableStore) ListCustomers(ctx context.Context) []domain.CustomerRecord {
	return o.catalog.ListCustomers(ctx)
}

func (o *ObservableStore) AddProductToCart(ctx context.Context, input CartInput) error {
	_, err := observe(ctx, o, "add_to_cart", cartAttributes(input),
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.catalog.AddProductToCart(ctx, input)
		})
	return err
}

func (o *ObservableStore) GetCartDetail(ctx context.Context, customerID int) (*CartDetail, error) {
	return observe(ctx, o, "get_cart_detail",
		[]attribute.KeyValue{attribute.Int("customer.id", customerID)},
		func(ctx context.Context) (*CartDetail, error) {
			return o.catalog.GetCartDetail(ctx, customerID)
		})
}

func (o *ObservableStore) UpdateCart(ctx context.Context, input CartInput) error {
	_, err := observe(ctx, o, "update_cart", cartAttributes(input),
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.catalog.UpdateCart(ctx, input)
		})
	return err
}

func (o *ObservableStore) RemoveFromCart(ctx context.Context, customerID, productID int) error {
	_, err := observe(ctx, o, "remove_from_cart",
		[]attribute.KeyValue{
			attribute.Int("customer.id", customerID),
			attribute.Int("product.id", productID),
		},
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.catalog.RemoveFromCart(ctx, customerID, productID)
		})
	return err
}

func (o *ObservableStore) Purchase(ctx context.Context, customerID int) (*domain.Sale, error) {
	sale, err := observe(ctx, o, "purchase",
		[]attribute.KeyValue{attribute.Int("customer.id", customerID)},
		func(ctx context.Context) (*domain.Sale, error) {
			return o.catalog.Purchase(ctx, customerID)
		})
	if sale != nil {
		o.metrics.RecordSale(ctx, sale.TotalItems, sale.Discount.IsPositive())
		o.logger.InfoContext(ctx, "sale completed",
			"sale_id", sale.ID,
			"customer_id", sale.CustomerID,
			"total_items", sale.TotalItems,
			"total_final", sale.TotalFinal.String(),
		)
	}
	return sale, err
}

func (o *ObservableStore) Sales(ctx context.Context) ([]domain.Sale, error) {
	return observe(ctx, o, "list_sales", nil, o.catalog.Sales)
}

func observe[T any](
	ctx context.Context,
	o *ObservableStore,
	operation string,
	attrs []attribute.KeyValue,
	fn func(context.Context) (T, error),
) (T, error) {
	ctx, span := telemetry.StartSpan(ctx, "Store."+operation)
	defer span.End()

	telemetry.AddSpanAttributes(span, append(attrs, attribute.String("operation", operation))...)

	start := time.Now()
	result, err := fn(ctx)
	outcome := domain.Kind(err)
	o.metrics.RecordOperation(ctx, operation, outcome, time.Since(start).Seconds())

	switch {
	case err == nil:
		telemetry.SetSpanSuccess(span)
	case errors.Is(err, domain.ErrPersistence):
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "store operation not persisted",
			"operation", operation,
			"error", err,
		)
	default:
		telemetry.RecordSpanError(span, err)
		o.logger.InfoContext(ctx, "store operation rejected",
			"operation", operation,
			"outcome", outcome,
			"reason", err.Error(),
		)
	}

	return result, err
}

func cartAttributes(input CartInput) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("customer.id", input.CustomerID),
		attribute.Int("product.id", input.ProductID),
		attribute.Int("cart.quantity", input.Quantity),
	}
}
