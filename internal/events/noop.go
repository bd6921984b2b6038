package events

import (
	"context"
	"log/slog"

	"github.com/dejobratic/ferretec/internal/store/domain"
)

// NoopPublisher logs sale events without sending them anywhere. Used when no
// broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (n *NoopPublisher) PublishSaleCompleted(ctx context.Context, sale domain.Sale) error {
	n.logger.DebugContext(ctx, "event::sale_completed",
		"sale_id", sale.ID,
		"customer_id", sale.CustomerID,
	)
	return nil
}
