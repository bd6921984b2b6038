package ports

import (
	"context"

	"github.com/dejobratic/ferretec/internal/store/domain"
)

// SalePublisher announces completed sales to downstream consumers.
type SalePublisher interface {
	PublishSaleCompleted(ctx context.Context, sale domain.Sale) error
}
