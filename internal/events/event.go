package events

import (
	"time"

	"github.com/dejobratic/ferretec/internal/store/domain"
)

// SaleCompletedType names the event emitted after a purchase is persisted.
const SaleCompletedType = "sale.completed"

// SaleCompleted is the message body published for every persisted sale.
type SaleCompleted struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Sale       domain.Sale `json:"venta"`
}

func NewSaleCompleted(sale domain.Sale, at time.Time) SaleCompleted {
	return SaleCompleted{
		Type:       SaleCompletedType,
		OccurredAt: at.UTC(),
		Sale:       sale,
	}
}
