package ports

import (
	"context"

	"github.com/dejobratic/ferretec/internal/store/domain"
)

// Repository persists the catalog, the customer registry and the sales ledger.
// Products and customers are saved as whole collections; sales are append-only.
type Repository interface {
	Load(ctx context.Context) (Snapshot, error)
	SaveProducts(ctx context.Context, products []domain.ProductInfo) error
	SaveCustomers(ctx context.Context, customers []domain.CustomerRecord) error
	AppendSale(ctx context.Context, sale domain.Sale) error
	Sales(ctx context.Context) ([]domain.Sale, error)
}

// Snapshot is the persisted state read at startup. Skipped counts records that
// could not be decoded and were left out.
type Snapshot struct {
	Products  []domain.ProductInfo
	Customers []domain.CustomerRecord
	Skipped   int
}
