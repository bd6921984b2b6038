package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/ports"
)

// Repository provides an in-memory store useful for local development and tests.
// Nothing survives a restart.
type Repository struct {
	mu        sync.RWMutex
	products  []domain.ProductInfo
	customers []domain.CustomerRecord
	sales     []domain.Sale
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Load returns copies of everything saved so far.
func (r *Repository) Load(_ context.Context) (ports.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return ports.Snapshot{
		Products:  slices.Clone(r.products),
		Customers: cloneCustomers(r.customers),
	}, nil
}

// SaveProducts replaces the stored catalog.
func (r *Repository) SaveProducts(_ context.Context, products []domain.ProductInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = slices.Clone(products)
	return nil
}

// SaveCustomers replaces the stored customer registry.
func (r *Repository) SaveCustomers(_ context.Context, customers []domain.CustomerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers = cloneCustomers(customers)
	return nil
}

// AppendSale adds a sale to the ledger.
func (r *Repository) AppendSale(_ context.Context, sale domain.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales = append(r.sales, sale)
	return nil
}

// Sales returns the ledger in append order.
func (r *Repository) Sales(_ context.Context) ([]domain.Sale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sales), nil
}

func cloneCustomers(in []domain.CustomerRecord) []domain.CustomerRecord {
	out := make([]domain.CustomerRecord, len(in))
	for i, rec := range in {
		rec.Cart = slices.Clone(rec.Cart)
		out[i] = rec
	}
	return out
}
