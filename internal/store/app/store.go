package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Catalog is the set of use cases exposed to the API adapter.
type Catalog interface {
	RegisterProduct(ctx context.Context, input RegisterProductInput) (domain.ProductInfo, error)
	RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (domain.CustomerRecord, error)
	ListProducts(ctx context.Context) []domain.ProductInfo
	ListCustomers(ctx context.Context) []domain.CustomerRecord
	AddProductToCart(ctx context.Context, input CartInput) error
	GetCartDetail(ctx context.Context, customerID int) (*CartDetail, error)
	UpdateCart(ctx context.Context, input CartInput) error
	RemoveFromCart(ctx context.Context, customerID, productID int) error
	Purchase(ctx context.Context, customerID int) (*domain.Sale, error)
	Sales(ctx context.Context) ([]domain.Sale, error)
}

// RegisterProductInput captures payload for registering a product.
type RegisterProductInput struct {
	Name  string          `json:"nombre"`
	Price decimal.Decimal `json:"precio"`
	Stock int             `json:"stock"`
}

// RegisterCustomerInput captures payload for registering a customer.
type RegisterCustomerInput struct {
	Name  string `json:"nombre"`
	Email string `json:"email"`
}

// CartInput identifies a cart line change.
type CartInput struct {
	CustomerID int `json:"cliente_id"`
	ProductID  int `json:"producto_id"`
	Quantity   int `json:"cantidad"`
}

// CartDetail is a customer's cart priced against the current catalog.
type CartDetail struct {
	Customer   domain.CustomerRecord `json:"cliente"`
	Items      []domain.SaleLine     `json:"carrito"`
	Total      decimal.Decimal       `json:"total"`
	TotalItems int                   `json:"total_productos"`
}

// LoadSummary reports what Load restored.
type LoadSummary struct {
	Products  int
	Customers int
	Skipped   int
}

// Store owns the catalog and the customer registry. Every operation holds the
// store lock for its whole duration, so operations never interleave.
type Store struct {
	mu     sync.Mutex
	repo   ports.Repository
	events ports.SalePublisher
	logger *slog.Logger

	now       func() time.Time
	newSaleID func() string

	products       []*domain.Product
	customers      []*domain.Customer
	nextProductID  int
	nextCustomerID int
}

type Option func(*Store)

// WithClock overrides the clock used to date sales.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSaleIDs overrides the sale id generator.
func WithSaleIDs(next func() string) Option {
	return func(s *Store) {
		s.newSaleID = next
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore wires an empty store. Call Load to restore persisted state.
func NewStore(repo ports.Repository, events ports.SalePublisher, opts ...Option) *Store {
	s := &Store{
		repo:           repo,
		events:         events,
		logger:         slog.Default(),
		now:            time.Now,
		newSaleID:      uuid.NewString,
		nextProductID:  1,
		nextCustomerID: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the repository snapshot.
func (s *Store) Load(ctx context.Context) (LoadSummary, error) {
	snapshot, err := s.repo.Load(ctx)
	if err != nil {
		return LoadSummary{}, fmt.Errorf("load store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make([]*domain.Product, 0, len(snapshot.Products))
	s.nextProductID = 1
	for _, info := range snapshot.Products {
		s.products = append(s.products, domain.RestoreProduct(info))
		s.nextProductID = max(s.nextProductID, info.ID+1)
	}

	s.customers = make([]*domain.Customer, 0, len(snapshot.Customers))
	s.nextCustomerID = 1
	for _, rec := range snapshot.Customers {
		s.customers = append(s.customers, domain.RestoreCustomer(rec))
		s.nextCustomerID = max(s.nextCustomerID, rec.ID+1)
	}

	return LoadSummary{
		Products:  len(s.products),
		Customers: len(s.customers),
		Skipped:   snapshot.Skipped,
	}, nil
}

// RegisterProduct adds a product with the next product id.
func (s *Store) RegisterProduct(ctx context.Context, input RegisterProductInput) (domain.ProductInfo, error) {
	if err := domain.ValidateProduct(input.Name, input.Price, input.Stock); err != nil {
		return domain.ProductInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.products {
		if domain.SameProductName(p.Name(), input.Name) {
			return domain.ProductInfo{}, domain.Duplicatef("a product named %q already exists", p.Name())
		}
	}

	product := domain.NewProduct(s.nextProductID, input.Name, input.Price, input.Stock)
	s.products = append(s.products, product)
	s.nextProductID++

	return product.Info(), s.saveProducts(ctx)
}

// RegisterCustomer adds a customer with the next customer id and an empty cart.
func (s *Store) RegisterCustomer(ctx context.Context, input RegisterCustomerInput) (domain.CustomerRecord, error) {
	if err := domain.ValidateCustomer(input.Name, input.Email); err != nil {
		return domain.CustomerRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.customers {
		if domain.SameEmail(c.Email(), input.Email) {
			return domain.CustomerRecord{}, domain.Duplicatef("email %s is already registered", c.Email())
		}
	}

	customer := domain.NewCustomer(s.nextCustomerID, input.Name, input.Email)
	s.customers = append(s.customers, customer)
	s.nextCustomerID++

	return customer.Record(), s.saveCustomers(ctx)
}

func (s *Store) ListProducts(_ context.Context) []domain.ProductInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productInfos()
}

func (s *Store) ListCustomers(_ context.Context) []domain.CustomerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerRecords()
}

// AddProductToCart adds qty units to the customer's cart. The stock check does not
// reserve anything; Purchase validates again.
func (s *Store) AddProductToCart(ctx context.Context, input CartInput) error {
	if input.Quantity <= 0 {
		return domain.Validationf("quantity must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, product, err := s.resolve(input.CustomerID, input.ProductID)
	if err != nil {
		return err
	}
	if !product.HasSufficientStock(input.Quantity) {
		return domain.InsufficientStockf("insufficient stock for %s: %d available", product.Name(), product.Stock())
	}
	if customer.CartTotalItems() > math.MaxInt-input.Quantity {
		return domain.Validationf("cart of customer %d cannot hold %d more units", customer.ID(), input.Quantity)
	}

	customer.AddToCart(product.ID(), input.Quantity)
	return s.saveCustomers(ctx)
}

// GetCartDetail prices the customer's cart. Lines whose product no longer
// resolves are left out of the detail.
func (s *Store) GetCartDetail(_ context.Context, customerID int) (*CartDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer := s.findCustomer(customerID)
	if customer == nil {
		return nil, domain.NotFoundf("customer %d not found", customerID)
	}

	detail := &CartDetail{
		Customer:   customer.Record(),
		Items:      []domain.SaleLine{},
		Total:      decimal.Zero,
		TotalItems: customer.CartTotalItems(),
	}
	for _, line := range customer.Cart() {
		product := s.findProduct(line.ProductID)
		if product == nil {
			continue
		}
		subtotal := product.Subtotal(line.Quantity)
		detail.Items = append(detail.Items, domain.SaleLine{
			Product:  product.Info(),
			Quantity: line.Quantity,
			Subtotal: subtotal,
		})
		detail.Total = detail.Total.Add(subtotal)
	}

	return detail, nil
}

// UpdateCart sets the quantity of a cart line; a quantity of zero or less removes it.
func (s *Store) UpdateCart(ctx context.Context, input CartInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, product, err := s.resolve(input.CustomerID, input.ProductID)
	if err != nil {
		return err
	}
	if input.Quantity > product.Stock() {
		return domain.InsufficientStockf("only %d units of %s in stock", product.Stock(), product.Name())
	}
	if !customer.UpdateCartQuantity(product.ID(), input.Quantity) {
		return domain.NotFoundf("product %d is not in the cart of customer %d", product.ID(), customer.ID())
	}

	return s.saveCustomers(ctx)
}

// RemoveFromCart drops the cart line for productID.
func (s *Store) RemoveFromCart(ctx context.Context, customerID, productID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer := s.findCustomer(customerID)
	if customer == nil {
		return domain.NotFoundf("customer %d not found", customerID)
	}
	if !customer.RemoveFromCart(productID) {
		return domain.NotFoundf("product %d is not in the cart of customer %d", productID, customerID)
	}

	return s.saveCustomers(ctx)
}

// Purchase turns the customer's cart into a sale. Every line is validated before
// anything changes; a failed validation leaves stock, cart and files untouched.
// When persistence fails after the sale was applied in memory, the sale is
// returned together with an error wrapping domain.ErrPersistence.
//
// The sale event is published after the store lock is released.
func (s *Store) Purchase(ctx context.Context, customerID int) (*domain.Sale, error) {
	sale, err := s.completePurchase(ctx, customerID)
	if err != nil {
		return sale, err
	}

	if s.events != nil {
		if err := s.events.PublishSaleCompleted(ctx, *sale); err != nil {
			s.logger.WarnContext(ctx, "failed to publish sale event", "sale_id", sale.ID, "error", err)
		}
	}
	return sale, nil
}

func (s *Store) completePurchase(ctx context.Context, customerID int) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer := s.findCustomer(customerID)
	if customer == nil {
		return nil, domain.NotFoundf("customer %d not found", customerID)
	}

	cart := customer.Cart()
	if len(cart) == 0 {
		return nil, domain.EmptyCartf("the cart of customer %d is empty", customerID)
	}

	products := make([]*domain.Product, len(cart))
	for i, line := range cart {
		product := s.findProduct(line.ProductID)
		if product == nil {
			return nil, domain.NotFoundf("product %d not found", line.ProductID)
		}
		if line.Quantity <= 0 {
			return nil, domain.Validationf("cart line for %s has invalid quantity %d", product.Name(), line.Quantity)
		}
		if !product.HasSufficientStock(line.Quantity) {
			return nil, domain.InsufficientStockf("insufficient stock for %s: %d requested, %d available",
				product.Name(), line.Quantity, product.Stock())
		}
		products[i] = product
	}

	lines := make([]domain.SaleLine, 0, len(cart))
	for i, line := range cart {
		product := products[i]
		lines = append(lines, domain.SaleLine{
			Product:  product.Info(),
			Quantity: line.Quantity,
			Subtotal: product.Subtotal(line.Quantity),
		})
		if !product.AdjustStock(-line.Quantity) {
			for j := range i {
				products[j].AdjustStock(cart[j].Quantity)
			}
			return nil, domain.InsufficientStockf("insufficient stock for %s: %d requested, %d available",
				product.Name(), line.Quantity, product.Stock())
		}
	}

	sale := domain.NewSale(s.newSaleID(), customer, lines, s.now())
	customer.ClearCart()

	var errs []error
	if err := s.repo.AppendSale(ctx, sale); err != nil {
		errs = append(errs, fmt.Errorf("append sale: %w", err))
	}
	if err := s.saveProducts(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.saveCustomers(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &sale, fmt.Errorf("sale %s applied but not fully persisted: %w", sale.ID, persistenceError(errors.Join(errs...)))
	}
	return &sale, nil
}

// Sales reads the ledger back from the repository.
func (s *Store) Sales(ctx context.Context) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sales, err := s.repo.Sales(ctx)
	if err != nil {
		return nil, persistenceError(fmt.Errorf("read sales: %w", err))
	}
	return sales, nil
}

func (s *Store) resolve(customerID, productID int) (*domain.Customer, *domain.Product, error) {
	customer := s.findCustomer(customerID)
	if customer == nil {
		return nil, nil, domain.NotFoundf("customer %d not found", customerID)
	}
	product := s.findProduct(productID)
	if product == nil {
		return nil, nil, domain.NotFoundf("product %d not found", productID)
	}
	return customer, product, nil
}

func (s *Store) findProduct(id int) *domain.Product {
	for _, p := range s.products {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

func (s *Store) findCustomer(id int) *domain.Customer {
	for _, c := range s.customers {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

func (s *Store) productInfos() []domain.ProductInfo {
	infos := make([]domain.ProductInfo, 0, len(s.products))
	for _, p := range s.products {
		infos = append(infos, p.Info())
	}
	return infos
}

func (s *Store) customerRecords() []domain.CustomerRecord {
	records := make([]domain.CustomerRecord, 0, len(s.customers))
	for _, c := range s.customers {
		records = append(records, c.Record())
	}
	return records
}

func (s *Store) saveProducts(ctx context.Context) error {
	if err := s.repo.SaveProducts(ctx, s.productInfos()); err != nil {
		return persistenceError(fmt.Errorf("save products: %w", err))
	}
	return nil
}

func (s *Store) saveCustomers(ctx context.Context) error {
	if err := s.repo.SaveCustomers(ctx, s.customerRecords()); err != nil {
		return persistenceError(fmt.Errorf("save customers: %w", err))
	}
	return nil
}

func persistenceError(err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
