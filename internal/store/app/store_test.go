package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dejobratic/ferretec/internal/store/adapters/filestore"
	"github.com/dejobratic/ferretec/internal/store/adapters/memory"
	"github.com/dejobratic/ferretec/internal/store/app"
	"github.com/dejobratic/ferretec/internal/store/domain"
	"github.com/dejobratic/ferretec/internal/store/ports"
	"github.com/shopspring/decimal"
)

// countingRepository records calls on top of the in-memory repository and can
// be told to fail writes.
type countingRepository struct {
	*memory.Repository
	productSaves  int
	customerSaves int
	saleAppends   int
	failWrites    error
}

func newCountingRepository() *countingRepository {
	return &countingRepository{Repository: memory.NewRepository()}
}

func (r *countingRepository) writes() int {
	return r.productSaves + r.customerSaves + r.saleAppends
}

func (r *countingRepository) SaveProducts(ctx context.Context, products []domain.ProductInfo) error {
	r.productSaves++
	if r.failWrites != nil {
		return r.failWrites
	}
	return r.Repository.SaveProducts(ctx, products)
}

func (r *countingRepository) SaveCustomers(ctx context.Context, customers []domain.CustomerRecord) error {
	r.customerSaves++
	if r.failWrites != nil {
		return r.failWrites
	}
	return r.Repository.SaveCustomers(ctx, customers)
}

func (r *countingRepository) AppendSale(ctx context.Context, sale domain.Sale) error {
	r.saleAppends++
	if r.failWrites != nil {
		return r.failWrites
	}
	return r.Repository.AppendSale(ctx, sale)
}

type mockPublisher struct {
	published []domain.Sale
	err       error
}

func (m *mockPublisher) PublishSaleCompleted(_ context.Context, sale domain.Sale) error {
	m.published = append(m.published, sale)
	return m.err
}

// blockingPublisher holds PublishSaleCompleted until release is closed.
type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) PublishSaleCompleted(_ context.Context, _ domain.Sale) error {
	close(b.started)
	<-b.release
	return nil
}

var fixedTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)

func newTestStore(repo ports.Repository, events ports.SalePublisher) *app.Store {
	return app.NewStore(repo, events,
		app.WithClock(func() time.Time { return fixedTime }),
		app.WithSaleIDs(func() string { return "sale-1" }),
	)
}

func mustProduct(t *testing.T, s *app.Store, name, price string, stock int) domain.ProductInfo {
	t.Helper()
	p, err := s.RegisterProduct(context.Background(), app.RegisterProductInput{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("RegisterProduct(%s) failed: %v", name, err)
	}
	return p
}

func mustCustomer(t *testing.T, s *app.Store, name, email string) domain.CustomerRecord {
	t.Helper()
	c, err := s.RegisterCustomer(context.Background(), app.RegisterCustomerInput{Name: name, Email: email})
	if err != nil {
		t.Fatalf("RegisterCustomer(%s) failed: %v", email, err)
	}
	return c
}

func TestRegisterProduct(t *testing.T) {
	t.Run("assigns increasing ids and persists the catalog", func(t *testing.T) {
		repo := newCountingRepository()
		s := newTestStore(repo, nil)

		first := mustProduct(t, s, "Hammer", "10", 10)
		second := mustProduct(t, s, "  Saw  ", "25.50", 3)

		if first.ID != 1 || second.ID != 2 {
			t.Errorf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
		}
		if second.Name != "Saw" {
			t.Errorf("expected trimmed name %q, got %q", "Saw", second.Name)
		}
		if repo.productSaves != 2 {
			t.Errorf("expected 2 product saves, got %d", repo.productSaves)
		}
	})

	t.Run("rejects duplicate names ignoring case and spaces", func(t *testing.T) {
		repo := newCountingRepository()
		s := newTestStore(repo, nil)
		mustProduct(t, s, "Hammer", "10", 10)

		_, err := s.RegisterProduct(context.Background(), app.RegisterProductInput{
			Name: "  hAMMER ", Price: decimal.NewFromInt(1), Stock: 1,
		})

		if !errors.Is(err, domain.ErrDuplicate) {
			t.Fatalf("expected duplicate error, got %v", err)
		}
		if got := len(s.ListProducts(context.Background())); got != 1 {
			t.Errorf("expected 1 product, got %d", got)
		}
		if repo.productSaves != 1 {
			t.Errorf("expected no extra save, got %d saves", repo.productSaves)
		}
	})

	tests := []struct {
		name  string
		input app.RegisterProductInput
		msg   string
	}{
		{"empty name", app.RegisterProductInput{Name: "  ", Price: decimal.NewFromInt(1)}, "product name is required"},
		{"negative price", app.RegisterProductInput{Name: "X", Price: decimal.NewFromInt(-1)}, "price cannot be negative"},
		{"negative stock", app.RegisterProductInput{Name: "X", Price: decimal.NewFromInt(1), Stock: -1}, "stock cannot be negative"},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			s := newTestStore(newCountingRepository(), nil)

			_, err := s.RegisterProduct(context.Background(), tt.input)

			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tt.msg {
				t.Errorf("expected message %q, got %q", tt.msg, err.Error())
			}
		})
	}
}

func TestRegisterCustomer(t *testing.T) {
	t.Run("rejects duplicate emails ignoring case", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)
		mustCustomer(t, s, "Ana", "ana@x.com")

		_, err := s.RegisterCustomer(context.Background(), app.RegisterCustomerInput{Name: "Other", Email: " ANA@X.COM "})

		if !errors.Is(err, domain.ErrDuplicate) {
			t.Fatalf("expected duplicate error, got %v", err)
		}
	})

	t.Run("rejects an email without @", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)

		_, err := s.RegisterCustomer(context.Background(), app.RegisterCustomerInput{Name: "Ana", Email: "ana.x.com"})

		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("starts with an empty cart", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)

		c := mustCustomer(t, s, "Ana", "ana@x.com")

		if c.ID != 1 || len(c.Cart) != 0 {
			t.Errorf("unexpected customer %+v", c)
		}
	})
}

func TestAddProductToCart(t *testing.T) {
	t.Run("merges repeated adds into one line", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)
		p := mustProduct(t, s, "Hammer", "10", 10)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()

		for _, qty := range []int{2, 3} {
			if err := s.AddProductToCart(ctx, app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: qty}); err != nil {
				t.Fatalf("AddProductToCart failed: %v", err)
			}
		}

		detail, err := s.GetCartDetail(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetCartDetail failed: %v", err)
		}
		if len(detail.Items) != 1 || detail.Items[0].Quantity != 5 {
			t.Fatalf("expected one line of 5, got %+v", detail.Items)
		}
		if !detail.Total.Equal(decimal.NewFromInt(50)) {
			t.Errorf("expected total 50, got %s", detail.Total)
		}
		if detail.TotalItems != 5 {
			t.Errorf("expected 5 items, got %d", detail.TotalItems)
		}
	})

	tests := []struct {
		name  string
		input func(p domain.ProductInfo, c domain.CustomerRecord) app.CartInput
		kind  error
	}{
		{
			name:  "unknown customer",
			input: func(p domain.ProductInfo, _ domain.CustomerRecord) app.CartInput { return app.CartInput{CustomerID: 99, ProductID: p.ID, Quantity: 1} },
			kind:  domain.ErrNotFound,
		},
		{
			name:  "unknown product",
			input: func(_ domain.ProductInfo, c domain.CustomerRecord) app.CartInput { return app.CartInput{CustomerID: c.ID, ProductID: 99, Quantity: 1} },
			kind:  domain.ErrNotFound,
		},
		{
			name:  "more than the stock",
			input: func(p domain.ProductInfo, c domain.CustomerRecord) app.CartInput { return app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 11} },
			kind:  domain.ErrInsufficientStock,
		},
		{
			name:  "zero quantity",
			input: func(p domain.ProductInfo, c domain.CustomerRecord) app.CartInput { return app.CartInput{CustomerID: c.ID, ProductID: p.ID} },
			kind:  domain.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			repo := newCountingRepository()
			s := newTestStore(repo, nil)
			p := mustProduct(t, s, "Hammer", "10", 10)
			c := mustCustomer(t, s, "Ana", "ana@x.com")
			before := repo.writes()

			err := s.AddProductToCart(context.Background(), tt.input(p, c))

			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if repo.writes() != before {
				t.Error("expected no writes on a rejected add")
			}
		})
	}
}

func TestAddProductToCartOverflow(t *testing.T) {
	t.Run("rejects an add that would overflow the cart", func(t *testing.T) {
		repo := newCountingRepository()
		s := newTestStore(repo, nil)
		p := mustProduct(t, s, "Bolt", "1", math.MaxInt)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()
		input := app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: math.MaxInt}

		if err := s.AddProductToCart(ctx, input); err != nil {
			t.Fatalf("first add failed: %v", err)
		}
		before := repo.writes()

		err := s.AddProductToCart(ctx, input)

		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if repo.writes() != before {
			t.Error("expected no writes on a rejected add")
		}
		detail, err := s.GetCartDetail(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetCartDetail failed: %v", err)
		}
		if detail.TotalItems != math.MaxInt {
			t.Errorf("expected cart to keep %d items, got %d", math.MaxInt, detail.TotalItems)
		}
	})
}

func TestUpdateCart(t *testing.T) {
	setup := func(t *testing.T) (*app.Store, domain.ProductInfo, domain.CustomerRecord) {
		t.Helper()
		s := newTestStore(newCountingRepository(), nil)
		p := mustProduct(t, s, "Hammer", "10", 4)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		if err := s.AddProductToCart(context.Background(), app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 2}); err != nil {
			t.Fatalf("AddProductToCart failed: %v", err)
		}
		return s, p, c
	}

	t.Run("sets the quantity", func(t *testing.T) {
		s, p, c := setup(t)

		if err := s.UpdateCart(context.Background(), app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 4}); err != nil {
			t.Fatalf("UpdateCart failed: %v", err)
		}

		detail, _ := s.GetCartDetail(context.Background(), c.ID)
		if detail.Items[0].Quantity != 4 {
			t.Errorf("expected quantity 4, got %d", detail.Items[0].Quantity)
		}
	})

	t.Run("over stock leaves the cart unchanged", func(t *testing.T) {
		s, p, c := setup(t)

		err := s.UpdateCart(context.Background(), app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 5})

		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected insufficient stock, got %v", err)
		}
		if !strings.Contains(err.Error(), "only 4 units") {
			t.Errorf("expected message to mention available units, got %q", err.Error())
		}
		detail, _ := s.GetCartDetail(context.Background(), c.ID)
		if detail.Items[0].Quantity != 2 {
			t.Errorf("expected quantity 2, got %d", detail.Items[0].Quantity)
		}
	})

	t.Run("zero removes the line", func(t *testing.T) {
		s, p, c := setup(t)

		if err := s.UpdateCart(context.Background(), app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 0}); err != nil {
			t.Fatalf("UpdateCart failed: %v", err)
		}

		detail, _ := s.GetCartDetail(context.Background(), c.ID)
		if len(detail.Items) != 0 {
			t.Errorf("expected empty cart, got %+v", detail.Items)
		}
	})

	t.Run("product not in the cart is not found", func(t *testing.T) {
		s, _, c := setup(t)
		other := mustProduct(t, s, "Saw", "5", 5)

		err := s.UpdateCart(context.Background(), app.CartInput{CustomerID: c.ID, ProductID: other.ID, Quantity: 1})

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestRemoveFromCart(t *testing.T) {
	t.Run("removes an existing line", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)
		p := mustProduct(t, s, "Hammer", "10", 4)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 1})

		if err := s.RemoveFromCart(ctx, c.ID, p.ID); err != nil {
			t.Fatalf("RemoveFromCart failed: %v", err)
		}
		if err := s.RemoveFromCart(ctx, c.ID, p.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found on second remove, got %v", err)
		}
	})
}

func TestPurchase(t *testing.T) {
	t.Run("applies the bulk discount and clears the cart", func(t *testing.T) {
		repo := newCountingRepository()
		events := &mockPublisher{}
		s := newTestStore(repo, events)
		p := mustProduct(t, s, "Hammer", "10", 10)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()
		if err := s.AddProductToCart(ctx, app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 6}); err != nil {
			t.Fatalf("AddProductToCart failed: %v", err)
		}

		sale, err := s.Purchase(ctx, c.ID)

		if err != nil {
			t.Fatalf("Purchase failed: %v", err)
		}
		if !sale.Subtotal.Equal(decimal.NewFromInt(60)) ||
			!sale.Discount.Equal(decimal.NewFromInt(6)) ||
			!sale.TotalFinal.Equal(decimal.NewFromInt(54)) {
			t.Errorf("expected 60/6/54, got %s/%s/%s", sale.Subtotal, sale.Discount, sale.TotalFinal)
		}
		if sale.ID != "sale-1" || sale.Date != "2026-03-14 09:30:00" {
			t.Errorf("unexpected id or date: %s %s", sale.ID, sale.Date)
		}
		if sale.Lines[0].Product.Stock != 10 {
			t.Errorf("expected line snapshot taken before the decrement, got stock %d", sale.Lines[0].Product.Stock)
		}

		products := s.ListProducts(ctx)
		if products[0].Stock != 4 {
			t.Errorf("expected stock 4, got %d", products[0].Stock)
		}
		detail, _ := s.GetCartDetail(ctx, c.ID)
		if len(detail.Items) != 0 {
			t.Errorf("expected empty cart after purchase, got %+v", detail.Items)
		}

		ledger, err := s.Sales(ctx)
		if err != nil || len(ledger) != 1 {
			t.Fatalf("expected one sale in ledger, got %d (%v)", len(ledger), err)
		}
		if len(events.published) != 1 || events.published[0].ID != "sale-1" {
			t.Errorf("expected sale event to be published, got %+v", events.published)
		}
	})

	t.Run("no discount at five items", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)
		p := mustProduct(t, s, "Hammer", "10", 10)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 5})

		sale, err := s.Purchase(ctx, c.ID)

		if err != nil {
			t.Fatalf("Purchase failed: %v", err)
		}
		if !sale.Discount.IsZero() || !sale.TotalFinal.Equal(decimal.NewFromInt(50)) {
			t.Errorf("expected no discount, got %s off %s", sale.Discount, sale.Subtotal)
		}
	})

	t.Run("empty cart writes nothing", func(t *testing.T) {
		repo := newCountingRepository()
		s := newTestStore(repo, nil)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		before := repo.writes()

		sale, err := s.Purchase(context.Background(), c.ID)

		if !errors.Is(err, domain.ErrEmptyCart) {
			t.Fatalf("expected empty cart error, got %v", err)
		}
		if sale != nil {
			t.Errorf("expected no sale, got %+v", sale)
		}
		if repo.writes() != before {
			t.Errorf("expected no writes, got %d", repo.writes()-before)
		}
	})

	t.Run("unknown customer is not found", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)

		_, err := s.Purchase(context.Background(), 42)

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("one short line aborts the whole purchase", func(t *testing.T) {
		repo := newCountingRepository()
		s := newTestStore(repo, nil)
		hammer := mustProduct(t, s, "Hammer", "10", 10)
		saw := mustProduct(t, s, "Saw", "20", 3)
		ana := mustCustomer(t, s, "Ana", "ana@x.com")
		luis := mustCustomer(t, s, "Luis", "luis@x.com")
		ctx := context.Background()
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: ana.ID, ProductID: hammer.ID, Quantity: 2})
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: ana.ID, ProductID: saw.ID, Quantity: 3})
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: luis.ID, ProductID: saw.ID, Quantity: 2})
		if _, err := s.Purchase(ctx, luis.ID); err != nil {
			t.Fatalf("first purchase failed: %v", err)
		}
		before := repo.writes()

		_, err := s.Purchase(ctx, ana.ID)

		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected insufficient stock, got %v", err)
		}
		products := s.ListProducts(ctx)
		if products[0].Stock != 10 || products[1].Stock != 1 {
			t.Errorf("expected stock untouched (10, 1), got (%d, %d)", products[0].Stock, products[1].Stock)
		}
		detail, _ := s.GetCartDetail(ctx, ana.ID)
		if len(detail.Items) != 2 {
			t.Errorf("expected cart kept, got %+v", detail.Items)
		}
		if repo.writes() != before {
			t.Error("expected no writes on a rejected purchase")
		}
	})

	t.Run("persistence failure returns the applied sale", func(t *testing.T) {
		repo := newCountingRepository()
		events := &mockPublisher{}
		s := newTestStore(repo, events)
		p := mustProduct(t, s, "Hammer", "10", 10)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 1})
		repo.failWrites = errors.New("disk full")

		sale, err := s.Purchase(ctx, c.ID)

		if !errors.Is(err, domain.ErrPersistence) {
			t.Fatalf("expected persistence error, got %v", err)
		}
		if sale == nil || sale.TotalItems != 1 {
			t.Fatalf("expected the applied sale, got %+v", sale)
		}
		if domain.IsBusiness(err) {
			t.Error("persistence failure must not read as a business rejection")
		}
		if len(events.published) != 0 {
			t.Error("expected no event for an unpersisted sale")
		}
	})

	t.Run("publish failure does not fail the purchase", func(t *testing.T) {
		events := &mockPublisher{err: errors.New("broker down")}
		s := newTestStore(newCountingRepository(), events)
		p := mustProduct(t, s, "Hammer", "10", 10)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 1})

		if _, err := s.Purchase(ctx, c.ID); err != nil {
			t.Fatalf("expected purchase to succeed, got %v", err)
		}
	})
}

func TestPurchaseInvalidLines(t *testing.T) {
	t.Run("non-positive cart line aborts without changes", func(t *testing.T) {
		repo := newCountingRepository()
		ctx := context.Background()
		_ = repo.Repository.SaveProducts(ctx, []domain.ProductInfo{
			{ID: 1, Name: "Hammer", Price: decimal.NewFromInt(10), Stock: 5},
		})
		_ = repo.Repository.SaveCustomers(ctx, []domain.CustomerRecord{
			{ID: 1, Name: "Ana", Email: "ana@x.com", Cart: []domain.CartLine{{ProductID: 1, Quantity: -2}}},
		})
		s := newTestStore(repo, nil)
		if _, err := s.Load(ctx); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		sale, err := s.Purchase(ctx, 1)

		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if sale != nil {
			t.Errorf("expected no sale, got %+v", sale)
		}
		if repo.writes() != 0 {
			t.Errorf("expected no writes, got %d", repo.writes())
		}
		if stock := s.ListProducts(ctx)[0].Stock; stock != 5 {
			t.Errorf("expected stock 5, got %d", stock)
		}
	})
}

func TestPurchaseEventPublishing(t *testing.T) {
	t.Run("a slow publisher does not block other operations", func(t *testing.T) {
		events := &blockingPublisher{started: make(chan struct{}), release: make(chan struct{})}
		s := newTestStore(newCountingRepository(), events)
		p := mustProduct(t, s, "Hammer", "10", 10)
		c := mustCustomer(t, s, "Ana", "ana@x.com")
		ctx := context.Background()
		_ = s.AddProductToCart(ctx, app.CartInput{CustomerID: c.ID, ProductID: p.ID, Quantity: 2})

		purchased := make(chan error, 1)
		go func() {
			_, err := s.Purchase(ctx, c.ID)
			purchased <- err
		}()
		<-events.started

		listed := make(chan []domain.ProductInfo, 1)
		go func() { listed <- s.ListProducts(ctx) }()

		select {
		case products := <-listed:
			if products[0].Stock != 8 {
				t.Errorf("expected stock 8 while publishing, got %d", products[0].Stock)
			}
		case <-time.After(time.Second):
			t.Fatal("ListProducts blocked behind the sale event publish")
		}

		close(events.release)
		if err := <-purchased; err != nil {
			t.Fatalf("Purchase failed: %v", err)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("restores state and continues ids", func(t *testing.T) {
		repo := newCountingRepository()
		ctx := context.Background()
		_ = repo.Repository.SaveProducts(ctx, []domain.ProductInfo{
			{ID: 3, Name: "Hammer", Price: decimal.NewFromInt(10), Stock: 5},
			{ID: 7, Name: "Saw", Price: decimal.NewFromInt(20), Stock: 1},
		})
		_ = repo.Repository.SaveCustomers(ctx, []domain.CustomerRecord{
			{ID: 2, Name: "Ana", Email: "ana@x.com", Cart: []domain.CartLine{{ProductID: 3, Quantity: 1}}},
		})
		s := newTestStore(repo, nil)

		summary, err := s.Load(ctx)

		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if summary.Products != 2 || summary.Customers != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		p := mustProduct(t, s, "Drill", "50", 1)
		c := mustCustomer(t, s, "Luis", "luis@x.com")
		if p.ID != 8 || c.ID != 3 {
			t.Errorf("expected next ids 8 and 3, got %d and %d", p.ID, c.ID)
		}
		detail, err := s.GetCartDetail(ctx, 2)
		if err != nil || detail.TotalItems != 1 {
			t.Errorf("expected restored cart, got %+v (%v)", detail, err)
		}
	})

	t.Run("empty repository starts ids at one", func(t *testing.T) {
		s := newTestStore(newCountingRepository(), nil)

		if _, err := s.Load(context.Background()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if p := mustProduct(t, s, "Hammer", "1", 1); p.ID != 1 {
			t.Errorf("expected id 1, got %d", p.ID)
		}
	})
}

func TestFileBackedRoundTrip(t *testing.T) {
	t.Run("reloads products and continues ids in a fresh store", func(t *testing.T) {
		ctx := context.Background()
		paths := filestore.DefaultPaths(filepath.Join(t.TempDir(), "data"))
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		openStore := func() *app.Store {
			t.Helper()
			repo, err := filestore.NewRepository(paths, logger)
			if err != nil {
				t.Fatalf("NewRepository failed: %v", err)
			}
			s := newTestStore(repo, nil)
			if _, err := s.Load(ctx); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			return s
		}

		first := openStore()
		mustProduct(t, first, "Hammer", "10.50", 10)
		mustProduct(t, first, "Saw", "25", 3)
		mustProduct(t, first, "Drill", "99.99", 1)
		mustCustomer(t, first, "Ana", "ana@x.com")
		want := first.ListProducts(ctx)

		second := openStore()
		got := second.ListProducts(ctx)

		if !slices.EqualFunc(want, got, func(a, b domain.ProductInfo) bool {
			return a.ID == b.ID && a.Name == b.Name && a.Price.Equal(b.Price) && a.Stock == b.Stock
		}) {
			t.Fatalf("reloaded products differ: want %+v, got %+v", want, got)
		}
		if p := mustProduct(t, second, "Wrench", "5", 2); p.ID != 4 {
			t.Errorf("expected next product id 4, got %d", p.ID)
		}
		if c := mustCustomer(t, second, "Luis", "luis@x.com"); c.ID != 2 {
			t.Errorf("expected next customer id 2, got %d", c.ID)
		}
	})
}
