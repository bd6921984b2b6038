package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are stored and served as JSON numbers, matching the catalog file format.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductInfo is the exported view of a product. It is both the API payload and the
// persisted line shape of the products file.
type ProductInfo struct {
	ID    int             `json:"id_producto"`
	Name  string          `json:"nombre"`
	Price decimal.Decimal `json:"precio"`
	Stock int             `json:"stock"`
}

// Product is an inventory item. Stock changes only through AdjustStock.
type Product struct {
	id    int
	name  string
	price decimal.Decimal
	stock int
}

// NewProduct builds a product from already validated values.
func NewProduct(id int, name string, price decimal.Decimal, stock int) *Product {
	return &Product{
		id:    id,
		name:  strings.TrimSpace(name),
		price: price,
		stock: stock,
	}
}

// RestoreProduct rebuilds a product from a persisted record.
func RestoreProduct(info ProductInfo) *Product {
	return NewProduct(info.ID, info.Name, info.Price, info.Stock)
}

func (p *Product) ID() int                { return p.id }
func (p *Product) Name() string           { return p.name }
func (p *Product) Price() decimal.Decimal { return p.price }
func (p *Product) Stock() int             { return p.stock }

// SetName renames the product. Blank names are rejected and leave the product unchanged.
func (p *Product) SetName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	p.name = trimmed
	return true
}

// SetPrice changes the price. Negative prices are rejected.
func (p *Product) SetPrice(price decimal.Decimal) bool {
	if price.IsNegative() {
		return false
	}
	p.price = price
	return true
}

// AdjustStock applies delta when the resulting stock stays non-negative.
func (p *Product) AdjustStock(delta int) bool {
	if p.stock+delta < 0 {
		return false
	}
	p.stock += delta
	return true
}

func (p *Product) HasSufficientStock(qty int) bool {
	return p.stock >= qty
}

// Subtotal is price × qty.
func (p *Product) Subtotal(qty int) decimal.Decimal {
	return p.price.Mul(decimal.NewFromInt(int64(qty)))
}

func (p *Product) Info() ProductInfo {
	return ProductInfo{
		ID:    p.id,
		Name:  p.name,
		Price: p.price,
		Stock: p.stock,
	}
}

// ValidateProduct checks registration input and returns a ValidationError describing
// the first violated rule.
func ValidateProduct(name string, price decimal.Decimal, stock int) error {
	if strings.TrimSpace(name) == "" {
		return Validationf("product name is required")
	}
	if price.IsNegative() {
		return Validationf("price cannot be negative")
	}
	if stock < 0 {
		return Validationf("stock cannot be negative")
	}
	return nil
}

// SameProductName compares names the way the catalog enforces uniqueness.
func SameProductName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
