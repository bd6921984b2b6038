package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// BulkDiscountThreshold is the item count a purchase must exceed to earn the discount.
	BulkDiscountThreshold = 5

	// SaleDateLayout formats the fecha field of ledger records.
	SaleDateLayout = time.DateTime
)

// BulkDiscountRate is the share of the subtotal discounted on bulk purchases.
var BulkDiscountRate = decimal.New(1, -1)

// SaleLine snapshots a purchased product as it was at the time of sale.
type SaleLine struct {
	Product  ProductInfo     `json:"producto"`
	Quantity int             `json:"cantidad"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Sale is an immutable ledger record of a completed purchase.
type Sale struct {
	ID            string          `json:"id_venta"`
	CustomerID    int             `json:"cliente_id"`
	CustomerName  string          `json:"cliente_nombre"`
	CustomerEmail string          `json:"cliente_email"`
	Lines         []SaleLine      `json:"productos"`
	TotalItems    int             `json:"total_productos"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"descuento"`
	TotalFinal    decimal.Decimal `json:"total_final"`
	Date          string          `json:"fecha"`
}

// ComputeDiscount returns the bulk discount for a purchase of totalItems units.
func ComputeDiscount(subtotal decimal.Decimal, totalItems int) decimal.Decimal {
	if totalItems > BulkDiscountThreshold {
		return subtotal.Mul(BulkDiscountRate)
	}
	return decimal.Zero
}

// NewSale assembles a sale record from validated lines.
func NewSale(id string, customer *Customer, lines []SaleLine, at time.Time) Sale {
	subtotal := decimal.Zero
	items := 0
	for _, line := range lines {
		subtotal = subtotal.Add(line.Subtotal)
		items += line.Quantity
	}
	discount := ComputeDiscount(subtotal, items)

	return Sale{
		ID:            id,
		CustomerID:    customer.ID(),
		CustomerName:  customer.Name(),
		CustomerEmail: customer.Email(),
		Lines:         lines,
		TotalItems:    items,
		Subtotal:      subtotal,
		Discount:      discount,
		TotalFinal:    subtotal.Sub(discount),
		Date:          at.Format(SaleDateLayout),
	}
}
