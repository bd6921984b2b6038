package domain

import (
	"slices"
	"strings"
)

// CartLine pairs a product with the quantity a customer intends to buy.
type CartLine struct {
	ProductID int `json:"producto_id"`
	Quantity  int `json:"cantidad"`
}

// CustomerRecord is the exported view of a customer and the persisted line shape of
// the customers file.
type CustomerRecord struct {
	ID    int        `json:"id_cliente"`
	Name  string     `json:"nombre"`
	Email string     `json:"email"`
	Cart  []CartLine `json:"carrito"`
}

// Customer owns its cart. Every cart line has a quantity greater than zero.
type Customer struct {
	id    int
	name  string
	email string
	cart  []CartLine
}

func NewCustomer(id int, name, email string) *Customer {
	return &Customer{
		id:    id,
		name:  strings.TrimSpace(name),
		email: strings.TrimSpace(email),
		cart:  []CartLine{},
	}
}

// RestoreCustomer rebuilds a customer from a persisted record. Lines with a
// non-positive quantity are dropped and repeated product ids are merged.
func RestoreCustomer(rec CustomerRecord) *Customer {
	c := NewCustomer(rec.ID, rec.Name, rec.Email)
	for _, line := range rec.Cart {
		if line.Quantity > 0 {
			c.AddToCart(line.ProductID, line.Quantity)
		}
	}
	return c
}

func (c *Customer) ID() int       { return c.id }
func (c *Customer) Name() string  { return c.name }
func (c *Customer) Email() string { return c.email }

// SetName renames the customer. Blank names are rejected.
func (c *Customer) SetName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	c.name = trimmed
	return true
}

// SetEmail changes the email. Values without '@' are rejected.
func (c *Customer) SetEmail(email string) bool {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" || !strings.Contains(trimmed, "@") {
		return false
	}
	c.email = trimmed
	return true
}

// Cart returns a copy of the cart lines.
func (c *Customer) Cart() []CartLine {
	return slices.Clone(c.cart)
}

func (c *Customer) HasEmptyCart() bool {
	return len(c.cart) == 0
}

// AddToCart increments the line for productID, or appends a new one.
func (c *Customer) AddToCart(productID, qty int) {
	if i := c.lineIndex(productID); i >= 0 {
		c.cart[i].Quantity += qty
		return
	}
	c.cart = append(c.cart, CartLine{ProductID: productID, Quantity: qty})
}

func (c *Customer) RemoveFromCart(productID int) bool {
	i := c.lineIndex(productID)
	if i < 0 {
		return false
	}
	c.cart = slices.Delete(c.cart, i, i+1)
	return true
}

// UpdateCartQuantity sets the quantity of an existing line; qty <= 0 removes it.
func (c *Customer) UpdateCartQuantity(productID, qty int) bool {
	if qty <= 0 {
		return c.RemoveFromCart(productID)
	}
	i := c.lineIndex(productID)
	if i < 0 {
		return false
	}
	c.cart[i].Quantity = qty
	return true
}

func (c *Customer) ClearCart() {
	c.cart = []CartLine{}
}

func (c *Customer) CartTotalItems() int {
	total := 0
	for _, line := range c.cart {
		total += line.Quantity
	}
	return total
}

func (c *Customer) Record() CustomerRecord {
	return CustomerRecord{
		ID:    c.id,
		Name:  c.name,
		Email: c.email,
		Cart:  c.Cart(),
	}
}

func (c *Customer) lineIndex(productID int) int {
	return slices.IndexFunc(c.cart, func(line CartLine) bool {
		return line.ProductID == productID
	})
}

// ValidateCustomer checks registration input.
func ValidateCustomer(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return Validationf("customer name is required")
	}
	trimmed := strings.TrimSpace(email)
	if trimmed == "" || !strings.Contains(trimmed, "@") {
		return Validationf("a valid email is required")
	}
	return nil
}

// SameEmail compares emails the way customer registration enforces uniqueness.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
