package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartOwner identifies whose cart a request operates on. An authenticated
// user owns at most one cart; anonymous carts are addressed by their id.
type CartOwner struct {
	UserID int64
	CartID string
}

func (o CartOwner) Anonymous() bool {
	return o.UserID == 0
}

// Valid reports whether the owner addresses a cart at all.
func (o CartOwner) Valid() bool {
	return o.UserID != 0 || o.CartID != ""
}

// UserRef returns the owning user id, or nil for anonymous owners.
func (o CartOwner) UserRef() *int64 {
	if o.Anonymous() {
		return nil
	}
	id := o.UserID
	return &id
}

type CartLine struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	ID        string     `json:"id"`
	UserID    *int64     `json:"userId,omitempty"`
	Lines     []CartLine `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AddItem increments the line for p, or appends a new line priced at p's
// current price. A quantity below one adds a single unit.
func (c *Cart) AddItem(p Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == p.ID {
			c.Lines[i].Quantity += quantity
			return
		}
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.Price,
	})
}

// UpdateQuantity sets the quantity of an existing line. Stock is not checked
// here. A quantity of zero or less removes the line.
func (c *Cart) UpdateQuantity(productID int64, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			return
		}
	}
}

func (c *Cart) RemoveItem(productID int64) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) Clear() {
	c.Lines = nil
}

func (c *Cart) Line(productID int64) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Total is a display estimate built from the price snapshots. Checkout never
// trusts it.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
