package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Orders are created and committed in the same transaction, so committed is
// the only status ever observed.
const OrderStatusCommitted OrderStatus = "committed"

// CheckoutLine is a line proposed by the client. UnitPrice is the price the
// client believes it is paying and is never persisted.
type CheckoutLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type OrderLine struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Customer holds the contact and delivery details given at checkout. Guest
// orders always carry one.
type Customer struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type Order struct {
	ID        string          `json:"id"`
	UserID    *int64          `json:"userId,omitempty"`
	Customer  *Customer       `json:"customer,omitempty"`
	Lines     []OrderLine     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// LinesTotal sums quantity * unit price over the order lines.
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// OwnedBy reports whether the order can be read by the given identity.
// Guest orders carry no owner and are readable by anyone holding their id.
func (o *Order) OwnedBy(id Identity) bool {
	if o.UserID == nil {
		return true
	}
	return !id.Anonymous() && *o.UserID == id.UserID
}
