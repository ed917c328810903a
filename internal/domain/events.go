package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPlacedEvent struct {
	OrderID   string          `json:"order_id"`
	UserID    *int64          `json:"user_id,omitempty"`
	Items     []OrderLine     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Items:     o.Lines,
		Total:     o.Total,
		Timestamp: o.CreatedAt,
	}
}
