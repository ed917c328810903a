package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsBusiness(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"empty cart", ErrEmptyCart, true},
		{"wrapped stock", fmt.Errorf("product 3: %w", ErrInsufficientStock), true},
		{"not found", &NotFoundError{Entity: "product", ID: "3"}, true},
		{"mismatch", ErrTotalMismatch, true},
		{"transaction", &TransactionError{Op: "checkout", Err: errors.New("conn reset")}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusiness(tt.err); got != tt.want {
				t.Errorf("IsBusiness(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestOrder_OwnedBy(t *testing.T) {
	owner := int64(7)
	owned := &Order{UserID: &owner}
	guest := &Order{}

	if !owned.OwnedBy(Identity{UserID: 7}) {
		t.Error("expected owner to read own order")
	}
	if owned.OwnedBy(Identity{UserID: 8}) {
		t.Error("expected other user to be rejected")
	}
	if owned.OwnedBy(Identity{}) {
		t.Error("expected anonymous caller to be rejected")
	}
	if !guest.OwnedBy(Identity{}) {
		t.Error("expected guest order to be readable")
	}
}
