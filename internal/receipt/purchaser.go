package receipt

import (
	"context"
	"fmt"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Build assembles the receipt for order. The purchaser of a user order is
// its owner; a guest order names the customer given at checkout.
func Build(ctx context.Context, order *domain.Order, users UserReader) (Receipt, error) {
	r := Receipt{Order: order}

	if order.UserID == nil {
		if c := order.Customer; c != nil {
			r.PurchaserName, r.PurchaserEmail = c.Name, c.Email
		}
		return r, nil
	}

	user, err := users.GetByID(ctx, *order.UserID)
	if err != nil {
		return Receipt{}, fmt.Errorf("load user %d: %w", *order.UserID, err)
	}
	if user == nil {
		return Receipt{}, &domain.NotFoundError{Entity: "user", ID: strconv.FormatInt(*order.UserID, 10)}
	}

	r.PurchaserName, r.PurchaserEmail = user.Name, user.Email
	return r, nil
}
