package cart

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/inventory"
)

type Service struct {
	store    Store
	products inventory.ProductReader
	logger   *slog.Logger
}

func NewService(store Store, products inventory.ProductReader, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		products: products,
		logger:   logger,
	}
}

var errNoCart = domain.NewValidationError("cart", "missing cart id")

// Get returns the owner's cart, or an empty cart when none exists yet.
func (s *Service) Get(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, errNoCart
	}
	c, err := s.store.Find(ctx, owner)
	if err != nil {
		return nil, err
	}
	return orEmpty(c, owner), nil
}

func (s *Service) AddItem(ctx context.Context, owner domain.CartOwner, productID int64, quantity int) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, errNoCart
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &domain.NotFoundError{Entity: "product", ID: strconv.FormatInt(productID, 10)}
	}

	c, err := s.store.Update(ctx, owner, true, func(c *domain.Cart) {
		c.AddItem(*p, quantity)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item added", "cart_id", c.ID, "product_id", productID, "quantity", quantity)
	return c, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, owner domain.CartOwner, productID int64, quantity int) (*domain.Cart, error) {
	return s.update(ctx, owner, func(c *domain.Cart) {
		c.UpdateQuantity(productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, owner domain.CartOwner, productID int64) (*domain.Cart, error) {
	return s.update(ctx, owner, func(c *domain.Cart) {
		c.RemoveItem(productID)
	})
}

func (s *Service) Clear(ctx context.Context, owner domain.CartOwner) error {
	_, err := s.update(ctx, owner, func(c *domain.Cart) {
		c.Clear()
	})
	return err
}

// update never creates a cart: mutating a line of a missing cart is a no-op.
func (s *Service) update(ctx context.Context, owner domain.CartOwner, fn func(*domain.Cart)) (*domain.Cart, error) {
	if !owner.Valid() {
		return nil, errNoCart
	}
	c, err := s.store.Update(ctx, owner, false, fn)
	if err != nil {
		return nil, err
	}
	return orEmpty(c, owner), nil
}

func orEmpty(c *domain.Cart, owner domain.CartOwner) *domain.Cart {
	if c != nil {
		return c
	}
	return &domain.Cart{ID: owner.CartID, UserID: owner.UserRef(), Lines: []domain.CartLine{}}
}
