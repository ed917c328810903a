package cart

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/store"
)

// Store persists carts. Update runs fn against the locked cart and writes
// back whatever lines fn changed.
type Store interface {
	Find(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	Update(ctx context.Context, owner domain.CartOwner, create bool, fn func(*domain.Cart)) (*domain.Cart, error)
}

type SQLStore struct {
	db    *sql.DB
	carts *Repository
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, carts: NewRepository(db)}
}

func (s *SQLStore) Find(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	return s.carts.Find(ctx, owner)
}

// Update returns nil without calling fn when the cart does not exist and
// create is false.
func (s *SQLStore) Update(ctx context.Context, owner domain.CartOwner, create bool, fn func(*domain.Cart)) (*domain.Cart, error) {
	var result *domain.Cart
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.carts.WithTx(tx)

		var (
			c   *domain.Cart
			err error
		)
		if create {
			c, err = repo.Ensure(ctx, owner)
		} else {
			c, err = repo.Lock(ctx, owner)
		}
		if err != nil || c == nil {
			return err
		}

		before := make(map[int64]domain.CartLine, len(c.Lines))
		for _, l := range c.Lines {
			before[l.ProductID] = l
		}

		fn(c)

		for _, l := range c.Lines {
			if prev, ok := before[l.ProductID]; ok && prev.Quantity == l.Quantity {
				delete(before, l.ProductID)
				continue
			}
			delete(before, l.ProductID)
			if err := repo.UpsertLine(ctx, c.ID, l); err != nil {
				return err
			}
		}
		for productID := range before {
			if err := repo.DeleteLine(ctx, c.ID, productID); err != nil {
				return err
			}
		}

		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
