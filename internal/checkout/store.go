package checkout

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/store"
)

// Tx is the unit of work a checkout runs in. Everything done through one Tx
// commits or rolls back together.
type Tx interface {
	Product(ctx context.Context, id int64) (*domain.Product, error)
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderLine(ctx context.Context, orderID string, line domain.OrderLine) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	ClearCart(ctx context.Context, owner domain.CartOwner) error
}

type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type SQLStore struct {
	db       *sql.DB
	products *inventory.ProductRepository
	orders   *orders.OrderRepository
	carts    *cart.Repository
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:       db,
		products: inventory.NewProductRepository(db),
		orders:   orders.NewOrderRepository(db),
		carts:    cart.NewRepository(db),
	}
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(ctx, &sqlTx{
			products: s.products.WithTx(tx),
			orders:   s.orders.WithTx(tx),
			carts:    s.carts.WithTx(tx),
		})
	})
}

type sqlTx struct {
	products *inventory.ProductRepository
	orders   *orders.OrderRepository
	carts    *cart.Repository
}

func (t *sqlTx) Product(ctx context.Context, id int64) (*domain.Product, error) {
	return t.products.GetByID(ctx, id)
}

func (t *sqlTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	return t.orders.Insert(ctx, order)
}

func (t *sqlTx) InsertOrderLine(ctx context.Context, orderID string, line domain.OrderLine) error {
	return t.orders.InsertLine(ctx, orderID, line)
}

func (t *sqlTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	return t.products.DecrementStock(ctx, productID, quantity)
}

func (t *sqlTx) ClearCart(ctx context.Context, owner domain.CartOwner) error {
	return t.carts.Clear(ctx, owner)
}
