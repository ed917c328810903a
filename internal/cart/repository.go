package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/store"
)

type Repository struct {
	db store.DBTX
}

func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

// Find loads the owner's cart with its lines, or returns nil when the owner
// has no cart yet.
func (r *Repository) Find(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	return r.find(ctx, owner, false)
}

// Lock is Find with the cart row locked until the surrounding transaction
// ends, so concurrent mutations of one cart serialize.
func (r *Repository) Lock(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	return r.find(ctx, owner, true)
}

func (r *Repository) find(ctx context.Context, owner domain.CartOwner, forUpdate bool) (*domain.Cart, error) {
	query := `SELECT id, user_id, created_at FROM carts WHERE id = $1 AND user_id IS NULL`
	var arg any = owner.CartID
	if !owner.Anonymous() {
		query = `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`
		arg = owner.UserID
	}
	if forUpdate {
		query += ` FOR UPDATE`
	}

	c := &domain.Cart{}
	var userID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &userID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if userID.Valid {
		c.UserID = &userID.Int64
	}

	lines, err := r.lines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Lines = lines

	return c, nil
}

func (r *Repository) lines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.product_id, p.name, ci.quantity, ci.unit_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.product_id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// Ensure creates the owner's cart if it does not exist and returns it locked.
func (r *Repository) Ensure(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	var err error
	if owner.Anonymous() {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO carts (id) VALUES ($1)
			ON CONFLICT (id) DO NOTHING
		`, owner.CartID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO carts (id, user_id) VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING
		`, uuid.NewString(), owner.UserID)
	}
	if err != nil {
		return nil, err
	}

	c, err := r.Lock(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil {
		// The anonymous id belongs to a user cart.
		return nil, &domain.NotFoundError{Entity: "cart", ID: owner.CartID}
	}
	return c, nil
}

func (r *Repository) UpsertLine(ctx context.Context, cartID string, l domain.CartLine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, cartID, l.ProductID, l.Quantity, l.UnitPrice)
	return err
}

func (r *Repository) DeleteLine(ctx context.Context, cartID string, productID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID)
	return err
}

// Clear empties the owner's cart. An anonymous cart record is deleted along
// with its lines; a user keeps an empty cart.
func (r *Repository) Clear(ctx context.Context, owner domain.CartOwner) error {
	if owner.Anonymous() {
		_, err := r.db.ExecContext(ctx, `
			DELETE FROM carts WHERE id = $1 AND user_id IS NULL
		`, owner.CartID)
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
	`, owner.UserID)
	return err
}
