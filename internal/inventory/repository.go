package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/store"
)

type ProductRepository struct {
	db store.DBTX
}

func NewProductRepository(db store.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ProductRepository) WithTx(tx *sql.Tx) *ProductRepository {
	return &ProductRepository{db: tx}
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, image_url, price, stock, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Price, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, image_url, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Name, p.Description, p.ImageURL, p.Price, p.Stock).Scan(&p.ID, &p.CreatedAt)
}

// DecrementStock takes quantity units of a product only if that many are
// still available. Concurrent callers racing for the same units are
// serialized by the row lock the UPDATE takes; the loser sees zero rows.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`, id, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("product %d: %w", id, domain.ErrInsufficientStock)
	}

	return nil
}
