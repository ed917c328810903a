package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/store"
)

type OrderRepository struct {
	db store.DBTX
}

func NewOrderRepository(db store.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

const orderColumns = `
	id, user_id, total, status, created_at,
	customer_name, customer_email, customer_address, customer_phone, customer_city, customer_postal_code
`

// Insert writes the order header. The caller assigns the id.
func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	var (
		name, email                      sql.NullString
		address, phone, city, postalCode string
	)
	if c := order.Customer; c != nil {
		name = sql.NullString{String: c.Name, Valid: true}
		email = sql.NullString{String: c.Email, Valid: true}
		address, phone, city, postalCode = c.Address, c.Phone, c.City, c.PostalCode
	}

	return r.db.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, user_id, total, status,
			customer_name, customer_email, customer_address, customer_phone, customer_city, customer_postal_code
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, order.ID, order.UserID, order.Total, order.Status,
		name, email, address, phone, city, postalCode,
	).Scan(&order.CreatedAt)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{Lines: []domain.OrderLine{}}
	var (
		userID      sql.NullInt64
		name, email sql.NullString
		customer    domain.Customer
	)

	if err := row.Scan(&order.ID, &userID, &order.Total, &order.Status, &order.CreatedAt,
		&name, &email, &customer.Address, &customer.Phone, &customer.City, &customer.PostalCode,
	); err != nil {
		return nil, err
	}

	if userID.Valid {
		order.UserID = &userID.Int64
	}
	if email.Valid {
		customer.Name, customer.Email = name.String, email.String
		order.Customer = &customer
	}
	return order, nil
}

func (r *OrderRepository) InsertLine(ctx context.Context, orderID string, line domain.OrderLine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
	`, orderID, line.ProductID, line.Quantity, line.UnitPrice)
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadLines(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUser returns the user's orders newest first, loading all lines with
// a single batched query.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadLines(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var line domain.OrderLine
		if err := rows.Scan(&orderID, &line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice); err != nil {
			return err
		}
		order := orderMap[orderID]
		order.Lines = append(order.Lines, line)
	}

	return rows.Err()
}
