// Package checkout turns a proposed cart into a committed order.
package checkout

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Tolerance is the largest difference between the claimed and the computed
// total that is still accepted.
var Tolerance = decimal.New(1, -2)

const (
	outcomeSuccess           = "success"
	outcomeValidation        = "validation"
	outcomeNotFound          = "not_found"
	outcomeInsufficientStock = "insufficient_stock"
	outcomeTotalMismatch     = "total_mismatch"
	outcomeError             = "error"
)

type Engine struct {
	store    Store
	logger   *slog.Logger
	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

func NewEngine(store Store, logger *slog.Logger) (*Engine, error) {
	meter := otel.Meter("storefront/checkout")

	attempts, err := meter.Int64Counter("storefront.checkout.attempts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create attempts counter: %w", err)
	}

	duration, err := meter.Float64Histogram("storefront.checkout.duration",
		metric.WithDescription("Checkout transaction duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return &Engine{
		store:    store,
		logger:   logger,
		tracer:   otel.Tracer("storefront/checkout"),
		attempts: attempts,
		duration: duration,
	}, nil
}

// Option adjusts the order a checkout records.
type Option func(*domain.Order)

// WithCustomer records the purchaser's contact and delivery details.
func WithCustomer(c domain.Customer) Option {
	return func(o *domain.Order) {
		o.Customer = &c
	}
}

// Checkout validates lines against the authoritative product records and,
// in a single transaction, records the order at server prices, takes the
// stock and clears the owner's cart. Nothing is persisted when it fails.
func (e *Engine) Checkout(ctx context.Context, owner domain.CartOwner, lines []domain.CheckoutLine, claimedTotal decimal.Decimal, opts ...Option) (_ *domain.Order, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "checkout",
		trace.WithAttributes(
			attribute.Int("checkout.lines", len(lines)),
			attribute.Bool("checkout.anonymous", owner.Anonymous()),
		),
	)
	defer func() {
		outcome := outcomeOf(err)
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		e.attempts.Add(ctx, 1, attrs)
		e.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	if err := validateLines(lines); err != nil {
		return nil, err
	}
	merged := mergeLines(lines)

	var order *domain.Order
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		priced, serverTotal, err := price(ctx, tx, merged)
		if err != nil {
			return err
		}

		if serverTotal.Sub(claimedTotal).Abs().GreaterThan(Tolerance) {
			e.logger.WarnContext(ctx, "checkout total mismatch, possible tampering",
				"claimed_total", claimedTotal.String(),
				"server_total", serverTotal.String(),
				"user_id", owner.UserID,
				"cart_id", owner.CartID,
			)
			return domain.ErrTotalMismatch
		}

		o := &domain.Order{
			ID:     uuid.NewString(),
			UserID: owner.UserRef(),
			Total:  serverTotal,
			Status: domain.OrderStatusCommitted,
		}
		for _, opt := range opts {
			opt(o)
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, l := range priced {
			if err := tx.InsertOrderLine(ctx, o.ID, l); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
			// The pre-check above can be stale; this write is the guard.
			if err := tx.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}

		if owner.Valid() {
			if err := tx.ClearCart(ctx, owner); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}

		o.Lines = priced
		order = o
		return nil
	})
	if err != nil {
		if !domain.IsBusiness(err) {
			err = &domain.TransactionError{Op: "checkout", Err: err}
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	e.logger.InfoContext(ctx, "order committed",
		"order_id", order.ID,
		"user_id", owner.UserID,
		"total", order.Total.String(),
		"lines", len(order.Lines),
	)
	return order, nil
}

func validateLines(lines []domain.CheckoutLine) error {
	if len(lines) == 0 {
		return domain.ErrEmptyCart
	}
	for i, l := range lines {
		if l.ProductID <= 0 {
			return domain.NewValidationError("items["+strconv.Itoa(i)+"].productId", "must be greater than 0")
		}
		if l.Quantity < 1 {
			return domain.NewValidationError("items["+strconv.Itoa(i)+"].quantity", "must be at least 1")
		}
	}
	return nil
}

// mergeLines folds repeated products into a single line and orders the result
// by product id. Every checkout therefore takes its product row locks in the
// same order, and two checkouts over the same products cannot deadlock.
func mergeLines(lines []domain.CheckoutLine) []domain.CheckoutLine {
	index := make(map[int64]int, len(lines))
	merged := make([]domain.CheckoutLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	slices.SortFunc(merged, func(a, b domain.CheckoutLine) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return merged
}

// price re-reads every product inside the transaction and returns the lines
// at authoritative prices with their total.
func price(ctx context.Context, tx Tx, lines []domain.CheckoutLine) ([]domain.OrderLine, decimal.Decimal, error) {
	priced := make([]domain.OrderLine, 0, len(lines))
	total := decimal.Zero

	for _, l := range lines {
		p, err := tx.Product(ctx, l.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("load product %d: %w", l.ProductID, err)
		}
		if p == nil {
			return nil, decimal.Zero, &domain.NotFoundError{Entity: "product", ID: strconv.FormatInt(l.ProductID, 10)}
		}
		if p.Stock < l.Quantity {
			return nil, decimal.Zero, fmt.Errorf("product %d: %w", p.ID, domain.ErrInsufficientStock)
		}

		line := domain.OrderLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
		}
		priced = append(priced, line)
		total = total.Add(line.Subtotal())
	}

	return priced, total, nil
}

func outcomeOf(err error) string {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
	)
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.As(err, &validation):
		return outcomeValidation
	case errors.As(err, &notFound):
		return outcomeNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return outcomeInsufficientStock
	case errors.Is(err, domain.ErrTotalMismatch):
		return outcomeTotalMismatch
	}
	return outcomeError
}
