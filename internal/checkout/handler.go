package checkout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpjson"
)

const afterCommitTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// ProductInvalidator drops cached product reads after stock changes.
type ProductInvalidator interface {
	Invalidate(ctx context.Context, ids ...int64)
}

type Handler struct {
	engine      *Engine
	publisher   EventPublisher
	invalidator ProductInvalidator
	logger      *slog.Logger
}

// NewHandler builds the checkout handler. publisher and invalidator may be
// nil.
func NewHandler(engine *Engine, publisher EventPublisher, invalidator ProductInvalidator, logger *slog.Logger) *Handler {
	return &Handler{
		engine:      engine,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
	}
}

type checkoutItem struct {
	ProductID int64           `json:"productId" validate:"gt=0"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price"`
}

type customerRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Address    string `json:"address" validate:"max=255"`
	Phone      string `json:"phone" validate:"max=40"`
	City       string `json:"city" validate:"max=120"`
	PostalCode string `json:"postalCode" validate:"max=20"`
}

type checkoutRequest struct {
	Items    []checkoutItem   `json:"items" validate:"dive"`
	Total    *decimal.Decimal `json:"total" validate:"required"`
	Customer *customerRequest `json:"customer"`
}

type checkoutResponse struct {
	OK      bool            `json:"ok"`
	OrderID string          `json:"orderId"`
	Total   decimal.Decimal `json:"total"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	owner, err := cart.OwnerFromRequest(r)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}
	if !owner.Valid() {
		httpjson.FromError(w, r, h.logger, domain.NewValidationError("cart", "missing cart id"))
		return
	}

	var req checkoutRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	var opts []Option
	switch {
	case req.Customer != nil:
		opts = append(opts, WithCustomer(domain.Customer{
			Name:       req.Customer.Name,
			Email:      req.Customer.Email,
			Address:    req.Customer.Address,
			Phone:      req.Customer.Phone,
			City:       req.Customer.City,
			PostalCode: req.Customer.PostalCode,
		}))
	case owner.Anonymous():
		httpjson.FromError(w, r, h.logger, domain.NewValidationError("customer", "is required for guest checkout"))
		return
	}

	lines := make([]domain.CheckoutLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = domain.CheckoutLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}
	}

	order, err := h.engine.Checkout(r.Context(), owner, lines, *req.Total, opts...)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	h.afterCommit(r.Context(), order)

	httpjson.Write(w, h.logger, http.StatusOK, checkoutResponse{
		OK:      true,
		OrderID: order.ID,
		Total:   order.Total,
	})
}

// afterCommit runs the side effects of a committed order. They outlive the
// request: a client that hangs up after the commit still gets its cache
// entries dropped and its event published. Failures are logged and never
// undo the order.
func (h *Handler) afterCommit(ctx context.Context, order *domain.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()

	if h.invalidator != nil {
		ids := make([]int64, len(order.Lines))
		for i, l := range order.Lines {
			ids[i] = l.ProductID
		}
		h.invalidator.Invalidate(ctx, ids...)
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, order.ID, domain.NewOrderPlacedEvent(order)); err != nil {
			h.logger.ErrorContext(ctx, "failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}
}
