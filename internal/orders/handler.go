package orders

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpjson"
	"github.com/joao-fontenele/storefront/internal/receipt"
)

type Reader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

type Handler struct {
	repo     Reader
	users    receipt.UserReader
	renderer receipt.Renderer
	logger   *slog.Logger
}

func NewHandler(repo Reader, users receipt.UserReader, renderer receipt.Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		users:    users,
		renderer: renderer,
		logger:   logger,
	}
}

type listResponse struct {
	OK     bool           `json:"ok"`
	Orders []domain.Order `json:"orders"`
}

type orderResponse struct {
	OK    bool          `json:"ok"`
	Order *domain.Order `json:"order"`
}

// HandleList serves the caller's order history. It must sit behind
// auth.RequireIdentity.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())

	orders, err := h.repo.ListByUser(r.Context(), id.UserID)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "orders listed", "user_id", id.UserID, "count", len(orders))
	httpjson.Write(w, h.logger, http.StatusOK, listResponse{OK: true, Orders: orders})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}

	httpjson.Write(w, h.logger, http.StatusOK, orderResponse{OK: true, Order: order})
}

func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}

	rcpt, err := receipt.Build(r.Context(), order, h.users)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, rcpt); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", h.renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, order.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write receipt", "error", err, "order_id", order.ID)
	}
}

// load fetches the order named in the path. Orders the caller may not read
// are reported as missing.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	orderID := r.PathValue("id")
	notFound := &domain.NotFoundError{Entity: "order", ID: orderID}
	if _, err := uuid.Parse(orderID); err != nil {
		httpjson.FromError(w, r, h.logger, notFound)
		return nil, false
	}

	order, err := h.repo.GetByID(r.Context(), orderID)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return nil, false
	}

	if order == nil || !order.OwnedBy(auth.IdentityFrom(r.Context())) {
		httpjson.FromError(w, r, h.logger, notFound)
		return nil, false
	}

	return order, true
}
