package cart

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpjson"
)

const HeaderCartID = "X-Cart-ID"

// OwnerFromRequest resolves whose cart a request addresses. An authenticated
// identity wins over the X-Cart-ID header. The zero owner means neither was
// present.
func OwnerFromRequest(r *http.Request) (domain.CartOwner, error) {
	if id := auth.IdentityFrom(r.Context()); !id.Anonymous() {
		return domain.CartOwner{UserID: id.UserID}, nil
	}

	cartID := r.Header.Get(HeaderCartID)
	if cartID == "" {
		return domain.CartOwner{}, nil
	}
	parsed, err := uuid.Parse(cartID)
	if err != nil {
		return domain.CartOwner{}, domain.NewValidationError("cart", "invalid cart id")
	}
	return domain.CartOwner{CartID: parsed.String()}, nil
}

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type cartView struct {
	ID    string            `json:"id"`
	Items []domain.CartLine `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

type cartResponse struct {
	OK   bool     `json:"ok"`
	Cart cartView `json:"cart"`
}

func (h *Handler) writeCart(w http.ResponseWriter, c *domain.Cart) {
	items := c.Lines
	if items == nil {
		items = []domain.CartLine{}
	}
	httpjson.Write(w, h.logger, http.StatusOK, cartResponse{
		OK:   true,
		Cart: cartView{ID: c.ID, Items: items, Total: c.Total()},
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	c, err := h.service.Get(r.Context(), owner)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	h.writeCart(w, c)
}

type addItemRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=0"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	var req addItemRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	if !owner.Valid() {
		owner.CartID = uuid.NewString()
	}
	if owner.Anonymous() {
		w.Header().Set(HeaderCartID, owner.CartID)
	}

	c, err := h.service.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	h.writeCart(w, c)
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	owner, productID, ok := h.lineTarget(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	c, err := h.service.UpdateQuantity(r.Context(), owner, productID, *req.Quantity)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	h.writeCart(w, c)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, productID, ok := h.lineTarget(w, r)
	if !ok {
		return
	}

	c, err := h.service.RemoveItem(r.Context(), owner, productID)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	h.writeCart(w, c)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	if err := h.service.Clear(r.Context(), owner); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	httpjson.Write(w, h.logger, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) lineTarget(w http.ResponseWriter, r *http.Request) (domain.CartOwner, int64, bool) {
	owner, err := OwnerFromRequest(r)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return domain.CartOwner{}, 0, false
	}

	productID, err := strconv.ParseInt(r.PathValue("productId"), 10, 64)
	if err != nil || productID <= 0 {
		httpjson.Error(w, h.logger, http.StatusBadRequest, "invalid product id")
		return domain.CartOwner{}, 0, false
	}

	return owner, productID, true
}
