package inventory

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpjson"
)

type ProductWriter interface {
	Create(ctx context.Context, p *domain.Product) error
}

type Handler struct {
	reader   ProductReader
	writer   ProductWriter
	adminKey string
	logger   *slog.Logger
}

func NewHandler(reader ProductReader, writer ProductWriter, adminKey string, logger *slog.Logger) *Handler {
	return &Handler{
		reader:   reader,
		writer:   writer,
		adminKey: adminKey,
		logger:   logger,
	}
}

type productResponse struct {
	OK      bool            `json:"ok"`
	Product *domain.Product `json:"product"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpjson.Error(w, h.logger, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.reader.GetByID(r.Context(), id)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	if p == nil {
		httpjson.FromError(w, r, h.logger, &domain.NotFoundError{Entity: "product", ID: strconv.FormatInt(id, 10)})
		return
	}

	httpjson.Write(w, h.logger, http.StatusOK, productResponse{OK: true, Product: p})
}

type createProductRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description"`
	ImageURL    string           `json:"imageUrl" validate:"omitempty,url"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       int              `json:"stock" validate:"gte=0"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httpjson.Error(w, h.logger, http.StatusForbidden, "forbidden")
		return
	}

	var req createProductRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	if !req.Price.IsPositive() {
		httpjson.FromError(w, r, h.logger, domain.NewValidationError("price", "must be greater than 0"))
		return
	}

	p := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
	}

	if err := h.writer.Create(r.Context(), p); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "product created", "product_id", p.ID)
	httpjson.Write(w, h.logger, http.StatusCreated, productResponse{OK: true, Product: p})
}

// An empty admin key disables product creation entirely.
func (h *Handler) authorized(r *http.Request) bool {
	if h.adminKey == "" {
		return false
	}
	got := r.Header.Get("X-Admin-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.adminKey)) == 1
}
