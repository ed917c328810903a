package auth

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httpjson"
)

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

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Address  string `json:"address" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=30"`
}

type userResponse struct {
	OK    bool         `json:"ok"`
	User  *domain.User `json:"user"`
	Token string       `json:"token,omitempty"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	u, err := h.service.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
		Phone:    req.Phone,
	})
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	httpjson.Write(w, h.logger, http.StatusCreated, userResponse{OK: true, User: u})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	u, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	httpjson.Write(w, h.logger, http.StatusOK, userResponse{OK: true, User: u, Token: token})
}
