package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type sampleRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

func TestDecode(t *testing.T) {
	t.Run("decodes valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","quantity":2}`))

		var dst sampleRequest
		if err := Decode(req, &dst); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dst.Quantity != 2 {
			t.Errorf("expected quantity 2, got %d", dst.Quantity)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

		var dst sampleRequest
		err := Decode(req, &dst)

		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("reports the json field name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","quantity":0}`))

		var dst sampleRequest
		err := Decode(req, &dst)

		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.Field != "quantity" {
			t.Errorf("expected field quantity, got %q", verr.Field)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", domain.NewValidationError("email", "is required"), http.StatusBadRequest},
		{"empty cart", domain.ErrEmptyCart, http.StatusBadRequest},
		{"not found", &domain.NotFoundError{Entity: "product", ID: "7"}, http.StatusNotFound},
		{"insufficient stock", fmt.Errorf("product 7: %w", domain.ErrInsufficientStock), http.StatusBadRequest},
		{"total mismatch", domain.ErrTotalMismatch, http.StatusBadRequest},
		{"duplicate account", domain.ErrDuplicateAccount, http.StatusBadRequest},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"transaction", &domain.TransactionError{Op: "checkout", Err: errors.New("conn reset")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := StatusFor(tt.err)
			if status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, status)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	t.Run("hides internal details", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		rec := httptest.NewRecorder()

		FromError(rec, req, logger, &domain.TransactionError{Op: "checkout", Err: errors.New("pq: secret detail")})

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rec.Code)
		}

		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.OK {
			t.Error("expected ok=false")
		}
		if strings.Contains(body.Message, "secret") {
			t.Errorf("internal error leaked: %s", body.Message)
		}
	})
}
