// Package httpjson holds the JSON request and response helpers shared by the
// HTTP handlers. Every response body carries an "ok" flag; failures carry a
// human readable "message".
package httpjson

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func Write(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func Error(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	Write(w, logger, status, errorResponse{OK: false, Message: message})
}

// FromError renders err with the status its kind maps to. Errors outside the
// domain taxonomy are logged and reported without detail.
func FromError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	Error(w, logger, status, message)
}

func StatusFor(err error) (int, string) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrTotalMismatch),
		errors.Is(err, domain.ErrDuplicateAccount):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// Decode reads a JSON body into dst and validates it. Any failure is
// returned as a *domain.ValidationError.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Message: "invalid request body"}
	}
	return Validate(dst)
}

func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Message: "invalid request"}
	}
	return fieldError(verrs[0])
}

func fieldError(fe validator.FieldError) *domain.ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, "is required")
	case "email":
		return domain.NewValidationError(field, "must be a valid email")
	case "min":
		return domain.NewValidationError(field, "must be at least %s characters", fe.Param())
	case "max":
		return domain.NewValidationError(field, "must be at most %s characters", fe.Param())
	case "gt":
		return domain.NewValidationError(field, "must be greater than %s", fe.Param())
	case "gte":
		return domain.NewValidationError(field, "must be greater than or equal to %s", fe.Param())
	case "url":
		return domain.NewValidationError(field, "must be a valid URL")
	}
	return domain.NewValidationError(field, "is invalid (%s)", fe.Tag())
}
