package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/httpjson"
)

// Middleware resolves a bearer token into the request identity. Requests
// without a token pass through as anonymous; a token that does not verify
// is rejected.
func Middleware(tokens *TokenIssuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httpjson.Error(w, logger, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			id, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				httpjson.Error(w, logger, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func RequireIdentity(logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()).Anonymous() {
			httpjson.Error(w, logger, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}
