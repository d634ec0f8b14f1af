// Package middleware holds the API-specific HTTP middleware: API key
// authentication, admin authorization, CORS for the browser extension, and
// rate limiting of public endpoints.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/apikey"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/logger"
)

type contextKey string

const apiKeyInfoKey contextKey = "api_key_info"

// KeyValidator is implemented by apikey.Validator.
type KeyValidator interface {
	Validate(ctx context.Context, rawKey string) (*apikey.KeyInfo, error)
}

// Authenticate validates the API key when one is presented and stores its
// KeyInfo in the context. Requests without a key pass through anonymously;
// RequireKey and RequireAdmin guard the routes that need one.
func Authenticate(validator KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			info, err := validator.Validate(r.Context(), key)
			if err != nil {
				if errors.Is(err, apperrors.ErrUnauthorized) {
					var appErr *apperrors.AppError
					msg := "invalid api key"
					if errors.As(err, &appErr) {
						msg = appErr.Message
					}
					writeError(w, http.StatusUnauthorized, msg)
					return
				}
				logger.FromContext(r.Context()).Error("api key validation failed", "error", err)
				writeError(w, http.StatusInternalServerError, "authentication error")
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireKey rejects anonymous requests.
func RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetKeyInfo(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose key is not an admin key.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := GetKeyInfo(r.Context())
		if info == nil {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}
		if !info.IsAdmin {
			writeError(w, http.StatusForbidden, "admin api key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetKeyInfo returns the authenticated key, or nil for anonymous requests.
func GetKeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(apiKeyInfoKey).(*apikey.KeyInfo)
	return info
}

// extractAPIKey reads the key from, in order: Authorization: Bearer,
// X-API-Key, the api_key query parameter.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
