// Package handler serves API key administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/apikey"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/logger"
)

const defaultKeyRateLimit = 600

// KeyManager is implemented by apikey.Validator.
type KeyManager interface {
	CreateKey(ctx context.Context, name string, rateLimit int, admin bool, expiresAt *time.Time) (string, error)
	RevokeKey(ctx context.Context, rawKey string) error
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
}

type Keys struct {
	keys   KeyManager
	logger *slog.Logger
}

func NewKeys(keys KeyManager) *Keys {
	return &Keys{
		keys:   keys,
		logger: logger.WithComponent("key-handler"),
	}
}

type CreateKeyRequest struct {
	Name      string `json:"name"`
	RateLimit int    `json:"rate_limit"`
	Admin     bool   `json:"admin"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

// Create handles POST /api/v1/admin/keys. The raw key is only returned here.
func (h *Keys) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = defaultKeyRateLimit
	}
	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	key, err := h.keys.CreateKey(r.Context(), req.Name, req.RateLimit, req.Admin, expiresAt)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to create api key", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": key,
		"name":    req.Name,
		"admin":   req.Admin,
	})
}

// List handles GET /api/v1/admin/keys.
func (h *Keys) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to list api keys", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}
	if keys == nil {
		keys = []apikey.KeyInfo{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

// Revoke handles DELETE /api/v1/admin/keys with body {"api_key": "..."}.
func (h *Keys) Revoke(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		h.writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}
	err := h.keys.RevokeKey(r.Context(), req.APIKey)
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		h.writeError(w, http.StatusNotFound, "api key not found")
	case err != nil:
		logger.FromContext(r.Context()).Error("failed to revoke api key", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to revoke api key")
	default:
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
	}
}

func (h *Keys) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Keys) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
