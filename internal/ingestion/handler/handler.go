package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/logger"
)

const maxBodyBytes = 1 << 20

// EntityWriter is implemented by publisher.Publisher.
type EntityWriter interface {
	CreateTerm(ctx context.Context, value string, lang lexicon.Lang, variants []string) (*ingestion.EntityResponse, error)
	CreateTranslation(ctx context.Context, termID, value string, lang lexicon.Lang, variants []string) (*ingestion.EntityResponse, error)
	Update(ctx context.Context, ref lexicon.Ref, value string, variants []string) (*ingestion.EntityResponse, error)
	Delete(ctx context.Context, ref lexicon.Ref) (*ingestion.DeleteResponse, error)
}

type Handler struct {
	writer EntityWriter
	logger *slog.Logger
}

func New(writer EntityWriter) *Handler {
	return &Handler{
		writer: writer,
		logger: logger.WithComponent("ingestion-handler"),
	}
}

// CreateTerm handles POST /api/v1/terms.
func (h *Handler) CreateTerm(w http.ResponseWriter, r *http.Request) {
	var req ingestion.EntityRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, lang, variants, err := validator.Entity(&req)
	if err != nil {
		h.writeValidation(w, err)
		return
	}
	resp, err := h.writer.CreateTerm(r.Context(), value, lang, variants)
	h.respond(w, r, http.StatusCreated, resp, err, "term created")
}

// CreateTranslation handles POST /api/v1/terms/{id}/translations.
func (h *Handler) CreateTranslation(w http.ResponseWriter, r *http.Request) {
	var req ingestion.EntityRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, lang, variants, err := validator.Entity(&req)
	if err != nil {
		h.writeValidation(w, err)
		return
	}
	resp, err := h.writer.CreateTranslation(r.Context(), r.PathValue("id"), value, lang, variants)
	h.respond(w, r, http.StatusCreated, resp, err, "translation created")
}

// UpdateTerm handles PUT /api/v1/terms/{id}.
func (h *Handler) UpdateTerm(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, lexicon.KindTerm)
}

// UpdateTranslation handles PUT /api/v1/translations/{id}.
func (h *Handler) UpdateTranslation(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, lexicon.KindTranslation)
}

// DeleteTerm handles DELETE /api/v1/terms/{id}.
func (h *Handler) DeleteTerm(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, lexicon.KindTerm)
}

// DeleteTranslation handles DELETE /api/v1/translations/{id}.
func (h *Handler) DeleteTranslation(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, lexicon.KindTranslation)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, kind lexicon.Kind) {
	var req ingestion.UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	value, variants, err := validator.Update(&req)
	if err != nil {
		h.writeValidation(w, err)
		return
	}
	ref := lexicon.Ref{Kind: kind, ID: r.PathValue("id")}
	resp, err := h.writer.Update(r.Context(), ref, value, variants)
	h.respond(w, r, http.StatusOK, resp, err, "entity updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, kind lexicon.Kind) {
	ref := lexicon.Ref{Kind: kind, ID: r.PathValue("id")}
	resp, err := h.writer.Delete(r.Context(), ref)
	h.respond(w, r, http.StatusOK, resp, err, "entity deleted")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, resp any, err error, msg string) {
	log := logger.FromContext(r.Context())
	if err != nil {
		code := apperrors.HTTPStatusCode(err)
		if code >= http.StatusInternalServerError {
			log.Error("entity write failed", "error", err, "status_code", code)
			h.writeError(w, code, "entity write failed")
			return
		}
		log.Info("entity write rejected", "error", err, "status_code", code)
		h.writeError(w, code, errorMessage(err))
		return
	}
	log.Info(msg, "path", r.URL.Path)
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeValidation(w http.ResponseWriter, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch {
	case errors.Is(err, apperrors.ErrEntityNotFound):
		return apperrors.ErrEntityNotFound.Error()
	case errors.Is(err, apperrors.ErrInvalidInput):
		return apperrors.ErrInvalidInput.Error()
	}
	return http.StatusText(apperrors.HTTPStatusCode(err))
}
