// Package checker serves the text checker: highlighting known Terms and
// Translations in free text, redacting sensitive words, previewing variants,
// and the admin endpoints around the lemma index.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/highlight"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/variant"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/redact"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/tracing"
)

const maxBodyBytes = 1 << 20

// Store is the read side of the document store used by the checker.
type Store interface {
	GetEntities(ctx context.Context, refs []lexicon.Ref) ([]lexicon.Entity, error)
	GetIndexEntry(ctx context.Context, ref lexicon.Ref) (index.Entry, error)
	SensitiveTerms(ctx context.Context) ([]string, error)
	ReplaceSensitiveTerms(ctx context.Context, terms []string) error
}

// Rebuilder recomputes the whole lemma index.
type Rebuilder interface {
	RebuildAll(ctx context.Context) (indexer.Summary, error)
}

// CacheInvalidator drops cached analysis results.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Handler struct {
	analyzer      analysis.Analyzer
	store         Store
	rebuilder     Rebuilder
	cache         CacheInvalidator
	metrics       *metrics.Metrics
	maxTextLength int
	rebuilding    atomic.Bool
	logger        *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRebuilder enables POST /api/v1/admin/rebuild.
func WithRebuilder(r Rebuilder) Option {
	return func(h *Handler) { h.rebuilder = r }
}

// WithCache enables DELETE /api/v1/admin/cache.
func WithCache(c CacheInvalidator) Option {
	return func(h *Handler) { h.cache = c }
}

// WithMetrics counts redactions and ambiguous phrases.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func New(analyzer analysis.Analyzer, store Store, maxTextLength int, opts ...Option) *Handler {
	h := &Handler{
		analyzer:      analyzer,
		store:         store,
		maxTextLength: maxTextLength,
		logger:        logger.WithComponent("checker-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CheckRequest is the body of POST /api/v1/check. Lang is the language of
// the text. Prefer narrows phrases to one display language; without it a
// phrase that matches several Terms is reported ambiguous. Reveal turns
// redaction off.
type CheckRequest struct {
	Text   string `json:"text"`
	Lang   string `json:"lang"`
	Prefer string `json:"prefer,omitempty"`
	Reveal bool   `json:"reveal"`
}

type CheckResponse struct {
	Segments  []highlight.Segment `json:"segments"`
	Ambiguous int                 `json:"ambiguous"`
	Redacted  int                 `json:"redacted"`
}

// Check handles POST /api/v1/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.Start(r.Context(), "checker.Check")
	defer span.End()
	log := logger.FromContext(ctx)

	var req CheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.checkLength(w, req.Text) {
		return
	}
	lang, err := lexicon.ParseLang(req.Lang)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var prefer lexicon.Lang
	if req.Prefer != "" {
		if prefer, err = lexicon.ParseLang(req.Prefer); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	span.SetAttr("lang", lang)
	span.SetAttr("text_length", len(req.Text))

	tokens, err := h.analyze(ctx, req.Text, lang)
	if err != nil {
		h.fail(w, r, "text analysis failed", err)
		return
	}
	refs := analysis.CollectRefs(tokens)
	var entities []lexicon.Entity
	if len(refs) > 0 {
		_, fetch := tracing.Start(ctx, "store.GetEntities")
		entities, err = h.store.GetEntities(ctx, refs)
		fetch.SetAttr("refs", len(refs))
		fetch.End()
		if err != nil {
			h.fail(w, r, "loading matched entities failed", err)
			return
		}
	}

	resp := CheckResponse{Segments: highlight.Resolve(tokens, entities, prefer)}
	resp.Ambiguous = highlight.Ambiguous(resp.Segments)

	if !req.Reveal {
		terms, err := h.sensitiveTerms(ctx)
		if err != nil {
			h.fail(w, r, "loading sensitive terms failed", err)
			return
		}
		for i := range resp.Segments {
			resp.Redacted += redactSegment(&resp.Segments[i], terms)
		}
	}

	if h.metrics != nil {
		h.metrics.RedactionsTotal.Add(float64(resp.Redacted))
		h.metrics.AmbiguousPhrasesTotal.Add(float64(resp.Ambiguous))
	}
	span.SetAttr("phrases", len(refs))
	log.Debug("text checked",
		"lang", lang,
		"segments", len(resp.Segments),
		"ambiguous", resp.Ambiguous,
		"redacted", resp.Redacted,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// redactSegment masks the segment text and every record shown with it. The
// records are replaced with copies; the count covers the text only.
func redactSegment(seg *highlight.Segment, terms redact.Terms) int {
	var n int
	seg.Text, n = redact.RedactCount(seg.Text, terms)
	if seg.Primary != nil {
		primary := redactEntity(*seg.Primary, terms)
		seg.Primary = &primary
	}
	for i, e := range seg.Terms {
		seg.Terms[i] = redactEntity(e, terms)
	}
	for i, e := range seg.Translations {
		seg.Translations[i] = redactEntity(e, terms)
	}
	return n
}

func redactEntity(e lexicon.Entity, terms redact.Terms) lexicon.Entity {
	e.Value = redact.Redact(e.Value, terms)
	if e.Variants != nil {
		variants := make([]string, len(e.Variants))
		for i, v := range e.Variants {
			variants[i] = redact.Redact(v, terms)
		}
		e.Variants = variants
	}
	return e
}

type RedactRequest struct {
	Text string `json:"text"`
}

type RedactResponse struct {
	Text     string `json:"text"`
	Redacted int    `json:"redacted"`
}

// Redact handles POST /api/v1/redact.
func (h *Handler) Redact(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.Start(r.Context(), "checker.Redact")
	defer span.End()

	var req RedactRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.checkLength(w, req.Text) {
		return
	}
	terms, err := h.sensitiveTerms(ctx)
	if err != nil {
		h.fail(w, r, "loading sensitive terms failed", err)
		return
	}
	out, n := redact.RedactCount(req.Text, terms)
	if h.metrics != nil {
		h.metrics.RedactionsTotal.Add(float64(n))
	}
	h.writeJSON(w, http.StatusOK, RedactResponse{Text: out, Redacted: n})
}

type VariantsResponse struct {
	Value    string       `json:"value"`
	Lang     lexicon.Lang `json:"lang"`
	Variants []string     `json:"variants"`
	Lemmas   index.Lemmas `json:"lemmas"`
}

// Variants handles GET /api/v1/variants?value=&lang= and shows what the
// index would hold for a headword with no explicit variants.
func (h *Handler) Variants(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'value' is required")
		return
	}
	lang, err := lexicon.ParseLang(r.URL.Query().Get("lang"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry := indexer.BuildIndex(lexicon.Entity{Kind: lexicon.KindTerm, Value: value, Lang: lang})
	variants := variant.Generate(value, lang)
	if variants == nil {
		variants = []string{}
	}
	h.writeJSON(w, http.StatusOK, VariantsResponse{
		Value:    value,
		Lang:     lang,
		Variants: variants,
		Lemmas:   entry.Lemmas,
	})
}

// IndexEntry handles GET /api/v1/index/{kind}/{id}.
func (h *Handler) IndexEntry(w http.ResponseWriter, r *http.Request) {
	kind, err := lexicon.ParseKind(r.PathValue("kind"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.store.GetIndexEntry(r.Context(), lexicon.Ref{Kind: kind, ID: r.PathValue("id")})
	if err != nil {
		h.fail(w, r, "loading index entry failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

type SensitiveTermsBody struct {
	Terms []string `json:"terms"`
}

// SensitiveTerms handles GET /api/v1/admin/sensitive-terms.
func (h *Handler) SensitiveTerms(w http.ResponseWriter, r *http.Request) {
	terms, err := h.store.SensitiveTerms(r.Context())
	if err != nil {
		h.fail(w, r, "listing sensitive terms failed", err)
		return
	}
	if terms == nil {
		terms = []string{}
	}
	h.writeJSON(w, http.StatusOK, SensitiveTermsBody{Terms: terms})
}

// ReplaceSensitiveTerms handles PUT /api/v1/admin/sensitive-terms.
func (h *Handler) ReplaceSensitiveTerms(w http.ResponseWriter, r *http.Request) {
	var body SensitiveTermsBody
	if !h.decode(w, r, &body) {
		return
	}
	terms := redact.NewTerms(body.Terms...).List()
	if err := h.store.ReplaceSensitiveTerms(r.Context(), terms); err != nil {
		h.fail(w, r, "replacing sensitive terms failed", err)
		return
	}
	logger.FromContext(r.Context()).Info("sensitive terms replaced", "count", len(terms))
	h.writeJSON(w, http.StatusOK, SensitiveTermsBody{Terms: terms})
}

// Rebuild handles POST /api/v1/admin/rebuild. The rebuild runs in the
// background; only one may run at a time.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if h.rebuilder == nil {
		h.writeError(w, http.StatusServiceUnavailable, "rebuild is not available")
		return
	}
	if !h.rebuilding.CompareAndSwap(false, true) {
		h.writeError(w, http.StatusConflict, "rebuild already running")
		return
	}
	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer h.rebuilding.Store(false)
		start := time.Now()
		summary, err := h.rebuilder.RebuildAll(ctx)
		if err != nil {
			h.logger.Error("index rebuild failed", "error", err, "request_id", logger.RequestID(ctx))
			return
		}
		h.logger.Info("index rebuild finished",
			"written", summary.Written,
			"unchanged", summary.Unchanged,
			"skipped", summary.Skipped,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "rebuilding"})
}

// InvalidateCache handles DELETE /api/v1/admin/cache.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.fail(w, r, "cache invalidation failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) analyze(ctx context.Context, text string, lang lexicon.Lang) ([]analysis.TextToken, error) {
	ctx, span := tracing.Start(ctx, "analysis.Analyze")
	defer span.End()
	tokens, err := h.analyzer.Analyze(ctx, text, lang)
	span.SetAttr("tokens", len(tokens))
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	return tokens, err
}

func (h *Handler) sensitiveTerms(ctx context.Context) (redact.Terms, error) {
	raw, err := h.store.SensitiveTerms(ctx)
	if err != nil {
		return redact.Terms{}, err
	}
	return redact.NewTerms(raw...), nil
}

func (h *Handler) checkLength(w http.ResponseWriter, text string) bool {
	if h.maxTextLength > 0 && utf8.RuneCountInString(text) > h.maxTextLength {
		h.writeError(w, http.StatusRequestEntityTooLarge, "text is too long")
		return false
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error(msg, "error", err, "status_code", code)
	} else {
		log.Info(msg, "error", err, "status_code", code)
	}
	switch {
	case errors.Is(err, apperrors.ErrEntityNotFound):
		h.writeError(w, code, "not found")
	case errors.Is(err, apperrors.ErrAnalysisUnavailable):
		h.writeError(w, code, "text analysis unavailable")
	default:
		h.writeError(w, code, msg)
	}
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
