// Package router wires the API routes and the middleware chain.
package router

import (
	"net/http"
	"time"

	apihandler "github.com/Adithya-Monish-Kumar-K/glossary-index/internal/api/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/glossary-index/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/checker"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/middleware"
)

// Handlers groups the endpoint implementations.
type Handlers struct {
	Checker   *checker.Handler
	Ingestion *ingesthandler.Handler
	Keys      *apihandler.Keys
	Health    *health.Checker
}

// Config holds the router's request policies.
type Config struct {
	CORS            config.CORSConfig
	PublicRateLimit int
	RequestTimeout  time.Duration
}

// New builds the API handler.
//
// Route table:
//
//	GET    /healthz/live                        liveness
//	GET    /healthz/ready                       readiness
//	POST   /api/v1/check                        highlight + redact      (public)
//	POST   /api/v1/redact                       redact only             (public)
//	GET    /api/v1/variants                     variant preview         (public)
//	GET    /api/v1/index/{kind}/{id}            stored index entry      (key)
//	POST   /api/v1/terms                        create term             (key)
//	PUT    /api/v1/terms/{id}                   update term             (key)
//	DELETE /api/v1/terms/{id}                   delete term + cascade   (key)
//	POST   /api/v1/terms/{id}/translations      create translation      (key)
//	PUT    /api/v1/translations/{id}            update translation      (key)
//	DELETE /api/v1/translations/{id}            delete translation      (key)
//	GET    /api/v1/admin/sensitive-terms        list sensitive terms    (admin)
//	PUT    /api/v1/admin/sensitive-terms        replace sensitive terms (admin)
//	POST   /api/v1/admin/rebuild                rebuild the index       (admin)
//	DELETE /api/v1/admin/cache                  flush analysis cache    (admin)
//	POST   /api/v1/admin/keys                   create api key          (admin)
//	GET    /api/v1/admin/keys                   list api keys           (admin)
//	DELETE /api/v1/admin/keys                   revoke api key          (admin)
//
// Middleware chain (outermost first):
//
//	RequestID → Logging → Recover → CORS → Timeout → Authenticate → RateLimit → Metrics → mux
func New(h Handlers, validator apimw.KeyValidator, limiter *ratelimit.Limiter, met *metrics.Metrics, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz/live", h.Health.LiveHandler())
	mux.HandleFunc("GET /healthz/ready", h.Health.ReadyHandler())

	mux.HandleFunc("POST /api/v1/check", h.Checker.Check)
	mux.HandleFunc("POST /api/v1/redact", h.Checker.Redact)
	mux.HandleFunc("GET /api/v1/variants", h.Checker.Variants)

	keyed := func(f http.HandlerFunc) http.Handler { return apimw.RequireKey(f) }
	mux.Handle("GET /api/v1/index/{kind}/{id}", keyed(h.Checker.IndexEntry))
	mux.Handle("POST /api/v1/terms", keyed(h.Ingestion.CreateTerm))
	mux.Handle("PUT /api/v1/terms/{id}", keyed(h.Ingestion.UpdateTerm))
	mux.Handle("DELETE /api/v1/terms/{id}", keyed(h.Ingestion.DeleteTerm))
	mux.Handle("POST /api/v1/terms/{id}/translations", keyed(h.Ingestion.CreateTranslation))
	mux.Handle("PUT /api/v1/translations/{id}", keyed(h.Ingestion.UpdateTranslation))
	mux.Handle("DELETE /api/v1/translations/{id}", keyed(h.Ingestion.DeleteTranslation))

	admin := func(f http.HandlerFunc) http.Handler { return apimw.RequireAdmin(f) }
	mux.Handle("GET /api/v1/admin/sensitive-terms", admin(h.Checker.SensitiveTerms))
	mux.Handle("PUT /api/v1/admin/sensitive-terms", admin(h.Checker.ReplaceSensitiveTerms))
	mux.Handle("POST /api/v1/admin/rebuild", admin(h.Checker.Rebuild))
	mux.Handle("DELETE /api/v1/admin/cache", admin(h.Checker.InvalidateCache))
	mux.Handle("POST /api/v1/admin/keys", admin(h.Keys.Create))
	mux.Handle("GET /api/v1/admin/keys", admin(h.Keys.List))
	mux.Handle("DELETE /api/v1/admin/keys", admin(h.Keys.Revoke))

	// Metrics reads the route pattern the mux stores on the request, so it
	// must wrap the mux directly.
	var chain http.Handler = mux
	if met != nil {
		chain = pkgmw.Metrics(met)(chain)
	}
	chain = apimw.RateLimit(limiter, cfg.PublicRateLimit)(chain)
	chain = apimw.Authenticate(validator)(chain)
	if cfg.RequestTimeout > 0 {
		chain = pkgmw.Timeout(cfg.RequestTimeout)(chain)
	}
	chain = apimw.CORS(cfg.CORS)(chain)
	chain = pkgmw.Recover(chain)
	chain = pkgmw.Logging(chain)
	chain = pkgmw.RequestID(chain)
	return chain
}
