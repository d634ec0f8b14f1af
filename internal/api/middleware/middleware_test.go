package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator map[string]*apikey.KeyInfo

func (f fakeValidator) Validate(_ context.Context, raw string) (*apikey.KeyInfo, error) {
	if raw == "broken" {
		return nil, errors.New("db down")
	}
	if raw == "expired" {
		return nil, apikey.ErrExpiredKey
	}
	info, ok := f[raw]
	if !ok {
		return nil, apikey.ErrInvalidKey
	}
	return info, nil
}

var keys = fakeValidator{
	"editor": {ID: "1", Name: "editor", RateLimit: 2},
	"admin":  {ID: "2", Name: "admin", RateLimit: 100, IsAdmin: true},
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, r *http.Request) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestAuthenticate(t *testing.T) {
	var seen *apikey.KeyInfo
	h := Authenticate(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetKeyInfo(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, serve(h, req))
	assert.Nil(t, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer editor")
	assert.Equal(t, http.StatusOK, serve(h, req))
	require.NotNil(t, seen)
	assert.Equal(t, "editor", seen.Name)

	req = httptest.NewRequest(http.MethodGet, "/?api_key=admin", nil)
	assert.Equal(t, http.StatusOK, serve(h, req))
	assert.True(t, seen.IsAdmin)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "nope")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "expired")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "api key expired")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "broken")
	assert.Equal(t, http.StatusInternalServerError, serve(h, req))
}

func TestRequireKeyAndAdmin(t *testing.T) {
	withKey := func(raw string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if raw != "" {
			req.Header.Set("X-API-Key", raw)
		}
		return req
	}
	keyed := Authenticate(keys)(RequireKey(ok))
	admin := Authenticate(keys)(RequireAdmin(ok))

	assert.Equal(t, http.StatusUnauthorized, serve(keyed, withKey("")))
	assert.Equal(t, http.StatusOK, serve(keyed, withKey("editor")))

	assert.Equal(t, http.StatusUnauthorized, serve(admin, withKey("")))
	assert.Equal(t, http.StatusForbidden, serve(admin, withKey("editor")))
	assert.Equal(t, http.StatusOK, serve(admin, withKey("admin")))
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{AllowOrigins: []string{"chrome-extension://abc"}})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/check", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "chrome-extension://abc", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/check", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	wild := CORS(config.CORSConfig{AllowOrigins: []string{"*"}})(ok)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	wild.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter := ratelimit.New(ctx, time.Minute)
	h := Authenticate(keys)(RateLimit(limiter, 1)(ok))

	anon := func(addr string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/check", nil)
		req.RemoteAddr = addr
		return req
	}
	assert.Equal(t, http.StatusOK, serve(h, anon("10.0.0.1:5000")))
	assert.Equal(t, http.StatusOK, serve(h, anon("10.0.0.2:5000")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, anon("10.0.0.1:6000"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	keyed := func() *http.Request {
		req := anon("10.0.0.1:7000")
		req.Header.Set("X-API-Key", "editor")
		return req
	}
	assert.Equal(t, http.StatusOK, serve(h, keyed()))
	assert.Equal(t, http.StatusOK, serve(h, keyed()))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, keyed()))

	ready := httptest.NewRequest(http.MethodGet, "/healthz/ready", nil)
	ready.RemoteAddr = "10.0.0.1:8000"
	assert.Equal(t, http.StatusOK, serve(h, ready))
}
