package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/apikey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeys struct {
	created []apikey.KeyInfo
	expires []*time.Time
	revoked []string
	err     error
}

func (f *fakeKeys) CreateKey(_ context.Context, name string, rateLimit int, admin bool, expiresAt *time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, apikey.KeyInfo{Name: name, RateLimit: rateLimit, IsAdmin: admin})
	f.expires = append(f.expires, expiresAt)
	return "raw-key", nil
}

func (f *fakeKeys) RevokeKey(_ context.Context, raw string) error {
	if raw != "raw-key" {
		return apikey.ErrInvalidKey
	}
	f.revoked = append(f.revoked, raw)
	return nil
}

func (f *fakeKeys) ListKeys(context.Context) ([]apikey.KeyInfo, error) {
	return f.created, f.err
}

func call(h http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, "/api/v1/admin/keys", strings.NewReader(body)))
	return rec
}

func TestCreateKey(t *testing.T) {
	f := &fakeKeys{}
	h := NewKeys(f)

	rec := call(h.Create, http.MethodPost, `{"name":" editor ","admin":true,"expires_in":"24h"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "raw-key", body["api_key"])

	require.Len(t, f.created, 1)
	assert.Equal(t, "editor", f.created[0].Name)
	assert.Equal(t, defaultKeyRateLimit, f.created[0].RateLimit)
	assert.True(t, f.created[0].IsAdmin)
	require.NotNil(t, f.expires[0])
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *f.expires[0], time.Minute)

	assert.Equal(t, http.StatusBadRequest, call(h.Create, http.MethodPost, `{"name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(h.Create, http.MethodPost, `{"name":"x","expires_in":"soon"}`).Code)

	failing := NewKeys(&fakeKeys{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, call(failing.Create, http.MethodPost, `{"name":"x"}`).Code)
}

func TestListAndRevokeKeys(t *testing.T) {
	f := &fakeKeys{}
	h := NewKeys(f)

	rec := call(h.List, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"keys":[],"count":0}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, call(h.Revoke, http.MethodDelete, `{"api_key":"raw-key"}`).Code)
	assert.Equal(t, http.StatusNotFound, call(h.Revoke, http.MethodDelete, `{"api_key":"other"}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(h.Revoke, http.MethodDelete, `{}`).Code)
	assert.Equal(t, []string{"raw-key"}, f.revoked)
}
