package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("loading term: %w", ErrEntityNotFound), http.StatusNotFound},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"lang", fmt.Errorf("x: %w", ErrUnsupportedLang), http.StatusBadRequest},
		{"analysis", fmt.Errorf("x: %w", ErrAnalysisUnavailable), http.StatusBadGateway},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"corrupt", ErrCorruptIndex, http.StatusInternalServerError},
		{"app error wins", New(ErrInternal, http.StatusConflict, "dup"), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, 0, "field %s", "value")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: field value", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatusCode(err))
}
