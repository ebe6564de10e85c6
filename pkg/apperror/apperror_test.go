package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"locked", Locked("locked"), http.StatusLocked},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"conflict", Conflict("dup"), http.StatusConflict},
		{"not implemented", ErrNotImplemented, http.StatusNotImplemented},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWrapKeepsTypedErrors(t *testing.T) {
	v := Validation("vendor is required")
	wrapped := fmt.Errorf("create voucher: %w", v)

	assert.Equal(t, KindValidation, KindOf(Wrap(wrapped, "failed")))
	assert.Equal(t, KindInternal, KindOf(Wrap(errors.New("db down"), "failed")))
	assert.Nil(t, Wrap(nil, "failed"))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "vendor is required", PublicMessage(Validation("vendor is required")))
	assert.Equal(t, "internal server error", PublicMessage(Wrap(errors.New("password=secret"), "db")))
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrNotImplemented), ErrNotImplemented))
}
