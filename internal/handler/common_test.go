package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"voucherpro/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		kind    string
		message string
	}{
		{"validation", apperror.Validation("amount must not be negative"), http.StatusBadRequest, "validation", "amount must not be negative"},
		{"locked", apperror.Locked("account locked"), http.StatusLocked, "locked", "account locked"},
		{"conflict", apperror.Conflict("invoice number already exists"), http.StatusConflict, "conflict", "invoice number already exists"},
		{"not implemented", apperror.ErrNotImplemented, http.StatusNotImplemented, "not_implemented", ""},
		{"internal detail is hidden", apperror.Wrap(errors.New("pq: relation does not exist"), "failed to list vouchers"), http.StatusInternalServerError, "internal", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w, nil)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.kind, env.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Error)
			}
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestSendFile_DetectsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	sendFile(c, "", "scan.pdf", []byte("%PDF-1.4 body"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="scan.pdf"`, w.Header().Get("Content-Disposition"))
}
