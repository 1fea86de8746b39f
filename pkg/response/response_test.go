package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customError "github.com/Dianasmith6525/amerilendloan-sub000/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      *customError.BusinessError
		expected int
	}{
		{"validation", customError.WrapFieldError("amount", "is required"), http.StatusBadRequest},
		{"transition", customError.WrapInvalidTransition("pending", "disburse"), http.StatusConflict},
		{"forbidden", customError.WrapForbidden("approve"), http.StatusForbidden},
		{"declined", customError.WrapProviderError(customError.ProviderDeclined, "card declined", nil), http.StatusPaymentRequired},
		{"provider not found", customError.WrapProviderError(customError.ProviderNotFound, "unknown address", nil), http.StatusNotFound},
		{"provider transient", customError.WrapProviderError(customError.ProviderTransient, "timeout", nil), http.StatusServiceUnavailable},
		{"disbursement failed", customError.WrapDisbursementFailed("AL-1", nil), http.StatusBadGateway},
		{"already disbursed", customError.WrapAlreadyDisbursed("AL-1"), http.StatusConflict},
		{"loan not found", customError.WrapLoanNotFound(1), http.StatusNotFound},
		{"payment not found", customError.WrapPaymentNotFound("x"), http.StatusNotFound},
		{"database", customError.WrapDatabaseError(errors.New("boom")), http.StatusInternalServerError},
		{"lock", customError.WrapLockUnavailable("loan:1", nil), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFor(tt.err))
		})
	}
}

func TestFromError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/1", nil)

	t.Run("business error body", func(t *testing.T) {
		w := httptest.NewRecorder()
		FromError(w, req, customError.WrapValidation(map[string]string{"email": "must be a valid email address"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, customError.ErrCodeValidation, body.Error)
		assert.Equal(t, "must be a valid email address", body.Fields["email"])
		assert.False(t, body.Retriable)
	})

	t.Run("database details are hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		FromError(w, req, customError.WrapDatabaseError(errors.New("pq: password authentication failed")))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("transient errors are retriable", func(t *testing.T) {
		w := httptest.NewRecorder()
		FromError(w, req, customError.WrapLockUnavailable("loan:1", nil))

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Retriable)
	})

	t.Run("foreign error", func(t *testing.T) {
		w := httptest.NewRecorder()
		FromError(w, req, errors.New("unexpected"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "unexpected")
	})

	t.Run("cancelled request", func(t *testing.T) {
		w := httptest.NewRecorder()
		FromError(w, req, context.Canceled)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestWithWarning(t *testing.T) {
	w := httptest.NewRecorder()
	WithWarning(w, http.StatusOK, map[string]string{"status": "fee_paid"}, "notification loan.fee_paid could not be delivered")

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "notification loan.fee_paid could not be delivered", body.Warning)
}

func TestCORSMiddlewareAnswersPreflight(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/loans", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
