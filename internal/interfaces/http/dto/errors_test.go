package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeInsufficientCredits, http.StatusPaymentRequired},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeUnknownModel, http.StatusBadRequest},
		{ErrCodeDownstream, http.StatusBadGateway},
		{ErrCodeNotFound, http.StatusNotFound},
		{"ERR_NO_SUCH_CODE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeInsufficientCredits, NormalizeErrorCode("INSUFFICIENT_CREDITS"))
	assert.Equal(t, ErrCodeUnauthorized, NormalizeErrorCode("UNAUTHORIZED"))
	assert.Equal(t, ErrCodeUnknownModel, NormalizeErrorCode("UNKNOWN_MODEL"))
	// Already-normalized and unknown codes pass through
	assert.Equal(t, ErrCodeRateLimited, NormalizeErrorCode(ErrCodeRateLimited))
	assert.Equal(t, "SOMETHING_ELSE", NormalizeErrorCode("SOMETHING_ELSE"))
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeUnauthorized, "Invalid API key", "req-123")

	assert.False(t, resp.Success)
	assert.Equal(t, ErrCodeUnauthorized, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]string{"a"}, 41, 1, 20)

	assert.True(t, resp.Success)
	assert.Equal(t, int64(41), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}
