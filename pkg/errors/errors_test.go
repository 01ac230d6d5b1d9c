package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: ErrValidation.WithCause(errors.New("bad json")), want: http.StatusBadRequest},
		{name: "unauthorized", err: ErrUnauthorized, want: http.StatusUnauthorized},
		{name: "misconfigured", err: ErrMisconfigured, want: http.StatusInternalServerError},
		{name: "delivery", err: fmt.Errorf("wrapped: %w", ErrDeliveryFailed), want: http.StatusInternalServerError},
		{name: "too large", err: ErrPayloadTooLarge, want: http.StatusRequestEntityTooLarge},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestToErrorResponseHidesCause(t *testing.T) {
	err := ErrDeliveryFailed.WithCause(errors.New("access_token=secret-token"))

	resp := ToErrorResponse(err)

	assert.Equal(t, "DELIVERY_FAILED", resp["error_code"])
	assert.Equal(t, "conversion event was not delivered", resp["error"])
	assert.NotContains(t, fmt.Sprint(resp), "secret-token")
}

func TestToErrorResponseWrapsForeignErrors(t *testing.T) {
	resp := ToErrorResponse(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp["error_code"])
}

func TestIsMatchesAcrossWithCause(t *testing.T) {
	err := fmt.Errorf("handler: %w", ErrUnauthorized.WithCause(errors.New("mismatch")))

	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsValidation(err))
	assert.False(t, errors.Is(err, ErrMisconfigured))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrValidation.WithDetail("field", "email")
	assert.Empty(t, ErrValidation.Details)
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("kaboom")
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(err))
	assert.Contains(t, err.Error(), "kaboom")
}
