package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"authcore/internal/errors"
)

func TestBaseError_WithDetailsKeepsIdentity(t *testing.T) {
	err := ErrInvalidInput.WithDetails("password must be at least 8 characters")

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrDuplicateAccount))
	assert.Equal(t, "password must be at least 8 characters", err.Details())
	assert.Empty(t, ErrInvalidInput.Details())
	assert.Equal(t, http.StatusBadRequest, err.HTTPCode())
}

func TestBaseError_WrapMessage(t *testing.T) {
	err := ErrInvalidCredentials.WrapMessage("login failed")

	var appErr AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INVALID_CREDENTIALS", appErr.ErrorCode())
	assert.Equal(t, http.StatusUnauthorized, appErr.HTTPCode())
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreError(cause, "find account")

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPCode())
	assert.Equal(t, "STORE_UNAVAILABLE", err.ErrorCode())
	assert.Equal(t, "find account", err.Details())
	assert.Contains(t, err.Error(), "connection refused")
}
