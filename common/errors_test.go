package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorTaxonomy maps each constructor to its status code
func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err  *AppError
		code int
	}{
		{BadRequest("x"), 400},
		{Unauthorized("x"), 401},
		{Forbidden("x"), 403},
		{NotFound("x"), 404},
		{Conflict("x"), 409},
		{Validation("x"), 422},
		{TooManyRequests("x"), 429},
		{Internal("x"), 500},
		{Unavailable("x"), 503},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, "x", tc.err.Message)
		assert.Contains(t, tc.err.Error(), "x")
	}
}

// TestWithDetails attaches structured fields and chains
func TestWithDetails(t *testing.T) {
	err := BadRequest("invalid change").
		WithDetails("index", 3).
		WithDetails("reason", "change_not_found")

	assert.Equal(t, 3, err.Details["index"])
	assert.Equal(t, "change_not_found", err.Details["reason"])
}

// TestAsAppError unwraps through fmt wrapping
func TestAsAppError(t *testing.T) {
	orig := NotFound("document not found")
	wrapped := fmt.Errorf("loading: %w", orig)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, orig, appErr)

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
	_, ok = AsAppError(nil)
	assert.False(t, ok)
}

// TestCodeOf defaults foreign errors to 500
func TestCodeOf(t *testing.T) {
	assert.Equal(t, 403, CodeOf(Forbidden("no")))
	assert.Equal(t, 500, CodeOf(errors.New("boom")))
}
