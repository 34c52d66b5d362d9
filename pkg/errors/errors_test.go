package errors

import (
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := New(ErrorTypeConfig, "field_path must not be empty")

	assert.Equal(t, ErrorTypeConfig, err.Type)
	assert.Equal(t, "config: field_path must not be empty", err.Error())
	assert.NotEmpty(t, err.Stack, "new errors should capture a stack")
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeMissingField, "field %q not found at depth %d", "reports", 1)
	assert.Equal(t, `missing_field: field "reports" not found at depth 1`, err.Error())
}

func TestWrap(t *testing.T) {
	cause := goerrors.New("connection refused")
	err := Wrap(cause, ErrorTypeConnection, "request failed")

	assert.Equal(t, "connection: request failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "ignored"))
}

func TestWrapPreservesOriginalStack(t *testing.T) {
	inner := New(ErrorTypeData, "unexpected payload")
	outer := Wrap(inner, ErrorTypeInternal, "extraction failed")

	require.NotEmpty(t, outer.Stack)
	assert.Equal(t, inner.Stack[0], outer.Stack[0], "wrapping should keep the original capture site")
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeMalformedSlice, "slice missing keys").
		WithDetail("businessName", "Acme").
		WithDetail("offset", 40)

	assert.Equal(t, "Acme", err.Details["businessName"])
	assert.Equal(t, 40, err.Details["offset"])
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeConnection, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypeConfig, false},
		{ErrorTypeMissingField, false},
		{ErrorTypeMalformedSlice, false},
		{ErrorTypeData, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(New(tt.errType, "x")))
		})
	}

	assert.False(t, IsRetryable(goerrors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsRetryableThroughWrapping(t *testing.T) {
	err := fmt.Errorf("fetch page: %w", New(ErrorTypeRateLimit, "429 from upstream"))
	assert.True(t, IsRetryable(err))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeAuthentication, "token rejected")

	assert.True(t, IsType(err, ErrorTypeAuthentication))
	assert.False(t, IsType(err, ErrorTypeConnection))
	assert.False(t, IsType(goerrors.New("plain"), ErrorTypeConnection))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeAuthentication))
}
