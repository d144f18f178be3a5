package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeValidation, "filters are required")

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "validation: filters are required", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(cause, ErrorTypeConnection, "failed to reach warehouse")

	require.NotNil(t, err)
	assert.Equal(t, ErrorTypeConnection, err.Type)
	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrapNil(t *testing.T) {
	var err *Error = Wrap(nil, ErrorTypeConnection, "ignored")
	assert.Nil(t, err)
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeQuery, "query failed")
	outer := Wrap(inner, ErrorTypeData, "update not delivered")

	assert.Equal(t, inner.Stack, outer.Stack)
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeNotConnected, "connection is not established")

	assert.True(t, IsType(err, ErrorTypeNotConnected))
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeNotConnected))

	wrapped := Wrap(err, ErrorTypeQuery, "action failed")
	assert.True(t, IsType(wrapped, ErrorTypeQuery))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeSchema, "column not in schema").
		WithDetail("column", "nickname").
		WithDetail("table", "users")

	assert.Equal(t, "nickname", err.Details["column"])
	assert.Equal(t, "users", err.Details["table"])
}
