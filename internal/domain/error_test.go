package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := E(CodeNotFound, "registry.get", "weather_api", nil)
	assert.Equal(t, "registry.get: NOT_FOUND: weather_api", err.Error())

	bare := E(CodeUnavailable, "", "", errors.New("backend down"))
	assert.Equal(t, "UNAVAILABLE: backend down", bare.Error())
}

func TestWrap_PreservesExisting(t *testing.T) {
	inner := E(CodeAlreadyExists, "registry.add", "csv_writer", ErrDuplicateTool)
	wrapped := Wrap(CodeInternal, "orchestrator.query", inner)
	assert.Equal(t, CodeAlreadyExists, wrapped.Code)
	assert.Equal(t, "registry.add", wrapped.Op)
	assert.True(t, errors.Is(wrapped, ErrDuplicateTool))
}

func TestWrap_Nil(t *testing.T) {
	require.Nil(t, Wrap(CodeInternal, "op", nil))
}

func TestCodeFrom_Sentinels(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
	}{
		{ErrDuplicateTool, CodeAlreadyExists},
		{ErrToolNotFound, CodeNotFound},
		{ErrNotConfirmed, CodeFailedPrecond},
		{ErrUnknownToolCall, CodeProtocolViolation},
		{ErrMalformedIntent, CodeInvalidArgument},
		{ErrStoreClosed, CodeUnavailable},
	}
	for _, tc := range cases {
		code, ok := CodeFrom(fmt.Errorf("context: %w", tc.err))
		require.True(t, ok, "expected code for %v", tc.err)
		assert.Equal(t, tc.code, code)
	}

	_, ok := CodeFrom(errors.New("plain"))
	assert.False(t, ok)
}
