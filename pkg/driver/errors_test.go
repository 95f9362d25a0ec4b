package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerError_Classification(t *testing.T) {
	tests := []struct {
		code   string
		class  string
		client bool
	}{
		{CodeConstraintValidationFailed, "ClientError", true},
		{CodeDatabaseUnavailable, "TransientError", false},
		{"garbage", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			se := &ServerError{Code: tt.code, Message: "m"}
			assert.Equal(t, tt.class, se.Classification())
			assert.Equal(t, tt.client, se.IsClientError())
		})
	}
}

func TestAsServerError_Wrapped(t *testing.T) {
	native := errors.New("native")
	se := &ServerError{Code: CodeNotALeader, Message: "no longer leader", Err: native}
	wrapped := fmt.Errorf("%w: %w", ErrSessionExpired, se)

	got, ok := AsServerError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotALeader, got.Code)
	assert.ErrorIs(t, wrapped, ErrSessionExpired)
	assert.ErrorIs(t, wrapped, native)
	assert.Equal(t, "Neo.ClientError.Cluster.NotALeader: no longer leader", se.Error())

	_, ok = AsServerError(errors.New("plain"))
	assert.False(t, ok)
}

func TestAccessMode_String(t *testing.T) {
	assert.Equal(t, "READ", AccessModeRead.String())
	assert.Equal(t, "WRITE", AccessModeWrite.String())
	assert.Equal(t, "UNSPECIFIED", AccessModeUnspecified.String())
}
