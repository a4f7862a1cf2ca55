package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"signup-service/internal/domain"
)

func TestProviderErrorMapsGRPCStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantLong string
	}{
		{
			name:     "duplicate email",
			err:      status.Error(codes.AlreadyExists, "User already exists (SQL-M0dsf)"),
			wantCode: "form_identifier_exists",
			wantLong: "That email address is taken. Please try another.",
		},
		{
			name:     "invalid code",
			err:      status.Error(codes.InvalidArgument, "Code is invalid (CODE-woT0xc)"),
			wantCode: "form_param_format_invalid",
			wantLong: "Code is invalid (CODE-woT0xc)",
		},
		{
			name:     "unavailable",
			err:      status.Error(codes.Unavailable, "connection refused"),
			wantCode: "network_error",
			wantLong: "The identity service is unavailable, please try again.",
		},
		{
			name:     "unknown",
			err:      status.Error(codes.Internal, "boom"),
			wantCode: "internal_error",
			wantLong: genericLongMessage,
		},
		{
			name:     "not a grpc error",
			err:      errors.New("dial tcp: timeout"),
			wantCode: "network_error",
			wantLong: genericLongMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := providerError("op", tt.err)

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			require.Len(t, pe.Entries, 1)
			assert.Equal(t, tt.wantCode, pe.Entries[0].Code)
			assert.Equal(t, tt.wantLong, pe.Entries[0].LongMessage)
			assert.Equal(t, tt.wantLong, domain.FirstMessage(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestProviderErrorKeepsExistingProviderError(t *testing.T) {
	inner := newProviderError("inner", "session_not_found", "gone", "Session gone.", domain.ErrSessionNotFound)

	assert.Same(t, inner, providerError("outer", inner))
	assert.Nil(t, providerError("op", nil))
}
