package service

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"signup-service/internal/domain"
)

const genericLongMessage = "Something went wrong, please try again."

// providerError converts an error returned by the Zitadel API into a
// structured *domain.ProviderError.
func providerError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return &domain.ProviderError{
			Op:      op,
			Entries: []domain.ErrorEntry{{Code: "network_error", Message: err.Error(), LongMessage: genericLongMessage}},
			Err:     err,
		}
	}

	entry := domain.ErrorEntry{Message: st.Message()}
	switch st.Code() {
	case codes.AlreadyExists:
		entry.Code = "form_identifier_exists"
		entry.LongMessage = "That email address is taken. Please try another."
	case codes.InvalidArgument:
		entry.Code = "form_param_format_invalid"
		entry.LongMessage = st.Message()
	case codes.FailedPrecondition:
		entry.Code = "verification_failed"
		entry.LongMessage = st.Message()
	case codes.NotFound:
		entry.Code = "resource_not_found"
		entry.LongMessage = st.Message()
	case codes.Unauthenticated, codes.PermissionDenied:
		entry.Code = "authorization_invalid"
		entry.LongMessage = "The identity service rejected our credentials."
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		entry.Code = "network_error"
		entry.LongMessage = "The identity service is unavailable, please try again."
	default:
		entry.Code = "internal_error"
		entry.LongMessage = genericLongMessage
	}
	if entry.LongMessage == "" {
		entry.LongMessage = genericLongMessage
	}
	return &domain.ProviderError{Op: op, Entries: []domain.ErrorEntry{entry}, Err: err}
}

// newProviderError builds a provider error that did not come from the API.
func newProviderError(op, code, message, longMessage string, err error) error {
	return &domain.ProviderError{
		Op:      op,
		Entries: []domain.ErrorEntry{{Code: code, Message: message, LongMessage: longMessage}},
		Err:     err,
	}
}
