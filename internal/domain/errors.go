package domain

import (
	"errors"
	"fmt"
)

var (
	// Form errors
	ErrNameRequired     = errors.New("name is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrCodeRequired     = errors.New("verification code is required")

	// Flow errors
	ErrFlowNotFound      = errors.New("flow not found or expired")
	ErrFlowBusy          = errors.New("a request for this flow is already in progress")
	ErrInvalidTransition = errors.New("operation not allowed in the current state")

	// Provider errors
	ErrVerificationFailed = errors.New("verification failed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownStrategy    = errors.New("unknown sso strategy")

	// SSO callback errors
	ErrSSOStateUnknown = errors.New("unknown or expired oauth state")
	ErrSSOTimeout      = errors.New("timed out waiting for the oauth callback")

	// Registration errors
	ErrRegistrationRejected = errors.New("user registration was rejected")
)

// ErrorEntry - one structured entry of an identity provider error
type ErrorEntry struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	LongMessage string `json:"long_message"`
}

// ProviderError is returned by identity provider adapters. Entries are
// ordered by relevance; callers surface only the first one.
type ProviderError struct {
	Op      string
	Entries []ErrorEntry
	Err     error
}

func (e *ProviderError) Error() string {
	msg := e.Op
	if len(e.Entries) > 0 {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Entries[0].Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FirstMessage returns the long-form message of the first structured entry
// of a provider error. Other errors fall back to their own text.
func FirstMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) && len(pe.Entries) > 0 {
		if pe.Entries[0].LongMessage != "" {
			return pe.Entries[0].LongMessage
		}
		if pe.Entries[0].Message != "" {
			return pe.Entries[0].Message
		}
	}
	return err.Error()
}
