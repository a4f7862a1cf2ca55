// Package flow implements the client-side sign-up orchestration: the email
// sign-up/OTP verification state machine and the Google SSO flow. All real
// work is delegated to an IdentityProvider and a UserRegistrar.
package flow

import (
	"context"
	"sync/atomic"

	"signup-service/internal/domain"
	"signup-service/internal/observability"
)

var tracer = observability.Tracer("signup-service/internal/flow")

// IdentityProvider is the capability set of the external identity service.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string) (domain.Account, error)
	RequestEmailVerification(ctx context.Context, accountID string, strategy domain.Strategy) error
	AttemptEmailVerification(ctx context.Context, accountID, code string) (domain.VerificationAttempt, error)
	ActivateSession(ctx context.Context, sessionID string) error
	StartSSOFlow(ctx context.Context, strategy domain.Strategy, redirectURL string) (domain.SSOResult, error)
}

// UserRegistrar persists the user record with the external user API.
type UserRegistrar interface {
	Register(ctx context.Context, req domain.UserRegistrationRequest) error
}

// inFlight rejects a second operation on a flow while one is running.
type inFlight struct {
	busy atomic.Bool
}

func (g *inFlight) acquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *inFlight) release() {
	g.busy.Store(false)
}
