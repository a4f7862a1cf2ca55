package flow

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"signup-service/internal/domain"
	"signup-service/internal/observability"
)

const oauthFlow = "oauth"

// OAuthOutcome is the observable result of an OAuth flow.
type OAuthOutcome struct {
	State            string
	SessionID        string
	CreatedAccountID string
	Error            string
}

// OAuth drives one provider-hosted Google sign-in. It fires at most once.
type OAuth struct {
	provider    IdentityProvider
	registrar   UserRegistrar
	redirectURL string
	logger      *zap.Logger
	metrics     *observability.Metrics
	guard       inFlight

	mu      sync.RWMutex
	started bool
	outcome OAuthOutcome
}

// NewOAuth returns an OAuth flow that sends the user agent back to
// redirectURL once the provider is done.
func NewOAuth(provider IdentityProvider, registrar UserRegistrar, redirectURL string, logger *zap.Logger, metrics *observability.Metrics) *OAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuth{
		provider:    provider,
		registrar:   registrar,
		redirectURL: redirectURL,
		logger:      logger.With(zap.String("flow", oauthFlow)),
		metrics:     metrics,
		outcome:     OAuthOutcome{State: domain.OAuthStatePending},
	}
}

// RedirectURL is the app deep link the provider returns to.
func (f *OAuth) RedirectURL() string {
	return f.redirectURL
}

// Outcome returns the current outcome.
func (f *OAuth) Outcome() OAuthOutcome {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.outcome
}

// Run starts the SSO flow and blocks until the provider returns. The session
// is activated whenever the provider returns one. A newly created account is
// registered whatever the activation result, and registration never blocks or
// reverses activation. The returned error is the provider error, if any, and
// is already reflected in the outcome.
func (f *OAuth) Run(ctx context.Context) (OAuthOutcome, error) {
	if !f.guard.acquire() {
		return f.Outcome(), domain.ErrFlowBusy
	}
	defer f.guard.release()

	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return f.Outcome(), domain.ErrInvalidTransition
	}
	f.started = true
	f.mu.Unlock()

	ctx, span := tracer.Start(ctx, "OAuth.Run")
	defer span.End()

	result, err := f.provider.StartSSOFlow(ctx, domain.StrategyOAuthGoogle, f.redirectURL)
	if err != nil {
		f.logger.Error("error occurred during the google oauth", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return f.finish(OAuthOutcome{State: domain.OAuthStateFailed, Error: domain.FirstMessage(err)}), err
	}

	if result.SessionID == "" {
		f.logger.Warn("sso flow returned without a session")
		return f.finish(OAuthOutcome{State: domain.OAuthStateIncomplete}), nil
	}

	activateErr := f.provider.ActivateSession(ctx, result.SessionID)
	f.metrics.Activation(oauthFlow, activateErr)

	outcome := OAuthOutcome{
		State:            domain.OAuthStateSuccess,
		SessionID:        result.SessionID,
		CreatedAccountID: result.CreatedAccountID,
	}
	if activateErr != nil {
		f.logger.Error("activate session failed", zap.String("session_id", result.SessionID), zap.Error(activateErr))
		span.SetStatus(codes.Error, activateErr.Error())
		outcome = OAuthOutcome{
			State:            domain.OAuthStateFailed,
			CreatedAccountID: result.CreatedAccountID,
			Error:            domain.FirstMessage(activateErr),
		}
	}

	// The account exists upstream whether or not activation worked.
	if result.CreatedAccountID != "" {
		f.register(ctx, result)
	} else {
		f.logger.Info("existing account signed in, skipping user registration")
	}

	return f.finish(outcome), activateErr
}

func (f *OAuth) register(ctx context.Context, result domain.SSOResult) {
	err := f.registrar.Register(ctx, domain.UserRegistrationRequest{
		Name:    FullName(result.FirstName, result.LastName),
		Email:   result.Email,
		ClerkID: result.CreatedAccountID,
	})
	f.metrics.Registration(oauthFlow, err)
	if err != nil {
		f.logger.Error("cannot register the user into the database",
			zap.String("account_id", result.CreatedAccountID), zap.Error(err))
		return
	}
	f.logger.Info("user registered", zap.String("account_id", result.CreatedAccountID))
}

func (f *OAuth) finish(outcome OAuthOutcome) OAuthOutcome {
	f.mu.Lock()
	f.outcome = outcome
	f.mu.Unlock()
	f.metrics.Transition(oauthFlow, outcome.State)
	return outcome
}

// FullName joins first and last name with a single space, dropping blanks.
func FullName(first, last string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{first, last} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
