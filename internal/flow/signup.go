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

const emailFlow = "email"

// SignUpForm is the unvalidated sign-up form. The provider is the source of
// truth for email format and password strength.
type SignUpForm struct {
	Name     string
	Email    string
	Password string
}

func (f SignUpForm) validate() error {
	switch {
	case strings.TrimSpace(f.Name) == "":
		return domain.ErrNameRequired
	case strings.TrimSpace(f.Email) == "":
		return domain.ErrEmailRequired
	case f.Password == "":
		return domain.ErrPasswordRequired
	}
	return nil
}

// SignUpSnapshot is a consistent read of a SignUp flow.
type SignUpSnapshot struct {
	State     domain.VerificationState
	Email     string
	AccountID string
	SessionID string
}

// SignUp drives one email sign-up: Default -> Pending -> Success | Failed.
// Failed is re-entrant; Success is terminal.
type SignUp struct {
	provider  IdentityProvider
	registrar UserRegistrar
	logger    *zap.Logger
	metrics   *observability.Metrics
	guard     inFlight

	mu         sync.RWMutex
	state      domain.VerificationState
	name       string
	email      string
	accountID  string
	completed  *domain.VerificationAttempt
	registered bool
	sessionID  string
}

// NewSignUp returns a flow in the Default state.
func NewSignUp(provider IdentityProvider, registrar UserRegistrar, logger *zap.Logger, metrics *observability.Metrics) *SignUp {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignUp{
		provider:  provider,
		registrar: registrar,
		logger:    logger.With(zap.String("flow", emailFlow)),
		metrics:   metrics,
		state:     domain.Default{},
	}
}

// State returns the current state.
func (f *SignUp) State() domain.VerificationState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Snapshot returns the state together with the submitted email, the created
// account ID and, after success, the activated session ID.
func (f *SignUp) Snapshot() SignUpSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return SignUpSnapshot{State: f.state, Email: f.email, AccountID: f.accountID, SessionID: f.sessionID}
}

// Submit creates the pending account and requests the email OTP. On any
// provider error the flow stays in Default and the error is returned; use
// domain.FirstMessage for the user-facing text. When the account was created
// but the code could not be sent, a retry with the same email reuses the
// account and only re-sends the code.
func (f *SignUp) Submit(ctx context.Context, form SignUpForm) error {
	if err := form.validate(); err != nil {
		return err
	}
	if !f.guard.acquire() {
		return domain.ErrFlowBusy
	}
	defer f.guard.release()

	if _, ok := f.State().(domain.Default); !ok {
		return domain.ErrInvalidTransition
	}

	ctx, span := tracer.Start(ctx, "SignUp.Submit")
	defer span.End()

	f.mu.RLock()
	accountID, accountEmail := f.accountID, f.email
	f.mu.RUnlock()

	// A previous Submit may have created the account and then failed to send
	// the code; the provider rejects a second account for the same email.
	if accountID == "" || accountEmail != form.Email {
		account, err := f.provider.CreateAccount(ctx, form.Email, form.Password)
		if err != nil {
			f.logger.Error("create account failed", zap.String("email", form.Email), zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		accountID = account.ID

		f.mu.Lock()
		f.name = form.Name
		f.email = form.Email
		f.accountID = accountID
		f.mu.Unlock()
	}

	if err := f.provider.RequestEmailVerification(ctx, accountID, domain.StrategyEmailCode); err != nil {
		f.logger.Error("request email verification failed",
			zap.String("account_id", accountID), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	f.mu.Lock()
	f.name = form.Name
	f.state = domain.Pending{}
	f.mu.Unlock()

	f.metrics.Transition(emailFlow, domain.StatePending)
	f.logger.Info("verification code sent", zap.String("account_id", accountID))
	return nil
}

// Verify submits the OTP code. Provider rejections move the flow to Failed
// and are not returned as errors; the returned error is reserved for
// requests the flow refuses (busy, wrong state).
func (f *SignUp) Verify(ctx context.Context, code string) (domain.VerificationState, error) {
	if !f.guard.acquire() {
		return f.State(), domain.ErrFlowBusy
	}
	defer f.guard.release()

	switch f.State().(type) {
	case domain.Pending, domain.Failed:
	default:
		return f.State(), domain.ErrInvalidTransition
	}

	ctx, span := tracer.Start(ctx, "SignUp.Verify")
	defer span.End()

	f.mu.RLock()
	accountID, completed := f.accountID, f.completed
	f.mu.RUnlock()

	// A previous attempt may have completed verification but failed to
	// activate the session; the provider will not accept the code twice.
	if completed == nil {
		attempt, err := f.provider.AttemptEmailVerification(ctx, accountID, code)
		if err != nil {
			f.logger.Error("email verification failed", zap.String("account_id", accountID), zap.Error(err))
			span.SetStatus(codes.Error, err.Error())
			return f.fail(domain.FirstMessage(err)), nil
		}
		if attempt.Status != domain.StatusComplete {
			f.logger.Warn("email verification incomplete",
				zap.String("account_id", accountID),
				zap.String("status", string(attempt.Status)))
			return f.fail(domain.ErrVerificationFailed.Error()), nil
		}
		f.mu.Lock()
		f.completed = &attempt
		f.mu.Unlock()
		completed = &attempt
	}

	f.register(ctx, completed.AccountID)

	err := f.provider.ActivateSession(ctx, completed.SessionID)
	f.metrics.Activation(emailFlow, err)
	if err != nil {
		f.logger.Error("activate session failed", zap.String("session_id", completed.SessionID), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return f.fail(domain.FirstMessage(err)), nil
	}

	f.mu.Lock()
	f.sessionID = completed.SessionID
	f.state = domain.Success{}
	f.mu.Unlock()

	f.metrics.Transition(emailFlow, domain.StateSuccess)
	f.logger.Info("email verified", zap.String("account_id", completed.AccountID))
	return domain.Success{}, nil
}

// register posts the user record once per flow. Failures are logged only.
func (f *SignUp) register(ctx context.Context, accountID string) {
	f.mu.Lock()
	if f.registered {
		f.mu.Unlock()
		return
	}
	f.registered = true
	req := domain.UserRegistrationRequest{Name: f.name, Email: f.email, ClerkID: accountID}
	f.mu.Unlock()

	err := f.registrar.Register(ctx, req)
	f.metrics.Registration(emailFlow, err)
	if err != nil {
		f.logger.Error("cannot register the user into the database",
			zap.String("account_id", accountID), zap.Error(err))
		return
	}
	f.logger.Info("user registered", zap.String("account_id", accountID))
}

func (f *SignUp) fail(message string) domain.VerificationState {
	state := domain.Failed{Message: message}
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	f.metrics.Transition(emailFlow, domain.StateFailed)
	return state
}
