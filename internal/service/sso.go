package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signup-service/internal/domain"
)

// SSOProfile is the identity an external provider vouched for.
type SSOProfile struct {
	Subject       string
	GivenName     string
	FamilyName    string
	Email         string
	EmailVerified bool
}

// CodeExchanger is one external provider's half of the authorization code flow.
type CodeExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (SSOProfile, error)
}

// AccountDirectory resolves provider identities to local accounts.
type AccountDirectory interface {
	FindOrCreateUser(ctx context.Context, profile SSOProfile) (userID string, created bool, err error)
	CreateSession(ctx context.Context, userID string) (string, error)
}

type authURLSinkKey struct{}

// WithAuthURLSink attaches the function that hands the provider's consent URL
// to the user agent. StartSSOFlow fails without one.
func WithAuthURLSink(ctx context.Context, sink func(authURL string)) context.Context {
	return context.WithValue(ctx, authURLSinkKey{}, sink)
}

func authURLSinkFrom(ctx context.Context) func(string) {
	sink, _ := ctx.Value(authURLSinkKey{}).(func(string))
	return sink
}

type ssoCallback struct {
	code        string
	errCode     string
	description string
}

type pendingSSO struct {
	redirectURL string
	result      chan ssoCallback
}

// SSOService runs single sign-on flows. StartSSOFlow parks until the
// provider redirects back through HandleCallback or the wait times out.
type SSOService struct {
	accounts   AccountDirectory
	exchangers map[domain.Strategy]CodeExchanger
	timeout    time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingSSO // key: oauth state
}

func NewSSOService(accounts AccountDirectory, timeout time.Duration, logger *zap.Logger) *SSOService {
	return &SSOService{
		accounts:   accounts,
		exchangers: make(map[domain.Strategy]CodeExchanger),
		timeout:    timeout,
		logger:     logger,
		pending:    make(map[string]*pendingSSO),
	}
}

// RegisterStrategy binds a provider to a strategy name.
func (s *SSOService) RegisterStrategy(strategy domain.Strategy, exchanger CodeExchanger) {
	s.exchangers[strategy] = exchanger
}

// StartSSOFlow sends the user to the provider, waits for the callback and
// signs the user in. A session is always created; CreatedAccountID is set
// only when the account did not exist before.
func (s *SSOService) StartSSOFlow(ctx context.Context, strategy domain.Strategy, redirectURL string) (domain.SSOResult, error) {
	exchanger, ok := s.exchangers[strategy]
	if !ok {
		return domain.SSOResult{}, newProviderError("start sso", "strategy_for_user_invalid",
			fmt.Sprintf("unsupported strategy %q", strategy),
			"This sign in method is not supported.", domain.ErrUnknownStrategy)
	}

	sink := authURLSinkFrom(ctx)
	if sink == nil {
		return domain.SSOResult{}, errors.New("start sso: no user agent attached to context")
	}

	state := uuid.NewString()
	pending := &pendingSSO{redirectURL: redirectURL, result: make(chan ssoCallback, 1)}

	s.mu.Lock()
	s.pending[state] = pending
	s.mu.Unlock()
	defer s.forget(state)

	sink(exchanger.AuthURL(state))
	s.logger.Debug("sso flow started", zap.String("strategy", string(strategy)))

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var cb ssoCallback
	select {
	case cb = <-pending.result:
	case <-timer.C:
		return domain.SSOResult{}, newProviderError("start sso", "oauth_timeout", domain.ErrSSOTimeout.Error(),
			"The sign in took too long, please try again.", domain.ErrSSOTimeout)
	case <-ctx.Done():
		return domain.SSOResult{}, ctx.Err()
	}

	if cb.errCode != "" {
		long := cb.description
		if long == "" {
			long = "The sign in was cancelled."
		}
		return domain.SSOResult{}, newProviderError("start sso", cb.errCode, cb.errCode, long, nil)
	}

	profile, err := exchanger.Exchange(ctx, cb.code)
	if err != nil {
		return domain.SSOResult{}, err
	}

	userID, created, err := s.accounts.FindOrCreateUser(ctx, profile)
	if err != nil {
		return domain.SSOResult{}, err
	}

	sessionID, err := s.accounts.CreateSession(ctx, userID)
	if err != nil {
		return domain.SSOResult{}, err
	}

	result := domain.SSOResult{
		SessionID: sessionID,
		FirstName: profile.GivenName,
		LastName:  profile.FamilyName,
		Email:     profile.Email,
	}
	if created {
		result.CreatedAccountID = userID
	}
	return result, nil
}

// HandleCallback delivers the provider's redirect to the waiting flow and
// returns the URL the user agent should be sent on to.
func (s *SSOService) HandleCallback(state, code, errCode, errDescription string) (string, error) {
	s.mu.Lock()
	pending, ok := s.pending[state]
	delete(s.pending, state)
	s.mu.Unlock()

	if !ok {
		return "", domain.ErrSSOStateUnknown
	}

	if code == "" && errCode == "" {
		errCode = "oauth_missing_code"
	}

	select {
	case pending.result <- ssoCallback{code: code, errCode: errCode, description: errDescription}:
	default:
	}
	return pending.redirectURL, nil
}

func (s *SSOService) forget(state string) {
	s.mu.Lock()
	delete(s.pending, state)
	s.mu.Unlock()
}
