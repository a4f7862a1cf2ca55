package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"signup-service/internal/domain"
	"signup-service/internal/flow"
	"signup-service/internal/observability"
	"signup-service/internal/service"
)

const testRedirect = "uberclone:///(root)/(tabs)/home"

// fakeProvider backs the email operations with canned answers and the SSO
// operation with a real broker.
type fakeProvider struct {
	*service.SSOService

	mu          sync.Mutex
	createGate  chan struct{}
	createCalls int
	createErr   error
	dispatchErr error
	attempt     domain.VerificationAttempt
	attemptErr  error
	activateErr error
	activated   []string
}

func (p *fakeProvider) CreateAccount(_ context.Context, _, _ string) (domain.Account, error) {
	p.mu.Lock()
	p.createCalls++
	gate := p.createGate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return domain.Account{}, p.createErr
	}
	return domain.Account{ID: "u1"}, nil
}

func (p *fakeProvider) RequestEmailVerification(_ context.Context, _ string, _ domain.Strategy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatchErr
}

func (p *fakeProvider) creates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls
}

func (p *fakeProvider) AttemptEmailVerification(_ context.Context, _, _ string) (domain.VerificationAttempt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt, p.attemptErr
}

func (p *fakeProvider) ActivateSession(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activateErr != nil {
		return p.activateErr
	}
	p.activated = append(p.activated, sessionID)
	return nil
}

func (p *fakeProvider) setAttempt(a domain.VerificationAttempt) {
	p.mu.Lock()
	p.attempt = a
	p.mu.Unlock()
}

type fakeRegistrar struct {
	mu       sync.Mutex
	requests []domain.UserRegistrationRequest
}

func (r *fakeRegistrar) Register(_ context.Context, req domain.UserRegistrationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func (r *fakeRegistrar) calls() []domain.UserRegistrationRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.UserRegistrationRequest(nil), r.requests...)
}

type fakeSessions struct{}

func (fakeSessions) Active(sessionID string) (service.IssuedSession, bool) {
	return service.IssuedSession{
		ID:        sessionID,
		Token:     "tok-" + sessionID,
		Active:    true,
		ExpiresAt: time.Now().Add(time.Hour),
	}, true
}

type fakeExchanger struct{}

func (fakeExchanger) AuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state
}

func (fakeExchanger) Exchange(_ context.Context, _ string) (service.SSOProfile, error) {
	return service.SSOProfile{GivenName: "Ada", FamilyName: "Lovelace", Email: "ada@example.com"}, nil
}

type fakeDirectory struct{}

func (fakeDirectory) FindOrCreateUser(_ context.Context, _ service.SSOProfile) (string, bool, error) {
	return "u9", true, nil
}

func (fakeDirectory) CreateSession(_ context.Context, _ string) (string, error) {
	return "s9", nil
}

type testServer struct {
	app       *fiber.App
	provider  *fakeProvider
	registrar *fakeRegistrar
	oauth     *OAuthHandler
}

func newTestServer(t *testing.T, withGoogle bool) *testServer {
	sso := service.NewSSOService(fakeDirectory{}, time.Second, zap.NewNop())
	if withGoogle {
		sso.RegisterStrategy(domain.StrategyOAuthGoogle, fakeExchanger{})
	}

	provider := &fakeProvider{SSOService: sso}
	registrar := &fakeRegistrar{}
	deps := Deps{
		Provider:    provider,
		Registrar:   registrar,
		Sessions:    fakeSessions{},
		RedirectURL: testRedirect,
		Logger:      zap.NewNop(),
		Metrics:     observability.NewMetrics(),
	}

	signUp := NewSignUpHandler(deps, service.NewFlowStore[*flow.SignUp](t.Context(), time.Minute))
	oauth := NewOAuthHandler(deps, service.NewFlowStore[*flow.OAuth](t.Context(), time.Minute), sso, time.Second)
	oauth.startTimeout = time.Second

	app := fiber.New()
	RegisterRoutes(app, signUp, oauth, deps.Metrics, NewIPRateLimiter(t.Context(), rate.Inf, 1))

	return &testServer{app: app, provider: provider, registrar: registrar, oauth: oauth}
}
