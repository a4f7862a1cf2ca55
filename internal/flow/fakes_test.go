package flow

import (
	"context"
	"sync"

	"signup-service/internal/domain"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls []string

	createErr   error
	account     domain.Account
	dispatchErr error

	attempts   []domain.VerificationAttempt
	attemptErr error
	codes      []string
	block      chan struct{}

	activateErrs []error
	activated    []string

	sso    domain.SSOResult
	ssoErr error
	ssoArg struct {
		strategy    domain.Strategy
		redirectURL string
	}
}

func (p *fakeProvider) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (domain.Account, error) {
	p.record("create")
	if p.createErr != nil {
		return domain.Account{}, p.createErr
	}
	return p.account, nil
}

func (p *fakeProvider) RequestEmailVerification(_ context.Context, accountID string, strategy domain.Strategy) error {
	p.record("prepare:" + string(strategy))
	return p.dispatchErr
}

func (p *fakeProvider) AttemptEmailVerification(_ context.Context, accountID, code string) (domain.VerificationAttempt, error) {
	p.record("attempt")
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, code)
	if p.attemptErr != nil {
		return domain.VerificationAttempt{}, p.attemptErr
	}
	if len(p.attempts) == 0 {
		return domain.VerificationAttempt{Status: domain.StatusNeedsMore}, nil
	}
	a := p.attempts[0]
	if len(p.attempts) > 1 {
		p.attempts = p.attempts[1:]
	}
	return a, nil
}

func (p *fakeProvider) ActivateSession(_ context.Context, sessionID string) error {
	p.record("activate")
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.activateErrs) > 0 {
		err := p.activateErrs[0]
		p.activateErrs = p.activateErrs[1:]
		if err != nil {
			return err
		}
	}
	p.activated = append(p.activated, sessionID)
	return nil
}

func (p *fakeProvider) StartSSOFlow(_ context.Context, strategy domain.Strategy, redirectURL string) (domain.SSOResult, error) {
	p.record("sso")
	p.ssoArg.strategy = strategy
	p.ssoArg.redirectURL = redirectURL
	return p.sso, p.ssoErr
}

type fakeRegistrar struct {
	mu       sync.Mutex
	requests []domain.UserRegistrationRequest
	err      error
	provider *fakeProvider
}

func (r *fakeRegistrar) Register(_ context.Context, req domain.UserRegistrationRequest) error {
	if r.provider != nil {
		r.provider.record("register")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return r.err
}

func providerError(long string) error {
	return &domain.ProviderError{
		Op: "test",
		Entries: []domain.ErrorEntry{
			{Code: "form_code_incorrect", Message: "is incorrect", LongMessage: long},
			{Code: "other", Message: "second", LongMessage: "second entry"},
		},
	}
}
