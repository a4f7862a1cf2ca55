package delivery

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup-service/internal/domain"
)

func doJSON(t *testing.T, s *testServer, method, path, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func signUp(t *testing.T, s *testServer) string {
	t.Helper()

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"name":"A","email":"a@x.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[domain.SignUpResponse](t, resp)
	require.NotEmpty(t, body.FlowID)
	assert.Equal(t, domain.StatePending, body.State)
	assert.Equal(t, "a@x.com", body.Email)
	return body.FlowID
}

func TestSignUpAndVerify(t *testing.T) {
	s := newTestServer(t, false)
	s.provider.setAttempt(domain.VerificationAttempt{Status: domain.StatusComplete, AccountID: "u1", SessionID: "s1"})

	id := signUp(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup/"+id+"/verify", `{"code":"12345"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := strings.Join(resp.Header.Values("Set-Cookie"), "\n")
	body := decode[domain.VerifyEmailResponse](t, resp)

	assert.Equal(t, domain.StateSuccess, body.State)
	assert.Equal(t, "s1", body.SessionID)
	assert.Equal(t, "You have successfully verified your account.", body.Message)
	assert.Equal(t, testRedirect, body.RedirectURL)
	assert.Contains(t, cookies, "zitadel:session_token=tok-s1")
	assert.Contains(t, cookies, "zitadel:expires_at=")

	assert.Equal(t, []domain.UserRegistrationRequest{{Name: "A", Email: "a@x.com", ClerkID: "u1"}}, s.registrar.calls())
	assert.Equal(t, []string{"s1"}, s.provider.activated)

	status := decode[domain.SignUpResponse](t, doJSON(t, s, http.MethodGet, "/api/auth/signup/"+id, ""))
	assert.Equal(t, domain.StateSuccess, status.State)
	assert.Empty(t, status.Error)
}

func TestSignUpValidation(t *testing.T) {
	s := newTestServer(t, false)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"email":"a@x.com","password":"Secret123"}`)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[domain.SignUpResponse](t, resp)
	assert.Equal(t, domain.StateDefault, body.State)
	assert.Equal(t, domain.ErrNameRequired.Error(), body.Error)
	assert.Empty(t, body.FlowID)
}

func TestSignUpMalformedBody(t *testing.T) {
	s := newTestServer(t, false)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignUpProviderError(t *testing.T) {
	s := newTestServer(t, false)
	s.provider.createErr = &domain.ProviderError{
		Op: "create account",
		Entries: []domain.ErrorEntry{
			{Code: "form_identifier_exists", Message: "taken", LongMessage: "That email address is taken. Please try another."},
		},
	}

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"name":"A","email":"a@x.com","password":"Secret123"}`)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[domain.SignUpResponse](t, resp)
	assert.Equal(t, domain.StateDefault, body.State)
	assert.Equal(t, "That email address is taken. Please try another.", body.Error)
}

func TestSignUpResubmitAfterDispatchFailure(t *testing.T) {
	s := newTestServer(t, false)
	s.provider.dispatchErr = &domain.ProviderError{
		Op:      "request email verification",
		Entries: []domain.ErrorEntry{{Code: "unavailable", Message: "Could not send the code."}},
	}

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"name":"A","email":"a@x.com","password":"Secret123"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	failed := decode[domain.SignUpResponse](t, resp)
	require.NotEmpty(t, failed.FlowID)
	assert.Equal(t, domain.StateDefault, failed.State)
	assert.Equal(t, "Could not send the code.", failed.Error)

	s.provider.mu.Lock()
	s.provider.dispatchErr = nil
	s.provider.createErr = errors.New("account already exists")
	s.provider.mu.Unlock()

	resp = doJSON(t, s, http.MethodPost, "/api/auth/signup",
		`{"flow_id":"`+failed.FlowID+`","name":"A","email":"a@x.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[domain.SignUpResponse](t, resp)
	assert.Equal(t, failed.FlowID, body.FlowID)
	assert.Equal(t, domain.StatePending, body.State)
	assert.Equal(t, 1, s.provider.creates())
}

func TestSignUpCreateFailureKeepsNoFlow(t *testing.T) {
	s := newTestServer(t, false)
	s.provider.createErr = errors.New("boom")

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"name":"A","email":"a@x.com","password":"Secret123"}`)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Empty(t, decode[domain.SignUpResponse](t, resp).FlowID)
}

func TestSignUpResubmitUnknownFlow(t *testing.T) {
	s := newTestServer(t, false)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"flow_id":"nope","name":"A","email":"a@x.com","password":"Secret123"}`)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, s.provider.creates())
}

func TestSignUpConcurrentSameEmailConflicts(t *testing.T) {
	s := newTestServer(t, false)
	gate := make(chan struct{})
	s.provider.createGate = gate

	first := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/signup",
			strings.NewReader(`{"name":"A","email":"a@x.com","password":"Secret123"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.app.Test(req, -1)
		if err != nil {
			first <- 0
			return
		}
		first <- resp.StatusCode
	}()

	require.Eventually(t, func() bool { return s.provider.creates() == 1 }, time.Second, 5*time.Millisecond)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"name":"B","email":" A@X.com ","password":"Secret123"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.ErrFlowBusy.Error(), decode[ErrorResponse](t, resp).Error)

	close(gate)
	assert.Equal(t, http.StatusCreated, <-first)
	assert.Equal(t, 1, s.provider.creates())

	// released once the first request finished
	s.provider.mu.Lock()
	s.provider.createGate = nil
	s.provider.mu.Unlock()
	resp = doJSON(t, s, http.MethodPost, "/api/auth/signup", `{"name":"A","email":"a@x.com","password":"Secret123"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestVerifyFailsThenSucceeds(t *testing.T) {
	s := newTestServer(t, false)
	s.provider.setAttempt(domain.VerificationAttempt{Status: domain.StatusNeedsMore, AccountID: "u1"})

	id := signUp(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup/"+id+"/verify", `{"code":"00000"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	failed := decode[domain.VerifyEmailResponse](t, resp)
	assert.Equal(t, domain.StateFailed, failed.State)
	assert.Equal(t, "verification failed", failed.Error)

	status := decode[domain.SignUpResponse](t, doJSON(t, s, http.MethodGet, "/api/auth/signup/"+id, ""))
	assert.Equal(t, domain.StateFailed, status.State)
	assert.Equal(t, "verification failed", status.Error)

	s.provider.setAttempt(domain.VerificationAttempt{Status: domain.StatusComplete, AccountID: "u1", SessionID: "s1"})
	resp = doJSON(t, s, http.MethodPost, "/api/auth/signup/"+id+"/verify", `{"code":"12345"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.StateSuccess, decode[domain.VerifyEmailResponse](t, resp).State)
}

func TestVerifyAfterSuccessConflicts(t *testing.T) {
	s := newTestServer(t, false)
	s.provider.setAttempt(domain.VerificationAttempt{Status: domain.StatusComplete, AccountID: "u1", SessionID: "s1"})
	id := signUp(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup/"+id+"/verify", `{"code":"12345"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, s, http.MethodPost, "/api/auth/signup/"+id+"/verify", `{"code":"12345"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Len(t, s.registrar.calls(), 1)
}

func TestVerifyMissingCode(t *testing.T) {
	s := newTestServer(t, false)
	id := signUp(t, s)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup/"+id+"/verify", `{"code":""}`)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.ErrCodeRequired.Error(), decode[ErrorResponse](t, resp).Error)
}

func TestUnknownSignUpFlow(t *testing.T) {
	s := newTestServer(t, false)

	resp := doJSON(t, s, http.MethodPost, "/api/auth/signup/nope/verify", `{"code":"12345"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, s, http.MethodGet, "/api/auth/signup/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
