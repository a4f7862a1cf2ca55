package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"signup-service/internal/domain"
	"signup-service/internal/flow"
	"signup-service/internal/service"
)

const defaultStartTimeout = 10 * time.Second

// CallbackBroker receives the provider's redirect.
type CallbackBroker interface {
	HandleCallback(state, code, errCode, errDescription string) (redirectURL string, err error)
}

// OAuthHandler - Google single sign-on
type OAuthHandler struct {
	handler
	flows      *service.FlowStore[*flow.OAuth]
	callbacks  CallbackBroker
	ssoTimeout time.Duration
	// startTimeout bounds how long StartGoogle waits for the consent URL.
	startTimeout time.Duration
}

func NewOAuthHandler(deps Deps, flows *service.FlowStore[*flow.OAuth], callbacks CallbackBroker, ssoTimeout time.Duration) *OAuthHandler {
	return &OAuthHandler{
		handler:      newHandler(deps),
		flows:        flows,
		callbacks:    callbacks,
		ssoTimeout:   ssoTimeout,
		startTimeout: defaultStartTimeout,
	}
}

// StartGoogle - launches the SSO flow in the background and returns the
// consent URL the app should open
// POST /api/auth/oauth/google
func (h *OAuthHandler) StartGoogle(c *fiber.Ctx) error {
	f := flow.NewOAuth(h.Provider, h.Registrar, h.RedirectURL, h.Logger, h.Metrics)
	id := h.flows.Put(f)

	authURLs := make(chan string, 1)
	done := make(chan struct{})

	// The flow outlives this request; it ends on callback or timeout.
	ctx, cancel := context.WithTimeout(context.Background(), h.ssoTimeout+time.Minute)
	ctx = service.WithAuthURLSink(ctx, func(authURL string) {
		select {
		case authURLs <- authURL:
		default:
		}
	})

	go func() {
		defer cancel()
		defer close(done)
		if _, err := f.Run(ctx); err != nil {
			h.Logger.Warn("oauth flow ended with error", zap.String("flow_id", id), zap.Error(err))
		}
	}()

	timer := time.NewTimer(h.startTimeout)
	defer timer.Stop()

	select {
	case authURL := <-authURLs:
		h.Logger.Info("oauth flow started", zap.String("flow_id", id))
		return respondOK(c, domain.OAuthStartResponse{FlowID: id, AuthorizationURL: authURL})
	case <-done:
		msg := f.Outcome().Error
		if msg == "" {
			msg = "Sign in could not be started"
		}
		return respondWithError(c, fiber.StatusBadGateway, msg)
	case <-timer.C:
		return respondWithError(c, fiber.StatusGatewayTimeout, "Timed out starting the sign in")
	}
}

// Callback - provider redirect target; forwards the code to the waiting
// flow and sends the user agent back to the app
// GET /api/auth/oauth/callback
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	redirectURL, err := h.callbacks.HandleCallback(
		c.Query("state"),
		c.Query("code"),
		c.Query("error"),
		c.Query("error_description"),
	)
	if err != nil {
		if errors.Is(err, domain.ErrSSOStateUnknown) {
			return respondBadRequest(c, err.Error())
		}
		return respondInternalError(c, "Failed to handle callback", err.Error())
	}

	return c.Redirect(redirectURL, fiber.StatusFound)
}

// Status - current outcome of an SSO flow; sets the session cookie once
// the flow succeeded
// GET /api/auth/oauth/:id
func (h *OAuthHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	f, err := h.flows.Get(id)
	if err != nil {
		return respondFlowError(c, err)
	}

	out := f.Outcome()
	resp := domain.OAuthStatusResponse{
		FlowID:     id,
		State:      out.State,
		SessionID:  out.SessionID,
		NewAccount: out.CreatedAccountID != "",
		Error:      out.Error,
	}
	if out.State == domain.OAuthStateSuccess {
		resp.RedirectURL = f.RedirectURL()
		h.issueCookies(c, out.SessionID)
	}
	// A finished outcome is handed out once; the flow ID is not reusable
	// for fetching the session cookies again.
	if out.State != domain.OAuthStatePending {
		h.flows.Delete(id)
	}

	return respondOK(c, resp)
}
