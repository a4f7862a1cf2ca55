package delivery

import (
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"signup-service/internal/domain"
	"signup-service/internal/flow"
	"signup-service/internal/service"
)

const verifiedMessage = "You have successfully verified your account."

// SignUpHandler - email sign-up and OTP verification
type SignUpHandler struct {
	handler
	flows *service.FlowStore[*flow.SignUp]

	// emails with a Submit in progress, across all flows
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSignUpHandler(deps Deps, flows *service.FlowStore[*flow.SignUp]) *SignUpHandler {
	return &SignUpHandler{
		handler:  newHandler(deps),
		flows:    flows,
		inFlight: make(map[string]struct{}),
	}
}

func (h *SignUpHandler) claim(email string) (release func(), ok bool) {
	key := strings.ToLower(strings.TrimSpace(email))

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inFlight[key]; busy {
		return nil, false
	}
	h.inFlight[key] = struct{}{}

	return func() {
		h.mu.Lock()
		delete(h.inFlight, key)
		h.mu.Unlock()
	}, true
}

// SignUp - creates the account and sends the email code. A body carrying
// flow_id resumes that flow.
// POST /api/auth/signup
func (h *SignUpHandler) SignUp(c *fiber.Ctx) error {
	var req domain.SignUpRequest

	if err := c.BodyParser(&req); err != nil {
		h.Logger.Warn("failed to parse sign-up request", zap.Error(err))
		return respondBadRequest(c, "Invalid request body")
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(domain.SignUpResponse{
			State: domain.StateDefault,
			Error: validationError(err).Error(),
		})
	}

	release, ok := h.claim(req.Email)
	if !ok {
		return respondFlowError(c, domain.ErrFlowBusy)
	}
	defer release()

	id := req.FlowID
	var f *flow.SignUp
	if id != "" {
		existing, err := h.flows.Get(id)
		if err != nil {
			return respondFlowError(c, err)
		}
		f = existing
	} else {
		f = flow.NewSignUp(h.Provider, h.Registrar, h.Logger, h.Metrics)
	}

	if err := f.Submit(c.UserContext(), flow.SignUpForm{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}); err != nil {
		if errors.Is(err, domain.ErrFlowBusy) || errors.Is(err, domain.ErrInvalidTransition) {
			return respondFlowError(c, err)
		}
		// Keep a flow whose account exists so a resubmit only re-sends the code.
		if id == "" && f.Snapshot().AccountID != "" {
			id = h.flows.Put(f)
			h.Logger.Info("sign-up flow kept after dispatch failure", zap.String("flow_id", id))
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(domain.SignUpResponse{
			FlowID: id,
			State:  domain.StateDefault,
			Error:  domain.FirstMessage(err),
		})
	}

	if id == "" {
		id = h.flows.Put(f)
	}
	h.Logger.Info("sign-up flow pending", zap.String("flow_id", id))

	return respondCreated(c, domain.SignUpResponse{
		FlowID:  id,
		State:   domain.StatePending,
		Email:   req.Email,
		Message: "We've sent a verification code to " + req.Email,
	})
}

// Status - current state of a sign-up flow
// GET /api/auth/signup/:id
func (h *SignUpHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	f, err := h.flows.Get(id)
	if err != nil {
		return respondFlowError(c, err)
	}

	snap := f.Snapshot()
	return respondOK(c, domain.SignUpResponse{
		FlowID: id,
		State:  snap.State.Name(),
		Email:  snap.Email,
		Error:  domain.ErrorMessage(snap.State),
	})
}

// Verify - submits the email code
// POST /api/auth/signup/:id/verify
func (h *SignUpHandler) Verify(c *fiber.Ctx) error {
	id := c.Params("id")
	f, err := h.flows.Get(id)
	if err != nil {
		return respondFlowError(c, err)
	}

	var req domain.VerifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		h.Logger.Warn("failed to parse verify request", zap.Error(err))
		return respondBadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return respondBadRequest(c, validationError(err).Error())
	}

	state, err := f.Verify(c.UserContext(), req.Code)
	if err != nil {
		return respondFlowError(c, err)
	}

	resp := domain.VerifyEmailResponse{FlowID: id, State: state.Name()}

	switch s := state.(type) {
	case domain.Failed:
		resp.Error = s.Message
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	case domain.Success:
		snap := f.Snapshot()
		resp.SessionID = snap.SessionID
		resp.Message = verifiedMessage
		resp.RedirectURL = h.RedirectURL
		h.issueCookies(c, snap.SessionID)
	}

	return respondOK(c, resp)
}

func (h *handler) issueCookies(c *fiber.Ctx, sessionID string) {
	if h.Sessions == nil {
		return
	}
	sess, ok := h.Sessions.Active(sessionID)
	if !ok {
		h.Logger.Warn("activated session not found for cookie", zap.String("session_id", sessionID))
		return
	}
	setSessionCookies(c, sess, h.SecureCookies)
}
