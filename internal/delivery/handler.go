package delivery

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"signup-service/internal/flow"
	"signup-service/internal/observability"
	"signup-service/internal/service"
)

// SessionLookup returns sessions that a flow has activated.
type SessionLookup interface {
	Active(sessionID string) (service.IssuedSession, bool)
}

// Deps - collaborators shared by the flow handlers
type Deps struct {
	Provider  flow.IdentityProvider
	Registrar flow.UserRegistrar
	Sessions  SessionLookup
	// RedirectURL is the app deep link shown after a successful sign-in.
	RedirectURL   string
	SecureCookies bool
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

type handler struct {
	Deps
	validate *validator.Validate
}

func newHandler(deps Deps) handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return handler{Deps: deps, validate: validator.New()}
}
