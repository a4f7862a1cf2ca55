package service

import (
	"context"
	"fmt"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"signup-service/internal/config"
)

// OIDCExchanger drives the authorization code flow against an external
// OpenID provider such as Google.
type OIDCExchanger struct {
	relyingParty rp.RelyingParty
	issuer       string
}

// NewOIDCExchanger discovers the issuer and builds the relying party.
func NewOIDCExchanger(ctx context.Context, cfg config.GoogleConfig, redirectURI string, logger *zap.Logger) (*OIDCExchanger, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}

	logger.Info("initializing oidc relying party",
		zap.String("issuer", cfg.Issuer),
		zap.String("client_id", cfg.ClientID),
		zap.String("redirect_uri", redirectURI))

	party, err := rp.NewRelyingPartyOIDC(
		ctx,
		cfg.Issuer,
		cfg.ClientID,
		cfg.ClientSecret,
		redirectURI,
		[]string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &OIDCExchanger{relyingParty: party, issuer: cfg.Issuer}, nil
}

// AuthURL returns the provider's consent page for the given state.
func (e *OIDCExchanger) AuthURL(state string) string {
	return rp.AuthURL(state, e.relyingParty, func() []oauth2.AuthCodeOption {
		return []oauth2.AuthCodeOption{
			oauth2.AccessTypeOnline,
			oauth2.SetAuthURLParam("prompt", "select_account"),
		}
	})
}

// Exchange trades the authorization code for verified ID token claims.
func (e *OIDCExchanger) Exchange(ctx context.Context, code string) (SSOProfile, error) {
	tokens, err := rp.CodeExchange[*oidc.IDTokenClaims](ctx, code, e.relyingParty)
	if err != nil {
		return SSOProfile{}, newProviderError("exchange code", "oauth_access_denied", err.Error(),
			"We could not complete the sign in with your provider.", err)
	}

	claims := tokens.IDTokenClaims
	if claims == nil || claims.Email == "" {
		return SSOProfile{}, newProviderError("exchange code", "oauth_missing_email", "id token carries no email",
			"Your provider account has no email address.", nil)
	}

	return SSOProfile{
		Subject:       claims.Subject,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}
