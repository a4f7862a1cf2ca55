package service

// IdentityProvider joins the Zitadel account operations with the SSO broker
// into the single provider the flows talk to.
type IdentityProvider struct {
	*ZitadelService
	*SSOService
}

func NewIdentityProvider(accounts *ZitadelService, sso *SSOService) *IdentityProvider {
	return &IdentityProvider{ZitadelService: accounts, SSOService: sso}
}
