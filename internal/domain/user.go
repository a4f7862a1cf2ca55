package domain

// Strategy identifies a provider verification or SSO strategy.
type Strategy string

const (
	StrategyEmailCode   Strategy = "email_code"
	StrategyOAuthGoogle Strategy = "oauth_google"
)

// Account - pending account created by the identity provider
type Account struct {
	ID string
}

// VerificationStatus of an email verification attempt
type VerificationStatus string

const (
	StatusComplete  VerificationStatus = "complete"
	StatusNeedsMore VerificationStatus = "needs_more"
)

// VerificationAttempt - outcome of submitting an OTP code to the provider
type VerificationAttempt struct {
	Status    VerificationStatus
	AccountID string
	SessionID string
}

// SSOResult - payload returned by a provider-hosted SSO flow.
// CreatedAccountID is set only when the flow created a new account.
type SSOResult struct {
	SessionID        string
	CreatedAccountID string
	FirstName        string
	LastName         string
	Email            string
}

// UserRegistrationRequest - body of the user registration call.
// The clerkId key is the external contract and must not be renamed.
type UserRegistrationRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	ClerkID string `json:"clerkId"`
}
