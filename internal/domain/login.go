package domain

// OAuth flow states exposed over HTTP
const (
	OAuthStatePending    = "pending"
	OAuthStateSuccess    = "success"
	OAuthStateIncomplete = "incomplete"
	OAuthStateFailed     = "failed"
)

// OAuthStartResponse - returned when a provider-hosted SSO flow is launched
type OAuthStartResponse struct {
	FlowID           string `json:"flow_id"`
	AuthorizationURL string `json:"authorization_url"`
}

// OAuthStatusResponse - snapshot of an SSO flow
type OAuthStatusResponse struct {
	FlowID      string `json:"flow_id"`
	State       string `json:"state"`
	SessionID   string `json:"session_id,omitempty"`
	NewAccount  bool   `json:"new_account"`
	Error       string `json:"error,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}
