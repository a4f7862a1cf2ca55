package domain

// SignUpRequest - sign-up form submission. FlowID resumes a flow whose
// account was created but whose code could not be sent.
type SignUpRequest struct {
	FlowID   string `json:"flow_id,omitempty"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SignUpResponse - sign-up flow snapshot
type SignUpResponse struct {
	FlowID  string `json:"flow_id,omitempty"`
	State   string `json:"state"`
	Email   string `json:"email,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// VerifyEmailRequest - OTP code submission, passed to the provider verbatim
type VerifyEmailRequest struct {
	Code string `json:"code" validate:"required"`
}

// VerifyEmailResponse - result of an OTP submission
type VerifyEmailResponse struct {
	FlowID      string `json:"flow_id"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Message     string `json:"message,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}
