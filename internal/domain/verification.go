package domain

// VerificationState is the state of an email sign-up flow. Exactly one
// variant is current at any time; only Failed carries a message.
type VerificationState interface {
	Name() string
	verificationState()
}

const (
	StateDefault = "default"
	StatePending = "pending"
	StateSuccess = "success"
	StateFailed  = "failed"
)

type (
	Default struct{}
	Pending struct{}
	Success struct{}
	Failed  struct{ Message string }
)

func (Default) Name() string { return StateDefault }
func (Pending) Name() string { return StatePending }
func (Success) Name() string { return StateSuccess }
func (Failed) Name() string  { return StateFailed }

func (Default) verificationState() {}
func (Pending) verificationState() {}
func (Success) verificationState() {}
func (Failed) verificationState()  {}

// ErrorMessage returns the display message of a Failed state, or "" for
// every other variant.
func ErrorMessage(s VerificationState) string {
	if f, ok := s.(Failed); ok {
		return f.Message
	}
	return ""
}
