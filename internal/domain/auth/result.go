package auth

// ErrorCode is the externally visible failure kind of an AuthResult.
type ErrorCode string

const (
	CodeNone                 ErrorCode = ""
	CodeInvalidInput         ErrorCode = "invalid_input"
	CodeAuthenticationFailed ErrorCode = "authentication_failed"
	CodeLockedOut            ErrorCode = "locked_out"
	CodeUnavailable          ErrorCode = "unavailable"
)

// External messages. Unknown identities, inactive identities and wrong secrets
// all share MessageInvalidCredentials.
const (
	MessageLoginSucceeded     = "Login successful"
	MessageInvalidInput       = "Username and password are required"
	MessageInvalidCredentials = "Invalid username or password"
	MessageLockedOut          = "Too many failed attempts. Try again later"
	MessageUnavailable        = "Authentication is temporarily unavailable"
)

// AuthResult is the structured outcome of Authenticate. It never carries
// internal error detail.
type AuthResult struct {
	Success   bool      `json:"success"`
	Username  string    `json:"username,omitempty"`
	Role      Role      `json:"role,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
}

// Failed builds a failure result for code with its canonical message.
func Failed(code ErrorCode) AuthResult {
	msg := MessageInvalidCredentials
	switch code {
	case CodeInvalidInput:
		msg = MessageInvalidInput
	case CodeLockedOut:
		msg = MessageLockedOut
	case CodeUnavailable:
		msg = MessageUnavailable
	}
	return AuthResult{Message: msg, ErrorCode: code}
}
