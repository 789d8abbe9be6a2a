package auth

import "time"

// AuditAction names a security-relevant transition.
type AuditAction string

const (
	AuditLoginSuccess      AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailed       AuditAction = "LOGIN_FAILED"
	AuditInvalidInput      AuditAction = "INVALID_INPUT"
	AuditAccountLocked     AuditAction = "ACCOUNT_LOCKED"
	AuditAccountUnlocked   AuditAction = "ACCOUNT_UNLOCKED"
	AuditAccountCreated    AuditAction = "ACCOUNT_CREATED"
	AuditAccountDisabled   AuditAction = "ACCOUNT_DEACTIVATED"
	AuditSessionExpired    AuditAction = "SESSION_EXPIRED"
	AuditSessionTerminated AuditAction = "SESSION_TERMINATED"
	AuditSessionLocked     AuditAction = "SESSION_LOCKED"
	AuditPasswordChanged   AuditAction = "PASSWORD_CHANGED"
	AuditPermissionDenied  AuditAction = "PERMISSION_DENIED"
	AuditPermissionsLoaded AuditAction = "PERMISSIONS_RELOADED"
)

// AuditOutcome is the result of the audited action.
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
)

// Failure reasons carried in AuditEvent.Detail.
const (
	ReasonLocked           = "locked"
	ReasonThrottled        = "throttled"
	ReasonUnknownIdentity  = "unknown_identity"
	ReasonInactive         = "inactive"
	ReasonWrongSecret      = "wrong_secret"
	ReasonStoreUnavailable = "store_unavailable"
	ReasonIdleTimeout      = "idle_timeout"
	ReasonLogout           = "logout"
	ReasonAdministrative   = "administrative"
)

// AuditEvent is an immutable, append-only security record.
// Username is empty when the event cannot be attributed to an identity.
type AuditEvent struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Username  string         `json:"username,omitempty"`
	Action    AuditAction    `json:"action"`
	Outcome   AuditOutcome   `json:"outcome"`
	Detail    string         `json:"detail,omitempty"`
	Client    ClientMetadata `json:"client"`
}
