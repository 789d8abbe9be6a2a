package service

import (
	"context"
	"log/slog"
	"strings"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
)

// LegacyUser is the user record shape returned by the old security manager API.
type LegacyUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// LegacySecurityManager exposes the old string-typed security manager calls
// on top of AuthService. It holds no state of its own; every call goes through
// the facade, so both APIs share one lockout table and one session index.
type LegacySecurityManager struct {
	auth   *AuthService
	logger *slog.Logger
}

// NewLegacySecurityManager wraps auth.
func NewLegacySecurityManager(auth *AuthService, logger *slog.Logger) *LegacySecurityManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &LegacySecurityManager{auth: auth, logger: logger.With("component", "legacy_security_manager")}
}

// AuthenticateUser returns (ok, user, message). The message is the facade's
// external message, so it never distinguishes unknown users from wrong passwords.
func (m *LegacySecurityManager) AuthenticateUser(
	ctx context.Context,
	username, password, host string,
) (bool, *LegacyUser, string) {
	res := m.auth.Authenticate(ctx, username, password, domainauth.ClientMetadata{Origin: host})
	if !res.Success {
		return false, nil, res.Message
	}
	sess, ok := m.auth.ValidateSession(ctx, res.SessionID)
	if !ok {
		return false, nil, domainauth.MessageUnavailable
	}
	return true, legacyUser(sess), res.Message
}

// ValidateSession reports whether sessionID is usable.
func (m *LegacySecurityManager) ValidateSession(ctx context.Context, sessionID string) bool {
	_, ok := m.auth.ValidateSession(ctx, sessionID)
	return ok
}

// GetCurrentUser returns the user behind sessionID, or nil.
func (m *LegacySecurityManager) GetCurrentUser(ctx context.Context, sessionID string) *LegacyUser {
	sess, ok := m.auth.ValidateSession(ctx, sessionID)
	if !ok {
		return nil
	}
	return legacyUser(sess)
}

// Logout ends the session. It never fails.
func (m *LegacySecurityManager) Logout(ctx context.Context, sessionID string) {
	m.auth.Logout(ctx, sessionID)
}

// CheckPermission checks a role name against "module.action" style pairs.
// Role names are parsed into the closed role set; an unknown name is denied.
func (m *LegacySecurityManager) CheckPermission(role, module, action string) bool {
	r, err := domainauth.ParseRole(role)
	if err != nil {
		m.logger.Warn("permission check for unknown role denied", "role", role)
		return false
	}
	return m.auth.HasRolePermission(r, normalize[domainauth.Module](module), normalize[domainauth.Action](action))
}

// CheckSessionPermission checks the role behind sessionID.
func (m *LegacySecurityManager) CheckSessionPermission(ctx context.Context, sessionID, module, action string) bool {
	return m.auth.HasPermission(ctx, sessionID, normalize[domainauth.Module](module), normalize[domainauth.Action](action))
}

// ChangePassword returns (ok, message).
func (m *LegacySecurityManager) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) (bool, string) {
	if err := m.auth.ChangePassword(ctx, username, oldPassword, newPassword, domainauth.ClientMetadata{}); err != nil {
		return false, legacyMessage(err)
	}
	return true, "Password changed"
}

func legacyUser(sess domainauth.Session) *LegacyUser {
	return &LegacyUser{
		ID:        sess.IdentityID,
		Username:  sess.Username,
		Role:      sess.Role.String(),
		SessionID: sess.ID,
	}
}

// legacyMessage maps a facade error to a message safe to show the user.
func legacyMessage(err error) string {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return err.Error()
	case apperrors.ErrCodeAuthentication:
		return domainauth.MessageInvalidCredentials
	case apperrors.ErrCodeLockedOut:
		return domainauth.MessageLockedOut
	default:
		return domainauth.MessageUnavailable
	}
}

func normalize[T ~string](s string) T {
	return T(strings.ToLower(strings.TrimSpace(s)))
}
