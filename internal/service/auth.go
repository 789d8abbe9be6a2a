package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-auth/config"
	"github.com/target/mmk-auth/internal/core"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
	"github.com/target/mmk-auth/internal/observability/metrics"
	"github.com/target/mmk-auth/internal/observability/statsd"
	"github.com/target/mmk-auth/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Identities  ports.IdentityStore    // Required
	Permissions ports.PermissionSource // Required
	Sessions    ports.SessionStore     // Optional: durable session mirror
	Lockouts    ports.LockoutStore     // Optional: durable lockout mirror
	Audit       ports.AuditSink        // Optional: events are only logged when nil
	Config      config.SecurityConfig
	Clock       ports.Clock  // Optional
	Logger      *slog.Logger // Optional
	Metrics     statsd.Sink  // Optional
}

// AuthService is the single entry point of the auth core. It orchestrates
// the hasher, lockout guard, session manager, permission resolver and audit
// log, and converts every failure into a structured result so callers never
// see internal detail.
type AuthService struct {
	identities ports.IdentityStore

	hasher   *core.Hasher
	lockout  *core.LockoutGuard
	sessions *core.SessionManager
	perms    *core.PermissionResolver
	audit    *core.AuditLog

	// dummy is verified against for unknown identities so every failed
	// lookup costs one full key derivation.
	dummy domainauth.Credential

	cfg     config.SecurityConfig
	clock   ports.Clock
	logger  *slog.Logger
	metrics statsd.Sink
	closed  atomic.Bool
}

// NewAuthService constructs an AuthService. Call Init before serving requests
// and Close when done.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Identities == nil {
		return nil, errors.New("IdentityStore is required")
	}
	if opts.Permissions == nil {
		return nil, errors.New("PermissionSource is required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := opts.Metrics
	if sink == nil {
		sink = statsd.Nop{}
	}
	cfg := opts.Config

	hasher := core.NewHasher(core.HasherOptions{Iterations: cfg.HashIterations, SaltLength: cfg.SaltLength})
	dummy, err := hasher.NewCredential(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("derive placeholder credential: %w", err)
	}

	return &AuthService{
		identities: opts.Identities,
		hasher:     hasher,
		lockout: core.NewLockoutGuard(core.LockoutGuardOptions{
			Config: core.LockoutConfig{
				Threshold:   cfg.LockoutThreshold,
				Window:      cfg.LockoutWindow,
				Duration:    cfg.LockoutDuration,
				TrackOrigin: cfg.LockoutTrackOrigin,
			},
			Clock:  clock,
			Store:  opts.Lockouts,
			Logger: logger,
		}),
		sessions: core.NewSessionManager(core.SessionManagerOptions{
			IdleTimeout: cfg.IdleTimeout,
			Clock:       clock,
			Store:       opts.Sessions,
			Logger:      logger,
		}),
		perms: core.NewPermissionResolver(core.PermissionResolverOptions{
			Source:    opts.Permissions,
			SuperRole: domainauth.Role(cfg.SuperRole),
			Clock:     clock,
			Logger:    logger,
		}),
		audit: core.NewAuditLog(core.AuditLogOptions{
			Sink:    opts.Audit,
			Clock:   clock,
			Logger:  logger,
			Metrics: sink,
		}),
		dummy:   dummy,
		cfg:     cfg,
		clock:   clock,
		logger:  logger.With("component", "auth_service"),
		metrics: sink,
	}, nil
}

// Init loads the permission mapping and restores persisted lockout counters.
// A mapping that cannot be loaded is fatal; lockout restore failures are not.
func (s *AuthService) Init(ctx context.Context) error {
	if err := s.ReloadPermissions(ctx); err != nil {
		return err
	}
	if err := s.lockout.Restore(ctx); err != nil {
		s.logger.WarnContext(ctx, "restore lockout counters failed", "error", err)
	}
	return nil
}

// Authenticate verifies username and secret and opens a session on success.
// Unknown identities, inactive identities and wrong secrets produce the same
// result. Any storage failure denies access.
func (s *AuthService) Authenticate(
	ctx context.Context,
	username, secret string,
	client domainauth.ClientMetadata,
) domainauth.AuthResult {
	start := time.Now()
	res, err := s.authenticate(ctx, strings.TrimSpace(username), secret, client)

	m := metrics.AuthMetric{Result: metrics.ResultSuccess, Code: string(res.ErrorCode), Duration: time.Since(start)}
	switch {
	case err != nil:
		m.Result, m.Err = metrics.ResultError, err
	case !res.Success:
		m.Result = metrics.ResultFailure
	}
	metrics.EmitAuthAttempt(s.metrics, m)
	return res
}

func (s *AuthService) authenticate(
	ctx context.Context,
	username, secret string,
	client domainauth.ClientMetadata,
) (domainauth.AuthResult, error) {
	if s.closed.Load() {
		return domainauth.Failed(domainauth.CodeUnavailable), nil
	}
	if username == "" || secret == "" {
		s.record(ctx, username, domainauth.AuditInvalidInput, domainauth.OutcomeFailure, "", client)
		return domainauth.Failed(domainauth.CodeInvalidInput), nil
	}

	keys := s.lockout.Keys(username, client.Origin)
	attempt, ok := s.lockout.Admit(keys...)
	if !ok {
		s.record(ctx, username, domainauth.AuditLoginFailed, domainauth.OutcomeFailure, s.rejectReason(keys), client)
		return domainauth.Failed(domainauth.CodeLockedOut), nil
	}

	identity, err := s.identities.LoadIdentityByUsername(ctx, username)
	switch {
	case isNotFound(err):
		s.hasher.VerifyCredential(secret, s.dummy)
		s.fail(ctx, attempt, nil, username, domainauth.ReasonUnknownIdentity, client)
		return domainauth.Failed(domainauth.CodeAuthenticationFailed), nil
	case err != nil:
		attempt.Release()
		s.logger.ErrorContext(ctx, "load identity failed", "username", username, "error", err)
		s.record(ctx, username, domainauth.AuditLoginFailed, domainauth.OutcomeFailure, domainauth.ReasonStoreUnavailable, client)
		return domainauth.Failed(domainauth.CodeUnavailable), apperrors.Wrap(err, apperrors.ErrCodeInternal, "load identity")
	}

	if !identity.Active {
		s.hasher.VerifyCredential(secret, s.dummy)
		s.fail(ctx, attempt, nil, username, domainauth.ReasonInactive, client)
		return domainauth.Failed(domainauth.CodeAuthenticationFailed), nil
	}

	now := s.clock.Now()
	if identity.IsLockedAt(now) {
		attempt.Release()
		s.record(ctx, identity.Username, domainauth.AuditLoginFailed, domainauth.OutcomeFailure, domainauth.ReasonLocked, client)
		return domainauth.Failed(domainauth.CodeLockedOut), nil
	}

	if !s.hasher.VerifyCredential(secret, identity.Credential) {
		s.fail(ctx, attempt, &identity, identity.Username, domainauth.ReasonWrongSecret, client)
		return domainauth.Failed(domainauth.CodeAuthenticationFailed), nil
	}

	attempt.Succeed(ctx)
	s.refreshIdentity(ctx, identity, secret, now)

	sess, err := s.sessions.Create(ctx, identity, client)
	if err != nil {
		s.logger.ErrorContext(ctx, "create session failed", "username", identity.Username, "error", err)
		return domainauth.Failed(domainauth.CodeUnavailable), err
	}

	s.record(ctx, identity.Username, domainauth.AuditLoginSuccess, domainauth.OutcomeSuccess, "", client)
	return domainauth.AuthResult{
		Success:   true,
		Username:  identity.Username,
		Role:      identity.Role,
		SessionID: sess.ID,
		Message:   domainauth.MessageLoginSucceeded,
	}, nil
}

// fail records a failed attempt and, when it engages a lock, audits the lock
// and stamps it on the identity so it survives a restart.
func (s *AuthService) fail(
	ctx context.Context,
	attempt *core.Attempt,
	identity *domainauth.Identity,
	username, reason string,
	client domainauth.ClientMetadata,
) {
	count := attempt.Fail(ctx)
	s.record(ctx, username, domainauth.AuditLoginFailed, domainauth.OutcomeFailure, reason, client)
	if count < s.lockout.Config().Threshold {
		return
	}

	until, locked := s.lockout.LockedUntil(core.IdentityKey(username))
	if !locked {
		metrics.EmitLockout(s.metrics, "origin")
		s.record(ctx, username, domainauth.AuditAccountLocked, domainauth.OutcomeFailure, "origin="+client.Origin, client)
		return
	}

	metrics.EmitLockout(s.metrics, "identity")
	s.record(ctx, username, domainauth.AuditAccountLocked, domainauth.OutcomeFailure,
		"until="+until.UTC().Format(time.RFC3339), client)

	if identity == nil {
		return
	}
	if err := s.identities.SetLockedUntil(ctx, identity.ID, &until, s.clock.Now()); err != nil {
		s.logger.WarnContext(ctx, "persist identity lock failed", "username", username, "error", err)
	}
}

// rejectReason tells a served lock apart from a full window of attempts
// still in flight, which Admit also turns away.
func (s *AuthService) rejectReason(keys []string) string {
	for _, key := range keys {
		if s.lockout.IsLocked(key) {
			return domainauth.ReasonLocked
		}
	}
	return domainauth.ReasonThrottled
}

// refreshIdentity clears a served lock and upgrades a weak credential after a
// successful login. Only the touched columns are written; the rehash is
// skipped when the credential changed since it was verified. Failures are
// logged only.
func (s *AuthService) refreshIdentity(ctx context.Context, identity domainauth.Identity, secret string, now time.Time) {
	if identity.LockedUntil != nil {
		if err := s.identities.SetLockedUntil(ctx, identity.ID, nil, now); err != nil {
			s.logger.WarnContext(ctx, "clear identity lock failed", "username", identity.Username, "error", err)
		}
	}
	if !s.hasher.NeedsRehash(identity.Credential) {
		return
	}
	cred, err := s.hasher.NewCredential(secret)
	if err != nil {
		s.logger.WarnContext(ctx, "rehash credential failed", "username", identity.Username, "error", err)
		return
	}
	updated, err := s.identities.UpdateCredential(ctx, identity.ID, identity.Credential.Digest, cred, now)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "store rehashed credential failed", "username", identity.Username, "error", err)
	case !updated:
		s.logger.InfoContext(ctx, "credential changed during login, rehash skipped", "username", identity.Username)
	}
}

// ValidateSession returns the live session for id. Not found and expired are
// reported the same way.
func (s *AuthService) ValidateSession(ctx context.Context, id string) (domainauth.Session, bool) {
	if s.closed.Load() {
		return domainauth.Session{}, false
	}
	sess, err := s.sessions.Validate(ctx, id)
	if err == nil {
		return sess, true
	}
	if apperrors.IsAppError(err, apperrors.ErrCodeSessionExpired) {
		s.record(ctx, sess.Username, domainauth.AuditSessionExpired, domainauth.OutcomeSuccess,
			domainauth.ReasonIdleTimeout, sess.Client)
		metrics.EmitSessionEnded(s.metrics, domainauth.ReasonIdleTimeout, 1)
	}
	return domainauth.Session{}, false
}

// Logout ends the session. It reports whether a live session was ended;
// repeated calls are no-ops.
func (s *AuthService) Logout(ctx context.Context, id string) bool {
	sess, ok := s.sessions.Terminate(ctx, id)
	if !ok {
		return false
	}
	s.record(ctx, sess.Username, domainauth.AuditSessionTerminated, domainauth.OutcomeSuccess,
		domainauth.ReasonLogout, sess.Client)
	metrics.EmitSessionEnded(s.metrics, domainauth.ReasonLogout, 1)
	return true
}

// HasPermission resolves the session's role and checks it. An unusable
// session is denied.
func (s *AuthService) HasPermission(
	ctx context.Context,
	sessionID string,
	module domainauth.Module,
	action domainauth.Action,
) bool {
	sess, ok := s.ValidateSession(ctx, sessionID)
	if !ok {
		return false
	}
	if s.perms.HasPermission(sess.Role, module, action) {
		return true
	}
	s.record(ctx, sess.Username, domainauth.AuditPermissionDenied, domainauth.OutcomeFailure,
		domainauth.Capability{Module: module, Action: action}.String(), sess.Client)
	return false
}

// HasRolePermission checks a role directly, without a session.
func (s *AuthService) HasRolePermission(role domainauth.Role, module domainauth.Module, action domainauth.Action) bool {
	return s.perms.HasPermission(role, module, action)
}

// Capabilities returns a copy of the role's capability set.
func (s *AuthService) Capabilities(role domainauth.Role) domainauth.CapabilitySet {
	return s.perms.Capabilities(role)
}

// CreateIdentity registers a new active identity.
func (s *AuthService) CreateIdentity(
	ctx context.Context,
	username, secret string,
	role domainauth.Role,
) (domainauth.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domainauth.Identity{}, apperrors.ValidationField("username", "username is required")
	}
	if !role.Valid() {
		return domainauth.Identity{}, apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", role))
	}
	if err := core.ValidateSecret(secret, s.cfg.MinSecretLength); err != nil {
		return domainauth.Identity{}, err
	}

	_, err := s.identities.LoadIdentityByUsername(ctx, username)
	switch {
	case err == nil:
		return domainauth.Identity{}, &apperrors.AppError{
			Code:    apperrors.ErrCodeConflict,
			Message: "identity already exists",
			Field:   "username",
		}
	case !isNotFound(err):
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load identity")
	}

	cred, err := s.hasher.NewCredential(secret)
	if err != nil {
		return domainauth.Identity{}, err
	}
	now := s.clock.Now()
	identity := domainauth.Identity{
		ID:         uuid.NewString(),
		Username:   username,
		Credential: cred,
		Role:       role,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.identities.SaveIdentity(ctx, identity); err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "save identity")
	}
	s.record(ctx, username, domainauth.AuditAccountCreated, domainauth.OutcomeSuccess, string(role), domainauth.ClientMetadata{})
	return identity, nil
}

// ChangePassword replaces the credential after verifying the current secret.
// Wrong current secrets count toward the lockout like failed logins.
func (s *AuthService) ChangePassword(
	ctx context.Context,
	username, current, next string,
	client domainauth.ClientMetadata,
) error {
	username = strings.TrimSpace(username)
	if username == "" || current == "" {
		return apperrors.Validation("username and current secret are required")
	}
	if err := core.ValidateSecret(next, s.cfg.MinSecretLength); err != nil {
		return err
	}

	keys := s.lockout.Keys(username, client.Origin)
	attempt, ok := s.lockout.Admit(keys...)
	if !ok {
		s.record(ctx, username, domainauth.AuditPasswordChanged, domainauth.OutcomeFailure, s.rejectReason(keys), client)
		return apperrors.LockedOut(domainauth.MessageLockedOut)
	}

	identity, err := s.identities.LoadIdentityByUsername(ctx, username)
	switch {
	case isNotFound(err):
		s.hasher.VerifyCredential(current, s.dummy)
		s.fail(ctx, attempt, nil, username, domainauth.ReasonUnknownIdentity, client)
		return apperrors.AuthenticationFailed(nil)
	case err != nil:
		attempt.Release()
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "load identity")
	case !identity.Active:
		s.hasher.VerifyCredential(current, s.dummy)
		s.fail(ctx, attempt, nil, username, domainauth.ReasonInactive, client)
		return apperrors.AuthenticationFailed(nil)
	}
	if !s.hasher.VerifyCredential(current, identity.Credential) {
		s.fail(ctx, attempt, &identity, identity.Username, domainauth.ReasonWrongSecret, client)
		return apperrors.AuthenticationFailed(nil)
	}
	attempt.Succeed(ctx)

	// Conditional on the verified digest: a concurrent reset wins.
	if err := s.replaceCredential(ctx, identity, identity.Credential.Digest, next); err != nil {
		return err
	}
	s.record(ctx, identity.Username, domainauth.AuditPasswordChanged, domainauth.OutcomeSuccess, "", client)
	return nil
}

// SetPassword replaces the credential without the current secret. It is an
// administrative action.
func (s *AuthService) SetPassword(ctx context.Context, username, next string) error {
	if err := core.ValidateSecret(next, s.cfg.MinSecretLength); err != nil {
		return err
	}
	identity, err := s.loadIdentity(ctx, username)
	if err != nil {
		return err
	}
	if err := s.replaceCredential(ctx, identity, nil, next); err != nil {
		return err
	}
	s.record(ctx, identity.Username, domainauth.AuditPasswordChanged, domainauth.OutcomeSuccess,
		domainauth.ReasonAdministrative, domainauth.ClientMetadata{})
	return nil
}

// replaceCredential hashes secret and stores it. A non-nil previous digest
// makes the write conditional on the credential being unchanged.
func (s *AuthService) replaceCredential(
	ctx context.Context,
	identity domainauth.Identity,
	previous []byte,
	secret string,
) error {
	cred, err := s.hasher.NewCredential(secret)
	if err != nil {
		return err
	}
	updated, err := s.identities.UpdateCredential(ctx, identity.ID, previous, cred, s.clock.Now())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "update credential")
	}
	if !updated {
		return apperrors.Conflict("credential was changed concurrently")
	}
	return nil
}

// Unlock clears the identity's failure window and any persisted lock.
func (s *AuthService) Unlock(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	s.lockout.Reset(ctx, core.IdentityKey(username))

	identity, err := s.loadIdentity(ctx, username)
	if err != nil {
		return err
	}
	if identity.LockedUntil != nil {
		if err := s.identities.SetLockedUntil(ctx, identity.ID, nil, s.clock.Now()); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "clear identity lock")
		}
	}
	s.record(ctx, identity.Username, domainauth.AuditAccountUnlocked, domainauth.OutcomeSuccess,
		domainauth.ReasonAdministrative, domainauth.ClientMetadata{})
	return nil
}

// LockSessions ends every live session of username and returns how many
// were ended.
func (s *AuthService) LockSessions(ctx context.Context, username string) (int, error) {
	identity, err := s.loadIdentity(ctx, username)
	if err != nil {
		return 0, err
	}
	return s.lockSessions(ctx, identity), nil
}

func (s *AuthService) lockSessions(ctx context.Context, identity domainauth.Identity) int {
	ended := s.sessions.LockIdentity(ctx, identity.ID)
	for _, sess := range ended {
		s.record(ctx, sess.Username, domainauth.AuditSessionLocked, domainauth.OutcomeSuccess,
			domainauth.ReasonAdministrative, sess.Client)
	}
	metrics.EmitSessionEnded(s.metrics, domainauth.ReasonAdministrative, len(ended))
	return len(ended)
}

// Deactivate disables the identity and ends its live sessions. Identities
// are never deleted.
func (s *AuthService) Deactivate(ctx context.Context, username string) error {
	identity, err := s.loadIdentity(ctx, username)
	if err != nil {
		return err
	}
	if identity.Active {
		if err := s.identities.SetActive(ctx, identity.ID, false, s.clock.Now()); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "deactivate identity")
		}
		s.record(ctx, identity.Username, domainauth.AuditAccountDisabled, domainauth.OutcomeSuccess,
			domainauth.ReasonAdministrative, domainauth.ClientMetadata{})
	}
	s.lockSessions(ctx, identity)
	return nil
}

// ReloadPermissions rebuilds the role mapping from its source. On failure the
// previous mapping stays in force.
func (s *AuthService) ReloadPermissions(ctx context.Context) error {
	if err := s.perms.Reload(ctx); err != nil {
		s.record(ctx, "", domainauth.AuditPermissionsLoaded, domainauth.OutcomeFailure, err.Error(), domainauth.ClientMetadata{})
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "reload permissions")
	}
	version, _ := s.perms.Version()
	s.record(ctx, "", domainauth.AuditPermissionsLoaded, domainauth.OutcomeSuccess,
		fmt.Sprintf("version=%d", version), domainauth.ClientMetadata{})
	return nil
}

// SweepResult reports what a sweep removed.
type SweepResult struct {
	ExpiredSessions int
	LockoutKeys     int
}

// Sweep expires idle sessions and drops stale lockout windows.
func (s *AuthService) Sweep(ctx context.Context) SweepResult {
	expired := s.sessions.Sweep(ctx)
	for _, sess := range expired {
		s.record(ctx, sess.Username, domainauth.AuditSessionExpired, domainauth.OutcomeSuccess,
			domainauth.ReasonIdleTimeout, sess.Client)
	}
	metrics.EmitSessionEnded(s.metrics, domainauth.ReasonIdleTimeout, len(expired))
	return SweepResult{ExpiredSessions: len(expired), LockoutKeys: s.lockout.Sweep(ctx)}
}

// Stats returns the sizes of the in-memory tables.
func (s *AuthService) Stats() metrics.LiveState {
	version, _ := s.perms.Version()
	return metrics.LiveState{
		Sessions:       s.sessions.Count(),
		LockoutKeys:    s.lockout.Len(),
		PermissionsRev: version,
	}
}

// Close stops the service. Later authentications fail as unavailable and
// the live session index is dropped. It is safe to call more than once.
func (s *AuthService) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.sessions.Close()
	s.logger.Info("auth service closed")
}

func (s *AuthService) loadIdentity(ctx context.Context, username string) (domainauth.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domainauth.Identity{}, apperrors.ValidationField("username", "username is required")
	}
	identity, err := s.identities.LoadIdentityByUsername(ctx, username)
	if isNotFound(err) {
		return domainauth.Identity{}, apperrors.NotFound("identity not found")
	}
	if err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load identity")
	}
	return identity, nil
}

func (s *AuthService) record(
	ctx context.Context,
	username string,
	action domainauth.AuditAction,
	outcome domainauth.AuditOutcome,
	detail string,
	client domainauth.ClientMetadata,
) {
	s.audit.Record(ctx, domainauth.AuditEvent{
		Username: username,
		Action:   action,
		Outcome:  outcome,
		Detail:   detail,
		Client:   client,
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound) || apperrors.IsNotFound(err)
}
