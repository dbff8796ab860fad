package admin

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Authenticator verifies operator credentials and turns them into sessions
type Authenticator struct {
	directory *UserDirectory
	sessions  SessionStore
	audit     AuditRecorder
	now       func() time.Time
	logger    Logger
}

// NewAuthenticator returns an Authenticator. A nil recorder disables auditing.
func NewAuthenticator(directory *UserDirectory, sessions SessionStore, audit AuditRecorder) *Authenticator {
	_, logger := ResolveLogger("admin.auth", nil, nil)
	return &Authenticator{
		directory: directory,
		sessions:  sessions,
		audit:     normalizeAuditRecorder(audit),
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock sets the clock used for audit timestamps
func (s *Authenticator) WithClock(clock func() time.Time) *Authenticator {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Login checks email and secret and issues a session. Unknown users,
// inactive users and wrong secrets all fail with ErrInvalidLogin.
func (s *Authenticator) Login(ctx context.Context, email, secret string, meta SessionMeta) (*Identity, error) {
	email = normalizeEmail(email)

	user, err := s.directory.findCredentials(ctx, email)
	if err != nil {
		s.logger.Error("Login find user error", "error", err)
		return nil, err
	}

	if user == nil {
		s.loginFailed(ctx, "", email, "unknown user", meta)
		return nil, ErrInvalidLogin
	}

	if !user.IsActive {
		s.loginFailed(ctx, user.ID.String(), email, "inactive user", meta)
		return nil, ErrInvalidLogin
	}

	if err := CompareSecret(secret, user.PasswordSecret); err != nil {
		reason := "secret mismatch"
		if !errors.Is(err, ErrMismatchedSecret) {
			reason = "secret check failed"
			s.logger.Error("Login compare secret error", "error", err)
		}
		s.loginFailed(ctx, user.ID.String(), email, reason, meta)
		return nil, ErrInvalidLogin
	}

	session, err := s.sessions.Issue(ctx, user.ID.String(), meta)
	if err != nil {
		s.logger.Error("Login issue session error", "error", err)
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		ActorUserID:  ActorUser(user.ID.String()),
		Action:       ActionLoginSuccess,
		ResourceType: ResourceTypeUser,
		ResourceID:   user.ID.String(),
		Metadata: Metadata{
			"email":      email,
			"ip_address": meta.IPAddress,
		},
		CreatedAt: s.now(),
	})

	return &Identity{
		User:    *user.Public(),
		Token:   session.Token,
		Session: session,
	}, nil
}

// Logout revokes token. It reports false when the session was already gone.
func (s *Authenticator) Logout(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	session, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return false, err
	}

	revoked, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		s.logger.Error("Logout revoke error", "error", err)
		return false, err
	}

	if revoked && session != nil {
		s.audit.Record(ctx, AuditEntry{
			ActorUserID:  ActorUser(session.UserID),
			Action:       ActionLogout,
			ResourceType: ResourceTypeUser,
			ResourceID:   session.UserID,
			CreatedAt:    s.now(),
		})
	}

	return revoked, nil
}

func (s *Authenticator) loginFailed(ctx context.Context, userID, email, reason string, meta SessionMeta) {
	s.logger.Warn("Login rejected", "reason", reason)
	s.audit.Record(ctx, AuditEntry{
		ActorUserID:  ActorUser(userID),
		Action:       ActionLoginFailure,
		ResourceType: ResourceTypeUser,
		ResourceID:   userID,
		Metadata: Metadata{
			"email":      email,
			"reason":     reason,
			"ip_address": meta.IPAddress,
		},
		CreatedAt: s.now(),
	})
}
