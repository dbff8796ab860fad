package admin

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type sessions struct {
	db       bun.IDB
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
	logger   Logger
	provider LoggerProvider
}

var _ SessionStore = (*sessions)(nil)

// SessionsOption customizes the session store
type SessionsOption func(*sessions)

// WithSessionClock injects the clock used for issue, expiry and sweeps
func WithSessionClock(clock func() time.Time) SessionsOption {
	return func(s *sessions) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionTokenGenerator overrides the token source
func WithSessionTokenGenerator(gen func() (string, error)) SessionsOption {
	return func(s *sessions) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

// WithSessionsLoggerProvider sets the provider used to resolve the store logger
func WithSessionsLoggerProvider(provider LoggerProvider) SessionsOption {
	return func(s *sessions) {
		s.provider, s.logger = ResolveLogger("admin.sessions", provider, nil)
	}
}

// NewSessionStore returns a SessionStore backed by db
func NewSessionStore(db bun.IDB, cfg Config, opts ...SessionsOption) SessionStore {
	cfg = normalizeConfig(cfg)
	provider, logger := ResolveLogger("admin.sessions", nil, nil)

	s := &sessions{
		db:       db,
		ttl:      sessionTTL(cfg),
		now:      time.Now,
		newToken: NewSessionToken,
		logger:   logger,
		provider: provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *sessions) clock() time.Time {
	return s.now().UTC()
}

func (s *sessions) Issue(ctx context.Context, userID string, meta SessionMeta) (*Session, error) {
	userID = CanonicalUserID(userID)
	if userID == "" {
		return nil, ErrInvalidUserInput
	}

	token, err := s.newToken()
	if err != nil {
		return nil, persistenceFailure(err, "failed to generate session token", nil)
	}

	now := s.clock()
	record := &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		IPAddress: strings.TrimSpace(meta.IPAddress),
		UserAgent: strings.TrimSpace(meta.UserAgent),
	}

	// plain insert, a colliding key must fail instead of replacing the row
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, persistenceFailure(err, "failed to issue session", map[string]any{
			"user_id": userID,
		})
	}

	s.logger.Debug("session issued", "user_id", userID, "expires_at", record.ExpiresAt)

	return record, nil
}

func (s *sessions) Lookup(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	record := &Session{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.expires_at > ?", s.clock()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, persistenceFailure(err, "failed to lookup session", nil)
	}

	return record, nil
}

func (s *sessions) ListByOwner(ctx context.Context, userID string) ([]*Session, error) {
	userID = CanonicalUserID(userID)
	var records []*Session
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.expires_at > ?", s.clock()).
		OrderExpr("?TableAlias.created_at DESC").
		OrderExpr("?TableAlias.token ASC").
		Scan(ctx)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, persistenceFailure(err, "failed to list sessions", map[string]any{
			"user_id": userID,
		})
	}

	if records == nil {
		records = []*Session{}
	}

	return records, nil
}

func (s *sessions) Revoke(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	res, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, persistenceFailure(err, "failed to revoke session", nil)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, persistenceFailure(err, "failed to revoke session", nil)
	}

	return n > 0, nil
}

func (s *sessions) RevokeAllForOwner(ctx context.Context, userID string) (int, error) {
	userID = CanonicalUserID(userID)
	res, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, persistenceFailure(err, "failed to revoke user sessions", map[string]any{
			"user_id": userID,
		})
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistenceFailure(err, "failed to revoke user sessions", map[string]any{
			"user_id": userID,
		})
	}

	if n > 0 {
		s.logger.Info("sessions revoked", "user_id", userID, "count", n)
	}

	return int(n), nil
}

func (s *sessions) Extend(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	now := s.clock()
	expiresAt := now.Add(s.ttl)

	// the expiry guard lives in the same statement so an expired row can
	// never be moved back into the future
	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("expires_at = ?", expiresAt).
		Where("token = ?", token).
		Where("expires_at > ?", now).
		Exec(ctx)
	if err != nil {
		return nil, persistenceFailure(err, "failed to extend session", nil)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, persistenceFailure(err, "failed to extend session", nil)
	}

	if n == 0 {
		return nil, nil
	}

	return s.Lookup(ctx, token)
}

func (s *sessions) SweepExpired(ctx context.Context) (int, error) {
	res, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("expires_at <= ?", s.clock()).
		Exec(ctx)
	if err != nil {
		return 0, persistenceFailure(err, "failed to sweep expired sessions", nil)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistenceFailure(err, "failed to sweep expired sessions", nil)
	}

	return int(n), nil
}
