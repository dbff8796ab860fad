package admin

import (
	"context"
	"strings"
)

// Identity is the verdict of a successful authentication
type Identity struct {
	User    UserPublic `json:"user"`
	Token   string     `json:"-"`
	Session *Session   `json:"session,omitempty"`
}

// AuthGuard turns request credentials into an identity. It never mutates
// sessions or users.
type AuthGuard struct {
	sessions   SessionStore
	users      UserFinder
	cookieName string
	logger     Logger
	provider   LoggerProvider
}

// GuardOption customizes the guard
type GuardOption func(*AuthGuard)

// WithGuardLogger overrides the guard logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *AuthGuard) {
		g.provider, g.logger = ResolveLogger("admin.guard", g.provider, logger)
	}
}

// WithGuardLoggerProvider resolves the guard logger from provider
func WithGuardLoggerProvider(provider LoggerProvider) GuardOption {
	return func(g *AuthGuard) {
		g.provider, g.logger = ResolveLogger("admin.guard", provider, nil)
	}
}

func NewAuthGuard(sessions SessionStore, users UserFinder, cfg Config, opts ...GuardOption) *AuthGuard {
	cfg = normalizeConfig(cfg)
	provider, logger := ResolveLogger("admin.guard", nil, nil)

	g := &AuthGuard{
		sessions:   sessions,
		users:      users,
		cookieName: cfg.GetSessionCookieName(),
		logger:     logger,
		provider:   provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Authenticate resolves creds to an identity. A nil identity with a nil
// error means the request is unauthenticated; errors are store failures.
func (g *AuthGuard) Authenticate(ctx context.Context, creds RequestCredentials) (*Identity, error) {
	token := g.ExtractToken(creds)
	if token == "" {
		return nil, nil
	}

	session, err := g.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		g.logger.Debug("session not found or expired")
		return nil, nil
	}

	user, err := g.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		g.logger.Debug("session owner missing or inactive", "user_id", session.UserID)
		return nil, nil
	}

	return &Identity{
		User:    *user,
		Token:   token,
		Session: session,
	}, nil
}

// ExtractToken returns the bearer token, falling back to the session cookie
// only when no Authorization header was sent.
func (g *AuthGuard) ExtractToken(creds RequestCredentials) string {
	if creds == nil {
		return ""
	}

	if header := strings.TrimSpace(creds.Header("Authorization")); header != "" {
		return bearerToken(header)
	}

	return strings.TrimSpace(creds.Cookies(g.cookieName))
}

// Authorize is the role predicate over an authenticated user
func (g *AuthGuard) Authorize(user *UserPublic, allowed ...Role) bool {
	return HasRole(user, allowed...)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
