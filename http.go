package admin

import (
	"context"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RouteGuard wires the AuthGuard and the audit ledger into go-router
// middleware. A missing identity maps to 401 and a failed role check to 403.
type RouteGuard struct {
	guard  *AuthGuard
	audit  AuditRecorder
	Logger Logger
}

func NewRouteGuard(guard *AuthGuard, audit AuditRecorder) *RouteGuard {
	_, logger := ResolveLogger("admin.http", nil, nil)
	return &RouteGuard{
		guard:  guard,
		audit:  normalizeAuditRecorder(audit),
		Logger: logger,
	}
}

type guardedRequest interface {
	RequestCredentials
	Context() context.Context
	SetContext(ctx context.Context)
}

// RequireSession authenticates the request and stores the identity in the
// request context.
func (a *RouteGuard) RequireSession() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if status := a.authenticate(ctx); status != http.StatusOK {
				return ctx.Status(status).SendString(http.StatusText(status))
			}
			return next(ctx)
		}
	}
}

// RequireRoles rejects requests whose identity is missing a role in allowed.
// It expects RequireSession to run first.
func (a *RouteGuard) RequireRoles(allowed ...Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if status := a.authorize(ctx.Context(), allowed...); status != http.StatusOK {
				return ctx.Status(status).SendString(http.StatusText(status))
			}
			return next(ctx)
		}
	}
}

// AuditRequests records one ledger entry per handled request. The action is
// derived from the path.
func (a *RouteGuard) AuditRequests() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			err := next(ctx)
			a.audit.Record(ctx.Context(), requestAuditEntry(ctx.Context(), ctx.Method(), ctx.Path(), err))
			return err
		}
	}
}

// Handler is the net/http flavor of RequireSession plus RequireRoles.
func (a *RouteGuard) Handler(next http.Handler, allowed ...Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &httpRequest{r: r}
		status := a.authenticate(req)
		if status == http.StatusOK && len(allowed) > 0 {
			status = a.authorize(req.Context(), allowed...)
		}
		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, req.r)
	})
}

func (a *RouteGuard) authenticate(req guardedRequest) int {
	identity, err := a.guard.Authenticate(req.Context(), req)
	if err != nil {
		a.Logger.Error("authenticate request error", "error", err)
		return http.StatusInternalServerError
	}
	if identity == nil {
		return http.StatusUnauthorized
	}
	req.SetContext(WithIdentity(req.Context(), identity))
	return http.StatusOK
}

func (a *RouteGuard) authorize(ctx context.Context, allowed ...Role) int {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return http.StatusUnauthorized
	}
	if !a.guard.Authorize(&identity.User, allowed...) {
		a.Logger.Info("role check rejected", "user_id", identity.User.ID, "role", identity.User.Role)
		return http.StatusForbidden
	}
	return http.StatusOK
}

func requestAuditEntry(ctx context.Context, method, path string, err error) AuditEntry {
	status := http.StatusOK
	if err != nil {
		status = http.StatusInternalServerError
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Code > 0 {
			status = richErr.Code
		}
	}

	return AuditEntry{
		ActorUserID:    ActorUser(ActorFromContext(ctx)),
		RequestMethod:  method,
		RequestPath:    path,
		ResponseStatus: status,
	}
}

// HTTPRequestCredentials adapts a *http.Request to RequestCredentials
func HTTPRequestCredentials(r *http.Request) RequestCredentials {
	return &httpRequest{r: r}
}

type httpRequest struct {
	r *http.Request
}

func (h *httpRequest) Header(key string) string {
	if h.r == nil {
		return ""
	}
	return h.r.Header.Get(key)
}

func (h *httpRequest) Cookies(key string, defaultValue ...string) string {
	if h.r != nil {
		if c, err := h.r.Cookie(key); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (h *httpRequest) Context() context.Context {
	if h.r == nil {
		return context.Background()
	}
	return h.r.Context()
}

func (h *httpRequest) SetContext(ctx context.Context) {
	if h.r != nil {
		h.r = h.r.WithContext(ctx)
	}
}
