package admin

import (
	"context"
	"fmt"
	"time"
)

// Logger is the structured logger used across the package. Messages are
// constant strings and args are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to LoggerProvider.
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return nil
	}
	return f(name)
}

// Config holds the options consumed by the core services
type Config interface {
	GetSessionTTLHours() int
	GetAuditRetentionDays() int
	GetSessionCookieName() string
	GetPasswordCost() int
	GetLocation() *time.Location
}

// RequestCredentials is the view of an inbound request the guard needs.
// router.Context satisfies it.
type RequestCredentials interface {
	Header(key string) string
	Cookies(key string, defaultValue ...string) string
}

// SessionStore owns the session lifecycle.
type SessionStore interface {
	Issue(ctx context.Context, userID string, meta SessionMeta) (*Session, error)
	Lookup(ctx context.Context, token string) (*Session, error)
	ListByOwner(ctx context.Context, userID string) ([]*Session, error)
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAllForOwner(ctx context.Context, userID string) (int, error)
	Extend(ctx context.Context, token string) (*Session, error)
	SweepExpired(ctx context.Context) (int, error)
}

// UserFinder is the read side of the directory the guard depends on.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*UserPublic, error)
}

// ResolveLogger picks the logger for name: an explicit logger wins, then the
// provider, then the default stdout logger. The returned provider always
// resolves to the returned logger when nothing better is available.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger == nil && provider != nil {
		logger = provider.GetLogger(name)
	}

	if logger == nil {
		logger = defLogger{name: name}
	}

	resolved := logger
	if provider == nil {
		provider = LoggerProviderFunc(func(string) Logger { return resolved })
	} else {
		base := provider
		provider = LoggerProviderFunc(func(n string) Logger {
			if l := base.GetLogger(n); l != nil {
				return l
			}
			return resolved
		})
	}

	return provider, logger
}

type defLogger struct {
	name string
}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }

func (d defLogger) print(level, msg string, args ...any) {
	name := d.name
	if name == "" {
		name = "admin"
	}
	line := fmt.Sprintf("[%s] %s %s", level, name, msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
		} else {
			line += fmt.Sprintf(" %v", args[i])
		}
	}
	fmt.Println(line)
}
