package admin

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultSessionTTLHours is used when no TTL is configured
	DefaultSessionTTLHours = 24
	// DefaultAuditRetentionDays is the retention window for the purge
	DefaultAuditRetentionDays = 90
	// DefaultSessionCookieName is the cookie consulted when no bearer header is sent
	DefaultSessionCookieName = "admin_session"
)

var _ Config = Options{}

// Options is the default Config implementation. Zero values fall back to
// the package defaults.
type Options struct {
	SessionTTLHours    int            `mapstructure:"session_ttl_hours" json:"session_ttl_hours"`
	AuditRetentionDays int            `mapstructure:"audit_retention_days" json:"audit_retention_days"`
	SessionCookieName  string         `mapstructure:"session_cookie_name" json:"session_cookie_name"`
	PasswordCost       int            `mapstructure:"password_cost" json:"password_cost"`
	Location           *time.Location `mapstructure:"-" json:"-"`
}

func (o Options) GetSessionTTLHours() int {
	if o.SessionTTLHours <= 0 {
		return DefaultSessionTTLHours
	}
	return o.SessionTTLHours
}

func (o Options) GetAuditRetentionDays() int {
	if o.AuditRetentionDays <= 0 {
		return DefaultAuditRetentionDays
	}
	return o.AuditRetentionDays
}

func (o Options) GetSessionCookieName() string {
	if o.SessionCookieName == "" {
		return DefaultSessionCookieName
	}
	return o.SessionCookieName
}

func (o Options) GetPasswordCost() int {
	if o.PasswordCost < bcrypt.MinCost || o.PasswordCost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return o.PasswordCost
}

func (o Options) GetLocation() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func normalizeConfig(cfg Config) Config {
	if cfg == nil {
		return Options{}
	}
	return cfg
}

func sessionTTL(cfg Config) time.Duration {
	hours := cfg.GetSessionTTLHours()
	if hours <= 0 {
		hours = DefaultSessionTTLHours
	}
	return time.Duration(hours) * time.Hour
}
