package admin

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the operator model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Name           string    `bun:"name,notnull" json:"name,omitempty"`
	Role           Role      `bun:"role,notnull" json:"role,omitempty"`
	IsActive       bool      `bun:"is_active,notnull" json:"is_active"`
	PasswordSecret string    `bun:"password_secret,notnull" json:"-"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Public returns the projection of the user without the secret
func (u *User) Public() *UserPublic {
	if u == nil {
		return nil
	}
	return &UserPublic{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// UserPublic is the read projection handed to callers
type UserPublic struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session is a time bounded proof of a successful login
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	Token         string    `bun:"token,pk" json:"token"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	IPAddress     string    `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string    `bun:"user_agent" json:"user_agent,omitempty"`
}

// IsValidAt reports whether the session is still usable at t
func (s *Session) IsValidAt(t time.Time) bool {
	if s == nil {
		return false
	}
	return s.ExpiresAt.After(t)
}

// SessionMeta is diagnostic data attached to a session on issue
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// AuditEntry is an immutable record of a privileged action
type AuditEntry struct {
	bun.BaseModel  `bun:"table:audit_logs,alias:aud"`
	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	ActorUserID    *string   `bun:"actor_user_id" json:"actor_user_id,omitempty"`
	ActorTokenID   *string   `bun:"actor_token_id" json:"actor_token_id,omitempty"`
	Action         string    `bun:"action,notnull" json:"action"`
	ResourceType   string    `bun:"resource_type" json:"resource_type,omitempty"`
	ResourceID     string    `bun:"resource_id" json:"resource_id,omitempty"`
	RequestMethod  string    `bun:"request_method" json:"request_method,omitempty"`
	RequestPath    string    `bun:"request_path" json:"request_path,omitempty"`
	ResponseStatus int       `bun:"response_status" json:"response_status,omitempty"`
	Metadata       Metadata  `bun:"metadata,type:json" json:"metadata,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
}

// ActorRef returns the user actor id or the token actor id, whichever is set
func (e *AuditEntry) ActorRef() string {
	if e == nil {
		return ""
	}
	if e.ActorUserID != nil && *e.ActorUserID != "" {
		return *e.ActorUserID
	}
	if e.ActorTokenID != nil && *e.ActorTokenID != "" {
		return *e.ActorTokenID
	}
	return ""
}

// ActionStat is one bucket of ActionStats
type ActionStat struct {
	Action string `bun:"action" json:"action"`
	Count  int    `bun:"count" json:"count"`
}

// ActorUser is a helper to build the optional actor reference
func ActorUser(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
