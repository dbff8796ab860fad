package admin

import (
	"context"
	"time"
)

// Actions recorded by the core services
const (
	ActionUserCreate         = "user.create"
	ActionUserUpdate         = "user.update"
	ActionUserDelete         = "user.delete"
	ActionUserChangePassword = "user.change_password"
	ActionLoginSuccess       = "auth.login.success"
	ActionLoginFailure       = "auth.login.failure"
	ActionLogout             = "auth.logout"
)

// ResourceTypeUser is the resource type used for directory entries
const ResourceTypeUser = "user"

// AuditRecorder is the best-effort write side of the audit ledger.
// Record must never fail the caller; failures go to diagnostics.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditRecorderFunc adapts a function to the AuditRecorder interface.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry)

// Record implements AuditRecorder.
func (f AuditRecorderFunc) Record(ctx context.Context, entry AuditEntry) {
	if f == nil {
		return
	}
	f(ctx, entry)
}

// AuditFailureHandler receives entries the ledger failed to persist
type AuditFailureHandler func(ctx context.Context, entry AuditEntry, err error)

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

func normalizeAuditRecorder(r AuditRecorder) AuditRecorder {
	if r == nil {
		return noopAuditRecorder{}
	}
	return r
}

func userAuditEntry(action, actorID, userID string, metadata Metadata, at time.Time) AuditEntry {
	return AuditEntry{
		ActorUserID:  ActorUser(actorID),
		Action:       action,
		ResourceType: ResourceTypeUser,
		ResourceID:   userID,
		Metadata:     metadata,
		CreatedAt:    at,
	}
}
