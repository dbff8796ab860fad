package admin_test

import (
	"context"
	"testing"

	admin "github.com/goliatone/go-admin"
	"github.com/stretchr/testify/assert"
)

func TestIdentityFromContext(t *testing.T) {
	identity := &admin.Identity{
		User:  admin.UserPublic{ID: "user-1", Role: admin.RoleAdmin, IsActive: true},
		Token: "tok",
	}

	tests := []struct {
		name      string
		setupCtx  func() context.Context
		wantOK    bool
		wantActor string
	}{
		{
			name: "should return identity when present in context",
			setupCtx: func() context.Context {
				return admin.WithIdentity(context.Background(), identity)
			},
			wantOK:    true,
			wantActor: "user-1",
		},
		{
			name: "should return false when no identity in context",
			setupCtx: func() context.Context {
				return context.Background()
			},
		},
		{
			name: "should return false for a nil identity",
			setupCtx: func() context.Context {
				return admin.WithIdentity(context.Background(), nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := tt.setupCtx()

			got, ok := admin.IdentityFromContext(ctx)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Same(t, identity, got)
			}
			assert.Equal(t, tt.wantActor, admin.ActorFromContext(ctx))
		})
	}
}
