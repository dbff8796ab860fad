package admin_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	admin "github.com/goliatone/go-admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestDirectoryCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	user, err := svc.Directory().Create(ctx, admin.CreateUserInput{
		Email:  "  Alice@Example.COM ",
		Name:   "Alice",
		Role:   "Admin",
		Secret: "correct-horse",
	}, "")
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, admin.RoleAdmin, user.Role)
	assert.True(t, user.IsActive)

	byEmail, err := svc.Directory().FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)

	entries, err := svc.Audit().RecentEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, admin.ActionUserCreate, entries[0].Action)
	assert.Equal(t, user.ID, entries[0].ResourceID)
	assert.Equal(t, "alice@example.com", entries[0].Metadata["email"])
	assert.Equal(t, "admin", entries[0].Metadata["role"])
}

func TestDirectoryCreateDuplicateEmailIgnoresCase(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	mustCreateUser(t, svc, "a@x.com", admin.RoleAdmin)

	_, err := svc.Directory().Create(ctx, admin.CreateUserInput{
		Email:  "A@X.com",
		Name:   "Other",
		Role:   "agent",
		Secret: "correct-horse",
	}, "")
	require.Error(t, err)
	assert.True(t, admin.IsConflict(err))
}

func TestDirectoryCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	tests := []struct {
		name  string
		input admin.CreateUserInput
	}{
		{"bad email", admin.CreateUserInput{Email: "nope", Name: "n", Role: "agent", Secret: "correct-horse"}},
		{"missing name", admin.CreateUserInput{Email: "n@x.com", Role: "agent", Secret: "correct-horse"}},
		{"unknown role", admin.CreateUserInput{Email: "n@x.com", Name: "n", Role: "root", Secret: "correct-horse"}},
		{"short secret", admin.CreateUserInput{Email: "n@x.com", Name: "n", Role: "agent", Secret: "short"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Directory().Create(ctx, tc.input, "")
			require.Error(t, err)
			assert.True(t, admin.IsValidationError(err))
		})
	}

	all, err := svc.Directory().FindAll(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDirectoryAllowedRolesOption(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch),
		admin.WithDirectoryOptions(admin.WithAllowedRoles("owner", admin.RoleAgent)),
	)

	user, err := svc.Directory().Create(ctx, admin.CreateUserInput{
		Email: "o@x.com", Name: "Owner", Role: "owner", Secret: "correct-horse",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, admin.Role("owner"), user.Role)

	_, err = svc.Directory().Create(ctx, admin.CreateUserInput{
		Email: "a@x.com", Name: "Admin", Role: "admin", Secret: "correct-horse",
	}, "")
	assert.True(t, admin.IsValidationError(err))
}

func TestDirectoryConcurrentCreatesYieldOneSuccess(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	const attempts = 8
	var created, conflicts int32

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.Directory().Create(ctx, admin.CreateUserInput{
				Email:  "race@x.com",
				Name:   fmt.Sprintf("racer %d", i),
				Role:   "agent",
				Secret: "correct-horse",
			}, "")
			switch {
			case err == nil:
				atomic.AddInt32(&created, 1)
			case admin.IsConflict(err):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(attempts-1), conflicts)
}

func TestDirectoryUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	user := mustCreateUser(t, svc, "a@x.com", admin.RoleAgent)
	actor := mustCreateUser(t, svc, "b@x.com", admin.RoleAdmin)

	name := "Renamed"
	role := "ADMIN"
	updated, err := svc.Directory().Update(ctx, user.ID, admin.UpdateUserInput{
		Name: &name,
		Role: &role,
	}, actor.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, admin.RoleAdmin, updated.Role)

	page, err := svc.Audit().Query(ctx, admin.AuditQuery{ActionPrefix: admin.ActionUserUpdate})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "name,role", page.Entries[0].Metadata["changed_fields"])
	assert.Equal(t, actor.ID, *page.Entries[0].ActorUserID)
}

func TestDirectoryUpdateUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	name := "ghost"
	updated, err := svc.Directory().Update(ctx, "8d0c4c8e-5d0e-4c47-9c55-3f0c1f3a2b11", admin.UpdateUserInput{Name: &name}, "")
	require.NoError(t, err)
	assert.Nil(t, updated)

	updated, err = svc.Directory().Update(ctx, "not-a-uuid", admin.UpdateUserInput{Name: &name}, "")
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestDirectoryUpdateEmailConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	a := mustCreateUser(t, svc, "a@x.com", admin.RoleAgent)
	mustCreateUser(t, svc, "b@x.com", admin.RoleAgent)

	email := "B@x.com"
	_, err := svc.Directory().Update(ctx, a.ID, admin.UpdateUserInput{Email: &email}, "")
	require.Error(t, err)
	assert.True(t, admin.IsConflict(err))

	same := "A@X.COM"
	updated, err := svc.Directory().Update(ctx, a.ID, admin.UpdateUserInput{Email: &same}, "")
	require.NoError(t, err, "keeping your own email is not a conflict")
	assert.Equal(t, "a@x.com", updated.Email)

	unchanged, err := svc.Directory().FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", unchanged.Email)
}

func TestDirectoryDeactivateRevokesSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	user := mustCreateUser(t, svc, "a@x.com", admin.RoleAgent)
	for i := 0; i < 3; i++ {
		_, err := svc.Sessions().Issue(ctx, user.ID, admin.SessionMeta{})
		require.NoError(t, err)
	}

	inactive := false
	updated, err := svc.Directory().Update(ctx, user.ID, admin.UpdateUserInput{IsActive: &inactive}, "")
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	sessions, err := svc.Sessions().ListByOwner(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	active, err := svc.Directory().FindAll(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.Directory().FindAll(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDirectoryDeactivateCascadeFailure(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := newTestClock(testEpoch)

	sessions := new(MockSessions)
	sessions.On("RevokeAllForOwner", mock.Anything, mock.Anything).
		Return(0, errors.New("store down")).Once()

	repos := admin.NewRepositoryManager(db, testConfig(), admin.WithManagerSessions(sessions))
	audit := &recordingAudit{}
	dir := admin.NewUserDirectory(repos, audit, testConfig(),
		admin.WithDirectoryClock(clock.Now),
		admin.WithDirectoryLoggerProvider(quietProvider()),
	)

	user, err := dir.Create(ctx, admin.CreateUserInput{
		Email: "a@x.com", Name: "A", Role: "agent", Secret: "correct-horse",
	}, "")
	require.NoError(t, err)

	inactive := false
	updated, err := dir.Update(ctx, user.ID, admin.UpdateUserInput{IsActive: &inactive}, "")
	require.Error(t, err)
	require.NotNil(t, updated, "the committed update is still reported")
	assert.False(t, updated.IsActive)

	var cascade *admin.CascadeError
	require.True(t, errors.As(err, &cascade))
	assert.Equal(t, user.ID, cascade.UserID)

	assert.Equal(t, []string{admin.ActionUserCreate, admin.ActionUserUpdate}, audit.Actions())
	sessions.AssertExpectations(t)
}

func TestDirectoryDeleteSelfIsRejectedBeforeStoreAccess(t *testing.T) {
	dir := admin.NewUserDirectory(nil, nil, nil, admin.WithDirectoryLoggerProvider(quietProvider()))

	ok, err := dir.Delete(context.Background(), "user-1", "user-1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, admin.IsInvalidOperation(err))
}

func TestDirectoryDeleteSelfRegardlessOfRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	for _, role := range []admin.Role{admin.RoleAdmin, admin.RoleAgent} {
		user := mustCreateUser(t, svc, string(role)+"@x.com", role)

		ok, err := svc.Directory().Delete(ctx, user.ID, user.ID)
		assert.False(t, ok)
		assert.True(t, admin.IsInvalidOperation(err))

		still, err := svc.Directory().FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.NotNil(t, still)
	}
}

func idSpellings(id string) []struct {
	name string
	id   string
} {
	return []struct {
		name string
		id   string
	}{
		{"uppercase", strings.ToUpper(id)},
		{"braced", "{" + id + "}"},
		{"urn", "urn:uuid:" + id},
		{"padded", "  " + id + " "},
	}
}

func TestDirectoryDeleteSelfWithAnyIDSpelling(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	user := mustCreateUser(t, svc, "a@x.com", admin.RoleAdmin)

	for _, tt := range idSpellings(user.ID) {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.Directory().Delete(ctx, tt.id, user.ID)
			assert.False(t, ok)
			assert.True(t, admin.IsInvalidOperation(err))

			ok, err = svc.Directory().Delete(ctx, user.ID, tt.id)
			assert.False(t, ok)
			assert.True(t, admin.IsInvalidOperation(err))
		})
	}

	still, err := svc.Directory().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestDirectoryCascadesWithAnyIDSpelling(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))
	actor := mustCreateUser(t, svc, "root@x.com", admin.RoleAdmin)

	for i, tt := range idSpellings(actor.ID) {
		t.Run(tt.name, func(t *testing.T) {
			user := mustCreateUser(t, svc, fmt.Sprintf("u%d@x.com", i), admin.RoleAgent)
			spelled := idSpellings(user.ID)[i].id

			session, err := svc.Sessions().Issue(ctx, user.ID, admin.SessionMeta{})
			require.NoError(t, err)

			ok, err := svc.Directory().ChangePassword(ctx, spelled, "reset-by-admin", tt.id)
			require.NoError(t, err)
			assert.True(t, ok)

			found, err := svc.Sessions().Lookup(ctx, session.Token)
			require.NoError(t, err)
			assert.Nil(t, found, "password reset by another actor revokes sessions")

			session, err = svc.Sessions().Issue(ctx, user.ID, admin.SessionMeta{})
			require.NoError(t, err)

			ok, err = svc.Directory().Delete(ctx, spelled, tt.id)
			require.NoError(t, err)
			assert.True(t, ok)

			found, err = svc.Sessions().Lookup(ctx, session.Token)
			require.NoError(t, err)
			assert.Nil(t, found)

			page, err := svc.Audit().Query(ctx, admin.AuditQuery{ActionPrefix: admin.ActionUserDelete, Limit: 1})
			require.NoError(t, err)
			require.Len(t, page.Entries, 1)
			assert.Equal(t, user.ID, page.Entries[0].ResourceID)
		})
	}
}

func TestDirectorySelfPasswordChangeWithAnyIDSpelling(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))
	user := mustCreateUser(t, svc, "a@x.com", admin.RoleAgent)

	session, err := svc.Sessions().Issue(ctx, user.ID, admin.SessionMeta{})
	require.NoError(t, err)

	ok, err := svc.Directory().ChangePassword(ctx, strings.ToUpper(user.ID), "new-secret-1", user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	found, err := svc.Sessions().Lookup(ctx, session.Token)
	require.NoError(t, err)
	assert.NotNil(t, found, "self change keeps sessions")
}

func TestDirectoryDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	user := mustCreateUser(t, svc, "a@x.com", admin.RoleAgent)
	actor := mustCreateUser(t, svc, "b@x.com", admin.RoleAdmin)

	session, err := svc.Sessions().Issue(ctx, user.ID, admin.SessionMeta{})
	require.NoError(t, err)

	ok, err := svc.Directory().Delete(ctx, user.ID, actor.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := svc.Directory().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	found, err := svc.Sessions().Lookup(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, found)

	ok, err = svc.Directory().Delete(ctx, user.ID, actor.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	page, err := svc.Audit().Query(ctx, admin.AuditQuery{ActionPrefix: admin.ActionUserDelete})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, user.ID, page.Entries[0].ResourceID)
	assert.EqualValues(t, 1, page.Entries[0].Metadata["sessions_revoked"])
}

func TestDirectoryChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, newTestClock(testEpoch))

	user := mustCreateUser(t, svc, "a@x.com", admin.RoleAgent)

	ok, err := svc.Directory().ChangePassword(ctx, user.ID, "new-secret-1", user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Authenticator().Login(ctx, "a@x.com", "new-secret-1", admin.SessionMeta{})
	require.NoError(t, err)

	ok, err = svc.Directory().ChangePassword(ctx, "8d0c4c8e-5d0e-4c47-9c55-3f0c1f3a2b11", "new-secret-1", user.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Directory().ChangePassword(ctx, user.ID, "short", user.ID)
	assert.True(t, admin.IsValidationError(err))

	page, err := svc.Audit().Query(ctx, admin.AuditQuery{ActionPrefix: admin.ActionUserChangePassword})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, true, page.Entries[0].Metadata["self"])
}

func TestDirectoryAuditFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	failures := 0
	ledger := admin.NewAuditLedger(db, testConfig(),
		admin.WithAuditLoggerProvider(quietProvider()),
		admin.WithAuditFailureHandler(func(context.Context, admin.AuditEntry, error) { failures++ }),
	)

	_, err := db.NewDropTable().Model((*admin.AuditEntry)(nil)).Exec(ctx)
	require.NoError(t, err)

	repos := admin.NewRepositoryManager(db, testConfig())
	dir := admin.NewUserDirectory(repos, ledger, testConfig(), admin.WithDirectoryLoggerProvider(quietProvider()))

	user, err := dir.Create(ctx, admin.CreateUserInput{
		Email: "a@x.com", Name: "A", Role: "agent", Secret: "correct-horse",
	}, "")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, 1, failures, "the failure reaches the diagnostics handler")
}
