package admin_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	admin "github.com/goliatone/go-admin"
	"github.com/goliatone/go-admin/persistence"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// MockSessions implements admin.SessionStore
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Issue(ctx context.Context, userID string, meta admin.SessionMeta) (*admin.Session, error) {
	args := m.Called(ctx, userID, meta)
	s, _ := args.Get(0).(*admin.Session)
	return s, args.Error(1)
}

func (m *MockSessions) Lookup(ctx context.Context, token string) (*admin.Session, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*admin.Session)
	return s, args.Error(1)
}

func (m *MockSessions) ListByOwner(ctx context.Context, userID string) ([]*admin.Session, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).([]*admin.Session)
	return s, args.Error(1)
}

func (m *MockSessions) Revoke(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessions) RevokeAllForOwner(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockSessions) Extend(ctx context.Context, token string) (*admin.Session, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*admin.Session)
	return s, args.Error(1)
}

func (m *MockSessions) SweepExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockUserFinder implements admin.UserFinder
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) FindByID(ctx context.Context, id string) (*admin.UserPublic, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*admin.UserPublic)
	return u, args.Error(1)
}

// fakeCredentials implements admin.RequestCredentials
type fakeCredentials struct {
	headers map[string]string
	cookies map[string]string
}

func (f fakeCredentials) Header(key string) string {
	return f.headers[key]
}

func (f fakeCredentials) Cookies(key string, defaultValue ...string) string {
	if v, ok := f.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// recordingAudit captures entries handed to admin.AuditRecorder
type recordingAudit struct {
	mu      sync.Mutex
	entries []admin.AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, entry admin.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureLogger implements admin.Logger and keeps every message
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("DBG", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("INF", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("WRN", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("ERR", msg, args...) }

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

func quietProvider() admin.LoggerProvider {
	logger := &captureLogger{}
	return admin.LoggerProviderFunc(func(string) admin.Logger { return logger })
}

var testEpoch = time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC) // a Wednesday

func testConfig() admin.Options {
	return admin.Options{PasswordCost: bcrypt.MinCost}
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := persistence.OpenAndMigrate(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestService(t *testing.T, clock *testClock, opts ...admin.ServiceOption) (*admin.Service, *bun.DB) {
	t.Helper()

	db := newTestDB(t)
	base := []admin.ServiceOption{
		admin.WithLoggerProvider(quietProvider()),
		admin.WithSessionOptions(admin.WithSessionClock(clock.Now)),
		admin.WithAuditOptions(admin.WithAuditClock(clock.Now)),
		admin.WithDirectoryOptions(admin.WithDirectoryClock(clock.Now)),
	}

	return admin.NewService(db, testConfig(), append(base, opts...)...), db
}

func mustCreateUser(t *testing.T, svc *admin.Service, email string, role admin.Role) *admin.UserPublic {
	t.Helper()

	user, err := svc.Directory().Create(context.Background(), admin.CreateUserInput{
		Email:  email,
		Name:   "Test " + string(role),
		Role:   string(role),
		Secret: "correct-horse",
	}, "")
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}
