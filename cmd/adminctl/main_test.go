package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	admin "github.com/goliatone/go-admin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand()
	root.Writer = &out
	root.ErrWriter = &out

	err := root.Run(context.Background(), append([]string{"adminctl"}, args...))
	return out.String(), err
}

func decode[T any](t *testing.T, raw string) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(raw)), &v), raw)
	return v
}

func TestBootstrap(t *testing.T) {
	badConfig := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(badConfig, []byte("timezone: Mars/Olympus\n"), 0o600))

	tests := []struct {
		name    string
		args    []string
		migrate bool
		wantErr bool
	}{
		{"in-memory dsn", []string{"--dsn", "file::memory:"}, true, false},
		{"auto migrate default", []string{"--dsn", "file::memory:"}, false, false},
		{"missing config file", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, false, true},
		{"invalid timezone", []string{"--config", badConfig, "--dsn", "file::memory:"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var app *App
			var bootErr error

			root := newRootCommand()
			root.Commands = []*cli.Command{{
				Name: "boot",
				Action: func(ctx context.Context, c *cli.Command) error {
					app, bootErr = bootstrap(ctx, c, tt.migrate)
					return nil
				},
			}}

			args := append([]string{"adminctl"}, tt.args...)
			require.NoError(t, root.Run(context.Background(), append(args, "boot")))

			if tt.wantErr {
				assert.Error(t, bootErr)
				assert.Nil(t, app)
				return
			}

			require.NoError(t, bootErr)
			require.NotNil(t, app)
			defer app.Close()

			users, err := app.svc.Directory().FindAll(context.Background(), true)
			require.NoError(t, err)
			assert.Empty(t, users)
		})
	}
}

func TestUserAndSessionCommands(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "admin.db")

	out, err := run(t, "--dsn", dsn, "user", "create",
		"--email", "Root@X.com", "--name", "Root", "--role", "admin", "--secret", "correct-horse")
	require.NoError(t, err)

	user := decode[admin.UserPublic](t, out)
	assert.Equal(t, "root@x.com", user.Email)
	assert.Equal(t, admin.RoleAdmin, user.Role)
	require.NotEmpty(t, user.ID)

	out, err = run(t, "--dsn", dsn, "session", "issue", "--user", user.ID)
	require.NoError(t, err)
	session := decode[admin.Session](t, out)
	require.NotEmpty(t, session.Token)

	out, err = run(t, "--dsn", dsn, "session", "list", "--user", strings.ToUpper(user.ID))
	require.NoError(t, err)
	sessions := decode[[]admin.Session](t, out)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.Token, sessions[0].Token)

	_, err = run(t, "--dsn", dsn, "user", "delete", "--id", user.ID, "--actor", user.ID)
	assert.Error(t, err)
	assert.True(t, admin.IsInvalidOperation(err))

	out, err = run(t, "--dsn", dsn, "user", "list")
	require.NoError(t, err)
	users := decode[[]admin.UserPublic](t, out)
	require.Len(t, users, 1)
	assert.Equal(t, user.ID, users[0].ID)
}
