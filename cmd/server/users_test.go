package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/services"
)

func runUsers(t *testing.T, cfg *app.Config, args ...string) (string, error) {
	t.Helper()
	cmd := usersCommand(func() (*app.Config, error) { return cfg, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUsersCommand(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "hr.db")

	out, err := runUsers(t, cfg, "add", "--username", "mlee", "--email", "mlee@example.com", "--role", database.HRRoleName)
	require.NoError(t, err, out)
	require.Contains(t, out, "created mlee")
	require.Regexp(t, `password: [A-Za-z0-9_-]{16}\n`, out)

	out, err = runUsers(t, cfg, "add", "--username", "ops", "--email", "ops@example.com", "--password", "Passw0rd!")
	require.NoError(t, err, out)
	require.NotContains(t, out, "password:")

	_, err = runUsers(t, cfg, "add", "--username", "x", "--email", "x@example.com", "--role", "Auditor")
	require.ErrorIs(t, err, services.ErrUnknownRole)

	out, err = runUsers(t, cfg, "roles", "MLEE@example.com", "--role", database.AdminRoleName, "--role", database.HRRoleName)
	require.NoError(t, err, out)
	require.Contains(t, out, database.AdminRoleName)

	out, err = runUsers(t, cfg, "disable", "ops")
	require.NoError(t, err)
	require.Contains(t, out, "ops disabled")

	out, err = runUsers(t, cfg, "list")
	require.NoError(t, err)
	require.Regexp(t, `mlee\s+mlee@example.com\s+active`, out)
	require.Regexp(t, `ops\s+ops@example.com\s+disabled\s+`+database.EmployeeRoleName, out)

	_, err = runUsers(t, cfg, "enable", "nobody")
	require.ErrorIs(t, err, services.ErrUserNotFound)
}
