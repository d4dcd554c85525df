package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/handlers/testutil"
)

func TestAuthLoginReturnsIdentity(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Passw0rd!")

	result := env.Login(user.Username, "Passw0rd!")
	require.Equal(t, "Bearer", result.TokenType)
	require.False(t, result.User.IsRoot)
	require.Len(t, result.User.Roles, 1)
	require.Equal(t, database.EmployeeRoleName, result.User.Roles[0].Name)
	require.Contains(t, result.User.Permissions, "leave.apply")
	require.NotContains(t, result.User.Permissions, "menu.manage")

	byEmail := env.Login(user.Email, "Passw0rd!")
	require.Equal(t, user.ID, byEmail.User.ID)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Passw0rd!")

	cases := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{name: "missing password", body: map[string]string{"identifier": user.Username}, status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "unknown user", body: map[string]string{"identifier": "nobody", "password": "x"}, status: http.StatusUnauthorized, code: "INVALID_CREDENTIALS"},
		{name: "wrong password", body: map[string]string{"identifier": user.Username, "password": "nope"}, status: http.StatusUnauthorized, code: "INVALID_CREDENTIALS"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.Request(http.MethodPost, "/api/auth/login", tc.body, "")
			require.Equal(t, tc.status, w.Code, w.Body.String())
			resp := testutil.Envelope(t, w)
			require.False(t, resp.Success)
			require.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestAuthLoginLocksAccount(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Passw0rd!")

	var last string
	for i := 0; i < env.Config.Auth.Local.LockoutThreshold; i++ {
		w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{"identifier": user.Username, "password": "wrong"}, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		last = testutil.ErrorCode(t, w)
	}
	require.Equal(t, "ACCOUNT_LOCKED", last)

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{"identifier": user.Username, "password": "Passw0rd!"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "ACCOUNT_LOCKED", testutil.ErrorCode(t, w))
}

func TestAuthLoginDisabledAccount(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Passw0rd!")
	require.NoError(t, env.DB.Model(user).Update("is_active", false).Error)

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{"identifier": user.Username, "password": "Passw0rd!"}, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "ACCOUNT_DISABLED", testutil.ErrorCode(t, w))
}

func TestAuthRefreshRotatesTokens(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Passw0rd!")
	login := env.Login(user.Username, "Passw0rd!")

	w := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pair testutil.LoginResult
	testutil.Data(t, w, &pair)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEqual(t, login.RefreshToken, pair.RefreshToken)

	// The rotated-out token is no longer accepted.
	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodGet, "/api/auth/me", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAuthMeAndLogout(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Passw0rd!", database.HRRoleName)
	login := env.Login(user.Username, "Passw0rd!")

	w := env.Request(http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodGet, "/api/auth/me", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me testutil.UserPayload
	testutil.Data(t, w, &me)
	require.Equal(t, user.ID, me.ID)
	require.Equal(t, database.HRRoleName, me.Roles[0].Name)
	require.Contains(t, me.Permissions, "payroll.run")

	w = env.Request(http.MethodPost, "/api/auth/logout", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Tokens of a revoked session stop working immediately.
	w = env.Request(http.MethodGet, "/api/auth/me", nil, login.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": login.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRootLoginHoldsEveryPermission(t *testing.T) {
	env := testutil.NewEnv(t)
	root := env.CreateRootUser("Passw0rd!")

	login := env.Login(root.Username, "Passw0rd!")
	require.True(t, login.User.IsRoot)
	require.Contains(t, login.User.Permissions, "menu.manage")
	require.Contains(t, login.User.Permissions, "activity.export")
}
