package console_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/client"
	"github.com/charlesng35/hrconsole/internal/console"
	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/handlers/testutil"
)

type fixture struct {
	env  *testutil.Env
	srv  *httptest.Server
	user string
}

func newFixture(t *testing.T, roles ...string) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	srv := httptest.NewServer(env.Router)
	t.Cleanup(srv.Close)
	user := env.CreateUser("Passw0rd!", roles...)
	return &fixture{env: env, srv: srv, user: user.Username}
}

func (f *fixture) app(t *testing.T, store console.SessionStore) *console.App {
	t.Helper()
	app, err := console.New(client.Config{BaseURL: f.srv.URL + "/api"}, store)
	require.NoError(t, err)
	return app
}

func TestLoginPersistsAndInitRestores(t *testing.T) {
	f := newFixture(t, database.HRRoleName)
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := console.NewFileSessionStore(path)
	ctx := context.Background()

	app := f.app(t, store)
	require.False(t, app.Authenticated())
	require.False(t, app.Evaluator().HasPermission("leave.approve"))

	identity, err := app.Login(ctx, f.user, "Passw0rd!")
	require.NoError(t, err)
	require.Equal(t, f.user, identity.Username)
	require.True(t, app.Authenticated())
	require.True(t, app.Evaluator().HasPermission("leave.approve"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored := f.app(t, store)
	require.NoError(t, restored.Init(ctx))
	require.True(t, restored.Authenticated())
	require.Equal(t, f.user, restored.Identity().Username)
	require.True(t, restored.Evaluator().HasRole(database.HRRoleName))
}

// recordingStore keeps every saved session.
type recordingStore struct {
	console.MemorySessionStore
	saved []console.Session
}

func (s *recordingStore) Save(session *console.Session) error {
	if session != nil {
		s.saved = append(s.saved, *session)
	}
	return s.MemorySessionStore.Save(session)
}

func TestLoginNeverSavesTokensWithPreviousIdentity(t *testing.T) {
	f := newFixture(t, database.HRRoleName)
	other := f.env.CreateUser("Passw0rd!", database.EmployeeRoleName)
	store := &recordingStore{}
	ctx := context.Background()

	app := f.app(t, store)
	_, err := app.Login(ctx, f.user, "Passw0rd!")
	require.NoError(t, err)
	first := app.Tokens()

	_, err = app.Login(ctx, other.Username, "wrong")
	require.Error(t, err)
	require.Equal(t, f.user, app.Identity().Username)

	store.saved = nil
	identity, err := app.Login(ctx, other.Username, "Passw0rd!")
	require.NoError(t, err)
	require.Equal(t, other.Username, identity.Username)

	require.NotEmpty(t, store.saved)
	for _, session := range store.saved {
		require.NotEqual(t, first.AccessToken, session.Tokens.AccessToken)
		if session.Identity != nil {
			require.Equal(t, other.Username, session.Identity.Username)
		}
	}
	last := store.saved[len(store.saved)-1]
	require.NotNil(t, last.Identity)
	require.Equal(t, other.Username, last.Identity.Username)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	store := &console.MemorySessionStore{}
	ctx := context.Background()

	app := f.app(t, store)
	_, err := app.Login(ctx, f.user, "Passw0rd!")
	require.NoError(t, err)

	require.NoError(t, app.Logout(ctx))
	require.False(t, app.Authenticated())
	require.Nil(t, app.Identity())

	session, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestRotatedTokensArePersisted(t *testing.T) {
	f := newFixture(t)
	store := &console.MemorySessionStore{}
	ctx := context.Background()

	app := f.app(t, store)
	_, err := app.Login(ctx, f.user, "Passw0rd!")
	require.NoError(t, err)

	held := app.Tokens()
	app.SetTokens(client.Tokens{AccessToken: "expired", RefreshToken: held.RefreshToken})

	_, err = app.Client().Me(ctx)
	require.NoError(t, err)

	session, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, session)
	require.NotEqual(t, "expired", session.Tokens.AccessToken)
	require.NotEqual(t, held.RefreshToken, session.Tokens.RefreshToken)
	require.Equal(t, app.Tokens(), session.Tokens)
}

func TestForcedLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	store := &console.MemorySessionStore{}
	ctx := context.Background()

	app := f.app(t, store)
	_, err := app.Login(ctx, f.user, "Passw0rd!")
	require.NoError(t, err)

	app.SetTokens(client.Tokens{AccessToken: "expired", RefreshToken: "revoked"})

	_, err = app.Client().VisibleMenus(ctx)
	require.True(t, client.IsKind(err, client.KindUnauthorized))
	require.False(t, app.Authenticated())
	require.Nil(t, app.Identity())

	session, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestInitDiscardsForeignOrStaleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("other server", func(t *testing.T) {
		store := &console.MemorySessionStore{}
		require.NoError(t, store.Save(&console.Session{
			BaseURL: "http://elsewhere.example/api",
			Tokens:  client.Tokens{AccessToken: "a", RefreshToken: "r"},
		}))

		app := f.app(t, store)
		require.NoError(t, app.Init(ctx))
		require.False(t, app.Authenticated())

		session, err := store.Load()
		require.NoError(t, err)
		require.Nil(t, session)
	})

	t.Run("revoked tokens", func(t *testing.T) {
		store := &console.MemorySessionStore{}
		require.NoError(t, store.Save(&console.Session{
			BaseURL: f.srv.URL + "/api",
			Tokens:  client.Tokens{AccessToken: "a", RefreshToken: "r"},
		}))

		app := f.app(t, store)
		require.NoError(t, app.Init(ctx))
		require.False(t, app.Authenticated())
	})

	t.Run("nothing stored", func(t *testing.T) {
		app := f.app(t, nil)
		require.NoError(t, app.Init(ctx))
		require.False(t, app.Authenticated())
	})
}

func TestFileSessionStoreRoundTrip(t *testing.T) {
	store := console.NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))

	session, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, session)

	require.NoError(t, store.Save(&console.Session{BaseURL: "http://x/api", Tokens: client.Tokens{AccessToken: "a", RefreshToken: "b"}}))
	session, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, "b", session.Tokens.RefreshToken)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	session, err = store.Load()
	require.NoError(t, err)
	require.Nil(t, session)
}
