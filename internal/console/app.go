package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/client"
	"github.com/charlesng35/hrconsole/internal/permissions"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

// App is the console's application context. It owns the API client, the token pair and the signed in
// identity, and persists them through a SessionStore.
type App struct {
	api     *client.Client
	store   SessionStore
	baseURL string
	log     *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	tokens   client.Tokens
	identity *client.Identity
}

// New wires an App around a client for cfg. A nil store keeps the session in memory.
func New(cfg client.Config, store SessionStore, opts ...client.Option) (*App, error) {
	if store == nil {
		store = &MemorySessionStore{}
	}
	app := &App{
		store:   store,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		log:     logger.WithModule("console"),
		now:     time.Now,
	}

	opts = append(opts, client.WithLogoutHandler(app.forcedLogout))
	api, err := client.New(cfg, app, opts...)
	if err != nil {
		return nil, err
	}
	app.api = api
	return app, nil
}

// Client returns the API client bound to this context.
func (a *App) Client() *client.Client {
	return a.api
}

// Init restores the persisted session and refreshes the identity from the server. A session saved for a
// different server is discarded. When the server cannot be reached the stored identity is kept.
func (a *App) Init(ctx context.Context) error {
	session, err := a.store.Load()
	if err != nil {
		return err
	}
	if session == nil || session.Tokens.Empty() {
		return nil
	}
	if session.BaseURL != a.baseURL {
		a.log.Info("discarding session for another server", zap.String("saved", session.BaseURL))
		return a.store.Clear()
	}

	a.mu.Lock()
	a.tokens = session.Tokens
	a.identity = session.Identity
	a.mu.Unlock()

	identity, err := a.api.Me(ctx)
	switch {
	case err == nil:
		a.setIdentity(identity)
		return a.persist()
	case client.IsKind(err, client.KindUnauthorized):
		// forced logout already cleared the session
		return nil
	case client.IsKind(err, client.KindNetwork):
		a.log.Warn("server unreachable, using stored identity", zap.Error(err))
		return nil
	default:
		return err
	}
}

// Login signs in and persists the new session. The previous identity is dropped before the new
// tokens arrive so no saved session pairs them with it.
func (a *App) Login(ctx context.Context, identifier, password string) (*client.Identity, error) {
	a.mu.Lock()
	previous := a.identity
	a.identity = nil
	a.mu.Unlock()

	result, err := a.api.Login(ctx, identifier, password)
	if err != nil {
		a.mu.Lock()
		if a.identity == nil && !a.tokens.Empty() {
			a.identity = previous
		}
		a.mu.Unlock()
		return nil, err
	}
	a.setIdentity(&result.User)
	if err := a.persist(); err != nil {
		return nil, err
	}
	identity := result.User
	return &identity, nil
}

// Logout revokes the server session when possible and always clears the local one.
func (a *App) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil && !client.IsKind(err, client.KindUnauthorized) {
		a.log.Warn("server logout failed", zap.Error(err))
	}
	return a.reset()
}

// Identity returns a copy of the signed in identity, or nil.
func (a *App) Identity() *client.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.identity == nil {
		return nil
	}
	identity := *a.identity
	return &identity
}

// Evaluator answers permission questions for the signed in identity. Signed out it answers false.
func (a *App) Evaluator() permissions.Evaluator {
	identity := a.Identity()
	if identity == nil {
		return permissions.Evaluator{}
	}
	return identity.Evaluator()
}

// Authenticated reports whether a token pair is held.
func (a *App) Authenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.tokens.Empty()
}

// Tokens implements client.TokenStore.
func (a *App) Tokens() client.Tokens {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens
}

// SetTokens implements client.TokenStore. Rotated pairs are persisted immediately.
func (a *App) SetTokens(tokens client.Tokens) {
	a.mu.Lock()
	a.tokens = tokens
	a.mu.Unlock()

	if err := a.persist(); err != nil {
		a.log.Error("persist session failed", zap.Error(err))
	}
}

// ClearTokens implements client.TokenStore.
func (a *App) ClearTokens() {
	if err := a.reset(); err != nil {
		a.log.Error("clear session failed", zap.Error(err))
	}
}

func (a *App) forcedLogout() {
	a.log.Warn("session expired, signed out")
	a.ClearTokens()
}

func (a *App) setIdentity(identity *client.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if identity == nil {
		a.identity = nil
		return
	}
	copied := *identity
	a.identity = &copied
}

func (a *App) reset() error {
	a.mu.Lock()
	a.tokens = client.Tokens{}
	a.identity = nil
	a.mu.Unlock()
	return a.store.Clear()
}

func (a *App) persist() error {
	a.mu.RLock()
	session := &Session{
		BaseURL:  a.baseURL,
		Tokens:   a.tokens,
		Identity: a.identity,
		SavedAt:  a.now().UTC(),
	}
	a.mu.RUnlock()

	if session.Tokens.Empty() {
		return a.store.Clear()
	}
	return a.store.Save(session)
}

// ErrNotSignedIn is returned by commands that need a session when none is held.
var ErrNotSignedIn = errors.New("not signed in, run `hrconsole login` first")
