// Package testutil wires the full API over an in-memory database for handler and console tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/api"
	"github.com/charlesng35/hrconsole/internal/app"
	iauth "github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/cache"
	dbtestutil "github.com/charlesng35/hrconsole/internal/database/testutil"
	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/monitoring"
	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/response"
)

// DefaultPassword is used by LoginAs.
const DefaultPassword = "Passw0rd!"

type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Sessions *iauth.SessionService
	Config   *app.Config
	Health   *monitoring.HealthManager
}

// EnvOption edits the configuration before the router is built.
type EnvOption func(*app.Config)

func testConfig() *app.Config {
	return &app.Config{
		Auth: app.AuthConfig{
			JWT:     app.JWTSettings{Secret: "handler-tests-signing-key", Issuer: "handler-tests", TTL: time.Hour},
			Session: app.SessionSettings{RefreshTTL: 24 * time.Hour, RefreshLength: 48},
			Local:   app.LocalAuthSettings{LockoutThreshold: 3, LockoutDuration: time.Minute},
		},
		Menus: app.MenuConfig{DeletePolicy: "reject", MaxDepth: 2},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

// NewEnv builds the router over a seeded database. Sessions and the catalogue share one
// database backed cache store.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	env := &Env{T: t, DB: dbtestutil.Seeded(t), Config: cfg, Health: monitoring.NewHealthManager()}
	store := cache.NewDatabaseStore(env.DB)

	var err error
	env.JWT, err = iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = store
	env.Sessions, err = iauth.NewSessionService(env.DB, env.JWT, sessionCfg)
	require.NoError(t, err)

	env.Router, err = api.NewRouter(api.Dependencies{
		DB:       env.DB,
		Config:   cfg,
		JWT:      env.JWT,
		Sessions: env.Sessions,
		Catalog:  services.NewCatalogCache(store, time.Minute),
		Health:   env.Health,
	})
	require.NoError(t, err)
	return env
}

// CreateUser adds an active user holding roleNames, or the default role when none are named.
func (e *Env) CreateUser(password string, roleNames ...string) *models.User {
	e.T.Helper()
	return e.createUser("user", false, password, roleNames)
}

// CreateRootUser adds an active root user.
func (e *Env) CreateRootUser(password string) *models.User {
	e.T.Helper()
	return e.createUser("root", true, password, nil)
}

func (e *Env) createUser(prefix string, root bool, password string, roleNames []string) *models.User {
	e.T.Helper()
	ctx := context.Background()

	users, err := services.NewUserService(e.DB, nil)
	require.NoError(e.T, err)
	roleIDs, err := users.RoleIDs(ctx, roleNames...)
	require.NoError(e.T, err, "roles %v", roleNames)

	username := prefix + "-" + uuid.NewString()[:8]
	user, err := users.Create(ctx, services.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		IsRoot:   root,
		RoleIDs:  roleIDs,
	})
	require.NoError(e.T, err)
	return user
}

type RolePayload struct {
	ID   uint   `json:"id"`
	Name string `json:"role_name"`
}

type UserPayload struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name"`
	IsRoot      bool          `json:"is_root"`
	IsActive    bool          `json:"is_active"`
	Permissions []string      `json:"permissions"`
	Roles       []RolePayload `json:"roles"`
}

// LoginResult is the data of a successful POST /api/auth/login.
type LoginResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	User         UserPayload `json:"user"`
}

// Login signs in through the API and fails the test unless a full token pair comes back.
func (e *Env) Login(username, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{"identifier": username, "password": password}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var result LoginResult
	Data(e.T, w, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.NotEmpty(e.T, result.RefreshToken)
	require.Positive(e.T, result.ExpiresIn)
	require.Equal(e.T, username, result.User.Username)
	return result
}

// LoginAs creates a user with roleNames and returns an access token for it.
func (e *Env) LoginAs(roleNames ...string) string {
	e.T.Helper()
	return e.Login(e.CreateUser(DefaultPassword, roleNames...).Username, DefaultPassword).AccessToken
}

// APIResponse is the response envelope with the data left undecoded.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

func Envelope(t testing.TB, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// Data decodes the envelope of a successful response into dest.
func Data[T any](t testing.TB, w *httptest.ResponseRecorder, dest *T) APIResponse {
	t.Helper()
	resp := Envelope(t, w)
	require.True(t, resp.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, dest), string(resp.Data))
	return resp
}

// ErrorCode is the error code of a failed response.
func ErrorCode(t testing.TB, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := Envelope(t, w)
	require.False(t, resp.Success, w.Body.String())
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

// Request sends body as JSON with an optional bearer token and records the response.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.T, err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
