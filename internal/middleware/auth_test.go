package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/auditctx"
	iauth "github.com/charlesng35/hrconsole/internal/auth"
)

type sessionSet map[string]bool

func (s sessionSet) Active(_ context.Context, sessionID string) (bool, error) {
	return s[sessionID], nil
}

func issue(t *testing.T, svc *iauth.JWTService, sub iauth.TokenSubject) string {
	t.Helper()
	token, err := svc.Issue(sub)
	require.NoError(t, err)
	return token
}

func newSigner(t *testing.T) *iauth.JWTService {
	t.Helper()
	svc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "middleware-secret", AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	return svc
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return req
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	signer := newSigner(t)
	setup := func(r *gin.Engine) {
		r.GET("/secure", Auth(signer, nil), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	for name, header := range map[string]string{
		"missing":   "",
		"basic":     "Basic dXNlcjpwdw==",
		"garbage":   "Bearer not-a-token",
		"bare word": "Bearer",
		"other key": "Bearer " + issue(t, newForeignSigner(t), iauth.TokenSubject{UserID: "u"}),
	} {
		t.Run(name, func(t *testing.T) {
			w := serve(t, setup, bearer(header))
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			require.Equal(t, "UNAUTHORIZED", envelope(t, w).Error.Code)
		})
	}
}

func newForeignSigner(t *testing.T) *iauth.JWTService {
	t.Helper()
	svc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "someone-else"})
	require.NoError(t, err)
	return svc
}

func TestAuthPopulatesContext(t *testing.T) {
	signer := newSigner(t)
	token := issue(t, signer, iauth.TokenSubject{UserID: "user-123", SessionID: "session-abc", Username: "hr"})

	var (
		actor  auditctx.Actor
		claims *iauth.Claims
	)
	setup := func(r *gin.Engine) {
		r.GET("/secure", Auth(signer, sessionSet{"session-abc": true}), func(c *gin.Context) {
			actor, _ = auditctx.FromContext(c.Request.Context())
			claims, _ = Claims(c)
			require.Equal(t, "user-123", c.GetString(CtxUserIDKey))
			require.Equal(t, "session-abc", c.GetString(CtxSessionIDKey))
			c.Status(http.StatusNoContent)
		})
	}

	req := bearer("bearer " + token)
	req.Header.Set("User-Agent", "hrconsole-cli/1.0")
	w := serve(t, setup, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, auditctx.Actor{
		UserID:    "user-123",
		Username:  "hr",
		SessionID: "session-abc",
		IPAddress: "192.0.2.1",
		UserAgent: "hrconsole-cli/1.0",
	}, actor)
	require.NotNil(t, claims)
	require.Equal(t, "hr", claims.Username)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	signer := newSigner(t)
	setup := func(r *gin.Engine) {
		r.GET("/secure", Auth(signer, sessionSet{"live": true}), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}

	live := issue(t, signer, iauth.TokenSubject{UserID: "u", SessionID: "live"})
	revoked := issue(t, signer, iauth.TokenSubject{UserID: "u", SessionID: "revoked"})

	require.Equal(t, http.StatusNoContent, serve(t, setup, bearer("Bearer "+live)).Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, setup, bearer("Bearer "+revoked)).Code)
}
