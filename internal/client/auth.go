package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/charlesng35/hrconsole/internal/access"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

// TokenPair is the token response of login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RoleRef is a role as carried by the identity and menu payloads.
type RoleRef struct {
	ID   uint   `json:"id"`
	Name string `json:"role_name"`
}

// Identity is the signed in user. Permissions are normalised on decode, whatever shape the server used.
type Identity struct {
	ID          string                   `json:"id"`
	Username    string                   `json:"username"`
	Email       string                   `json:"email"`
	FirstName   string                   `json:"first_name,omitempty"`
	LastName    string                   `json:"last_name,omitempty"`
	DisplayName string                   `json:"display_name,omitempty"`
	IsRoot      bool                     `json:"is_root"`
	IsActive    bool                     `json:"is_active"`
	Roles       []RoleRef                `json:"roles"`
	Permissions []permissions.Identifier `json:"permissions"`
}

// Evaluator answers role and permission questions for the identity.
func (i Identity) Evaluator() permissions.Evaluator {
	roles := make([]permissions.Identifier, 0, len(i.Roles))
	for _, role := range i.Roles {
		roles = append(roles, permissions.Identifier{Name: role.Name})
	}
	return permissions.NewEvaluator(roles, i.Permissions)
}

// Subject is the identity in the shape the access matrix checks.
func (i Identity) Subject() access.Subject {
	ids := make([]uint, 0, len(i.Roles))
	for _, role := range i.Roles {
		ids = append(ids, role.ID)
	}
	return access.Subject{Root: i.IsRoot, RoleIDs: ids, Evaluator: i.Evaluator()}
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	TokenPair
	User Identity `json:"user"`
}

// Login signs in with a username or email. A 401 here is a credential failure and is never refreshed.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body: map[string]string{
			"identifier": strings.TrimSpace(identifier),
			"password":   password,
		},
		public: true,
	}, &result)
	if err != nil {
		return nil, err
	}

	c.cache.Reset()
	c.tokens.SetTokens(Tokens{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
	return &result, nil
}

// Refresh rotates the held token pair explicitly.
func (c *Client) Refresh(ctx context.Context) (*TokenPair, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current := c.tokens.Tokens()
	if current.RefreshToken == "" {
		return nil, newError(KindUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "not signed in")
	}
	pair, err := c.exchange(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	c.tokens.SetTokens(Tokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	return &pair, nil
}

// Logout revokes the server session and drops the local tokens even when revocation fails.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if !c.tokens.Tokens().Empty() {
		err = c.do(ctx, call{method: http.MethodPost, path: "/auth/logout"}, nil)
	}
	c.tokens.ClearTokens()
	c.cache.Reset()
	return err
}

// Me returns the identity behind the held token.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/me"}, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}
