package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/auth/providers"
	"github.com/charlesng35/hrconsole/internal/middleware"
	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/permissions"
	"github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/metrics"
	"github.com/charlesng35/hrconsole/pkg/response"
)

var (
	errAccountLocked   = errors.New("ACCOUNT_LOCKED", "Account temporarily locked after repeated failures", http.StatusUnauthorized)
	errAccountDisabled = errors.New("ACCOUNT_DISABLED", "Account is disabled", http.StatusForbidden)
)

// AuthHandler manages authentication flows (login/refresh/logout/me).
type AuthHandler struct {
	provider *providers.LocalProvider
	sessions *iauth.SessionService
	checker  *permissions.Checker
}

func NewAuthHandler(provider *providers.LocalProvider, sessions *iauth.SessionService, checker *permissions.Checker) *AuthHandler {
	return &AuthHandler{provider: provider, sessions: sessions, checker: checker}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type roleRef struct {
	ID   uint   `json:"id"`
	Name string `json:"role_name"`
}

type identityPayload struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DisplayName string    `json:"display_name"`
	IsRoot      bool      `json:"is_root"`
	IsActive    bool      `json:"is_active"`
	Roles       []roleRef `json:"roles"`
	Permissions []string  `json:"permissions"`
}

type loginResponse struct {
	iauth.TokenPair
	User identityPayload `json:"user"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.provider.Authenticate(requestContext(c), providers.AuthenticateInput{
		Identifier: strings.TrimSpace(req.Identifier),
		Password:   req.Password,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		switch {
		case stderrors.Is(err, providers.ErrInvalidCredentials):
			response.Error(c, errors.ErrInvalidCredentials)
		case stderrors.Is(err, providers.ErrAccountLocked):
			response.Error(c, errAccountLocked)
		case stderrors.Is(err, providers.ErrAccountDisabled):
			response.Error(c, errAccountDisabled)
		default:
			logger.WithModule("auth").Error("login failed", zap.Error(err))
			response.Error(c, errors.ErrInternalServer)
		}
		return
	}

	pair, _, err := h.sessions.Start(requestContext(c), user, iauth.ClientInfo{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	identity, err := h.identity(c, user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, loginResponse{TokenPair: pair, User: identity})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.Rotate(requestContext(c), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if iauth.IsSessionError(err) {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionIDKey)
	if sessionID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.sessions.Revoke(requestContext(c), sessionID); err != nil && !stderrors.Is(err, iauth.ErrSessionNotFound) {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	identity, err := h.identity(c, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, identity)
}

func (h *AuthHandler) identity(c *gin.Context, userID string) (identityPayload, error) {
	evaluator, user, err := h.checker.Evaluator(requestContext(c), userID)
	if err != nil {
		return identityPayload{}, err
	}
	return newIdentityPayload(user, evaluator.Permissions()), nil
}

func newIdentityPayload(user *models.User, perms []string) identityPayload {
	roles := make([]roleRef, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, roleRef{ID: role.ID, Name: role.Name})
	}
	if perms == nil {
		perms = []string{}
	}
	return identityPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		DisplayName: user.DisplayName(),
		IsRoot:      user.IsRoot,
		IsActive:    user.IsActive,
		Roles:       roles,
		Permissions: perms,
	}
}
