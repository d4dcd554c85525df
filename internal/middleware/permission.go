package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/permissions"
	"github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/metrics"
	"github.com/charlesng35/hrconsole/pkg/response"
)

// CtxGrantKey holds the caller's permissions.Grant once a permission guard has loaded it.
const CtxGrantKey = "authGrant"

// GrantLoader computes the effective access of a user. *permissions.Checker implements it.
type GrantLoader interface {
	Grant(ctx context.Context, userID string) (permissions.Grant, *models.User, error)
}

// RequirePermission admits callers holding every listed permission.
func RequirePermission(loader GrantLoader, perms ...string) gin.HandlerFunc {
	return guard(loader, perms, true)
}

// RequireAnyPermission admits callers holding at least one listed permission.
func RequireAnyPermission(loader GrantLoader, perms ...string) gin.HandlerFunc {
	return guard(loader, perms, false)
}

func guard(loader GrantLoader, perms []string, all bool) gin.HandlerFunc {
	label := strings.Join(perms, "|")
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			unauthorized(c)
			return
		}
		grant, err := loadGrant(c, loader, userID)
		if err != nil {
			deny(c, label, "error", err)
			return
		}

		allowed := all
		for _, id := range perms {
			ok, err := grant.Has(id)
			if err != nil {
				deny(c, label, "error", err)
				return
			}
			if ok != all {
				allowed = ok
				break
			}
		}
		if !allowed {
			deny(c, label, "denied", nil)
			return
		}
		metrics.PermissionChecks.WithLabelValues(label, "allowed").Inc()
		c.Next()
	}
}

// loadGrant returns the caller's grant, loading it at most once per request.
func loadGrant(c *gin.Context, loader GrantLoader, userID string) (permissions.Grant, error) {
	if grant, ok := CurrentGrant(c); ok {
		return grant, nil
	}
	grant, _, err := loader.Grant(c.Request.Context(), userID)
	if err != nil {
		return permissions.Grant{}, err
	}
	c.Set(CtxGrantKey, grant)
	return grant, nil
}

// CurrentGrant returns the grant loaded by a permission guard earlier in the chain.
func CurrentGrant(c *gin.Context) (permissions.Grant, bool) {
	v, ok := c.Get(CtxGrantKey)
	if !ok {
		return permissions.Grant{}, false
	}
	grant, ok := v.(permissions.Grant)
	return grant, ok
}

func deny(c *gin.Context, label, outcome string, err error) {
	metrics.PermissionChecks.WithLabelValues(label, outcome).Inc()
	if err != nil {
		logger.WithModule("http").Error("permission check failed",
			zap.String("permissions", label),
			zap.String("user_id", c.GetString(CtxUserIDKey)),
			zap.Error(err),
		)
		response.Error(c, errors.ErrInternalServer)
	} else {
		response.Error(c, errors.ErrForbidden)
	}
	c.Abort()
}
