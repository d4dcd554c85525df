package services

import (
	"context"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

// PermissionChecker abstracts permission evaluation for services and middleware.
type PermissionChecker interface {
	Check(ctx context.Context, userID, permissionID string) (bool, error)
	Evaluator(ctx context.Context, userID string) (permissions.Evaluator, *models.User, error)
}

var _ PermissionChecker = (*permissions.Checker)(nil)
