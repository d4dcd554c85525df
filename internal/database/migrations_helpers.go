package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
)

// attach links owner to the rows of T whose ids are listed. Missing ids are skipped and links that
// already exist are left alone, so seeding can run on every start.
func attach[T any, K comparable](tx *gorm.DB, owner any, association string, ids []K) error {
	if len(ids) == 0 {
		return nil
	}
	var rows []T
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return fmt.Errorf("load %s: %w", association, err)
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Model(owner).Association(association).Append(rows)
}

func assignRolePermissions(tx *gorm.DB, role *models.Role, permissionIDs []string) error {
	return attach[models.Permission](tx, role, "Permissions", permissionIDs)
}

func assignMenuGrants(tx *gorm.DB, menu *models.Menu, roleIDs []uint, permissionIDs []string) error {
	if err := attach[models.Role](tx, menu, "Roles", roleIDs); err != nil {
		return err
	}
	return attach[models.Permission](tx, menu, "Permissions", permissionIDs)
}
