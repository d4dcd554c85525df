package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/hrconsole/internal/models"
)

// readSetting returns the stored value and whether the key exists.
func readSetting(ctx context.Context, db *gorm.DB, key string) (string, bool, error) {
	var setting models.SystemSetting
	// struct conditions quote the column, key is reserved in mysql
	err := db.WithContext(ctx).Where(&models.SystemSetting{Key: key}).Take(&setting).Error
	switch {
	case err == nil:
		return setting.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("settings: read %q: %w", key, err)
	}
}

// writeSetting inserts the key or overwrites its value.
func writeSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("settings: key is required")
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SystemSetting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("settings: write %q: %w", key, err)
	}
	return nil
}
