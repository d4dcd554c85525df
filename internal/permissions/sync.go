package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/hrconsole/internal/models"
)

var syncedColumns = []string{"name", "module", "description", "depends_on", "implies"}

// Sync upserts the registered catalogue into the permissions table in one transaction. Rows of
// permissions no longer registered are left alone so existing grants keep resolving.
func Sync(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("permission: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	defs := List()
	if len(defs) == 0 {
		return nil
	}

	records := make([]models.Permission, 0, len(defs))
	for _, def := range defs {
		record, err := toModel(def)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(syncedColumns),
		}).CreateInBatches(&records, 100).Error
		if err != nil {
			return fmt.Errorf("permission: sync catalogue: %w", err)
		}
		return nil
	})
}

func toModel(def *Permission) (models.Permission, error) {
	depends, err := encodeIDs(def.DependsOn)
	if err != nil {
		return models.Permission{}, fmt.Errorf("permission: encode depends_on for %s: %w", def.ID, err)
	}
	implies, err := encodeIDs(def.Implies)
	if err != nil {
		return models.Permission{}, fmt.Errorf("permission: encode implies for %s: %w", def.ID, err)
	}
	return models.Permission{
		ID:          def.ID,
		Name:        def.Name,
		Module:      def.Module,
		Description: def.Description,
		DependsOn:   depends,
		Implies:     implies,
	}, nil
}

// encodeIDs stores nil as an empty JSON list so readers never see "null".
func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	return string(raw), err
}
