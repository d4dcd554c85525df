// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/database"
)

// Open returns an empty private in-memory SQLite database closed on test cleanup.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, database.Close(db)) })
	return db
}

// Migrated is Open with the schema applied.
func Migrated(t testing.TB) *gorm.DB {
	t.Helper()
	db := Open(t)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Seeded is Migrated plus the default roles, permission catalogue and menu tree.
func Seeded(t testing.TB) *gorm.DB {
	t.Helper()
	db := Open(t)
	require.NoError(t, database.AutoMigrateAndSeed(db))
	return db
}

// Count returns the number of rows of model.
func Count(t testing.TB, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.WithContext(context.Background()).Model(model).Count(&n).Error)
	return n
}
