package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/models"
)

func TestReadAndWriteSetting(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.SystemSetting{}))

	_, ok, err := readSetting(ctx, db, MenuSeedSetting)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, writeSetting(ctx, db, MenuSeedSetting, "1"))
	require.NoError(t, writeSetting(ctx, db, MenuSeedSetting, "2"))

	value, ok, err := readSetting(ctx, db, MenuSeedSetting)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)

	var rows int64
	require.NoError(t, db.Model(&models.SystemSetting{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)

	require.Error(t, writeSetting(ctx, db, "  ", "x"))
}
