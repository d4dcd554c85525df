package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBeforeCreateAssignsTimeOrderedIDs(t *testing.T) {
	var first, second BaseModel
	require.NoError(t, first.BeforeCreate(nil))
	require.NoError(t, second.BeforeCreate(nil))

	parsed, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
	require.NotEqual(t, first.ID, second.ID)

	fixed := BaseModel{ID: "fixed"}
	require.NoError(t, fixed.BeforeCreate(nil))
	require.Equal(t, "fixed", fixed.ID)

	user := User{}
	require.NoError(t, user.BeforeCreate(nil))
	require.NotEmpty(t, user.ID, "embedded hook")
}

func TestAccessIDs(t *testing.T) {
	menu := Menu{
		Roles:       []Role{{SerialModel: SerialModel{ID: 2}}, {SerialModel: SerialModel{ID: 5}}},
		Permissions: []Permission{{ID: "menu.view"}},
	}
	require.Equal(t, []uint{2, 5}, menu.RoleIDs())
	require.Equal(t, []string{"menu.view"}, menu.PermissionIDs())

	role := Role{Menus: []Menu{{SerialModel: SerialModel{ID: 9}}}}
	require.Equal(t, []uint{9}, role.MenuIDs())
	require.Empty(t, role.PermissionIDs())
	require.NotNil(t, role.PermissionIDs())
}

func TestUserHelpers(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	later, earlier := now.Add(time.Minute), now.Add(-time.Minute)

	cases := []struct {
		user   User
		name   string
		locked bool
	}{
		{User{Username: "ana"}, "ana", false},
		{User{Username: "ana", FirstName: "Ana", LastName: "Lee", LockedUntil: &later}, "Ana Lee", true},
		{User{Username: "ana", LastName: "Lee", LockedUntil: &earlier}, "Lee", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.name, tc.user.DisplayName())
		require.Equal(t, tc.locked, tc.user.Locked(now))
	}
}

func TestSessionLifetime(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	session := Session{ExpiresAt: now.Add(time.Hour)}
	require.True(t, session.Active(now))
	require.Equal(t, time.Hour, session.Remaining(now))
	require.Zero(t, session.Remaining(now.Add(2*time.Hour)))

	session.RevokedAt = &now
	require.False(t, session.Active(now))
	require.Zero(t, session.Remaining(now))
}

func TestCacheEntryCounter(t *testing.T) {
	var entry CacheEntry
	require.Zero(t, entry.Counter())
	entry.SetCounter(41)
	require.Equal(t, int64(41), entry.Counter())
	require.Equal(t, "41", string(entry.Value))

	now := time.Now()
	require.False(t, entry.Expired(now), "zero expiry never expires")
	entry.ExpiresAt = now
	require.True(t, entry.Expired(now))
}
