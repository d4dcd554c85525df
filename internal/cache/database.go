package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/hrconsole/internal/models"
)

// DatabaseStore keeps entries in the cache_entries table of the primary database. Expired rows are
// ignored on read and removed by DeleteExpired from the maintenance cleaner.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore returns nil for a nil handle.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

// WithClock replaces the time source.
func (s *DatabaseStore) WithClock(now func() time.Time) *DatabaseStore {
	s.now = now
	return s
}

func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, errNotInitialised
	}

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where(&models.CacheEntry{Key: key}).Take(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case entry.Expired(s.now()):
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return errNotInitialised
	}
	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}
	return s.upsert(s.db.WithContext(ctx), &entry)
}

func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil {
		return errNotInitialised
	}
	if len(keys) == 0 {
		return nil
	}
	// map condition: "key" is reserved on mysql and gorm quotes map keys
	return s.db.WithContext(ctx).Where(map[string]any{"key": keys}).Delete(&models.CacheEntry{}).Error
}

// Hit locks the counter row for the duration of the increment. The counter is kept as its decimal
// text so Get returns a readable value.
func (s *DatabaseStore) Hit(ctx context.Context, key string, window time.Duration) (Window, error) {
	if s == nil {
		return Window{}, errNotInitialised
	}
	window = windowOrDefault(window)
	now := s.now()

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.CacheEntry{Key: key}).
			Take(&entry).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err != nil || entry.Expired(now) {
			entry = models.CacheEntry{Key: key, ExpiresAt: now.Add(window)}
		}
		entry.SetCounter(entry.Counter() + 1)
		return s.upsert(tx, &entry)
	})
	if err != nil {
		return Window{}, err
	}
	return Window{Count: entry.Counter(), ResetIn: entry.ExpiresAt.Sub(now)}, nil
}

// DeleteExpired removes rows whose expiry has passed. Rows without expiry are kept.
func (s *DatabaseStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil {
		return 0, errNotInitialised
	}
	res := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Time{}, now).
		Delete(&models.CacheEntry{})
	return res.RowsAffected, res.Error
}

func (s *DatabaseStore) upsert(tx *gorm.DB, entry *models.CacheEntry) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(entry).Error
}
