package models

import (
	"strconv"
	"time"
)

// CacheEntry is one row of the database backed cache. A zero ExpiresAt never expires.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Counter reads Value as a rate counter. Anything unparsable counts as zero.
func (e CacheEntry) Counter() int64 {
	n, err := strconv.ParseInt(string(e.Value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SetCounter stores n as Value.
func (e *CacheEntry) SetCounter(n int64) {
	e.Value = strconv.AppendInt(nil, n, 10)
}
