package models

import "time"

// SystemSetting is one installation-wide key/value pair, such as the marker of a one-time seed.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
