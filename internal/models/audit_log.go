package models

// AuditLog is one entry of the console activity log.
type AuditLog struct {
	BaseModel

	UserID    *string `gorm:"type:uuid;index" json:"user_id"`
	Username  string  `json:"username"`
	Action    string  `gorm:"not null;index" json:"action"`
	Resource  string  `gorm:"index" json:"resource"`
	Result    string  `gorm:"not null" json:"result"`
	IPAddress string  `json:"ip_address"`
	UserAgent string  `json:"user_agent"`
	Metadata  string  `gorm:"type:json" json:"metadata"`
}
