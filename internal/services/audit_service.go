package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/pkg/validator"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditEntry is one event to record. UserID stays nil for anonymous actions such as failed logins.
type AuditEntry struct {
	UserID    *string
	Username  string `validate:"max=255"`
	Action    string `validate:"required,max=100"`
	Resource  string `validate:"max=255"`
	Result    string `validate:"required,oneof=success failure denied"`
	IPAddress string `validate:"max=45"`
	UserAgent string
	Metadata  map[string]any
}

func (e AuditEntry) row() (models.AuditLog, error) {
	for _, f := range []*string{&e.Username, &e.Action, &e.Resource, &e.Result, &e.IPAddress, &e.UserAgent} {
		*f = strings.TrimSpace(*f)
	}
	if err := validator.ValidateStruct(e); err != nil {
		return models.AuditLog{}, err
	}

	row := models.AuditLog{
		Action:    e.Action,
		Resource:  e.Resource,
		Result:    e.Result,
		Username:  e.Username,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}
	if e.UserID != nil && strings.TrimSpace(*e.UserID) != "" {
		id := strings.TrimSpace(*e.UserID)
		row.UserID = &id
	}
	if len(e.Metadata) > 0 {
		doc, err := json.Marshal(e.Metadata)
		if err != nil {
			return models.AuditLog{}, fmt.Errorf("marshal metadata: %w", err)
		}
		row.Metadata = string(doc)
	}
	return row, nil
}

// AuditFilters narrows audit queries. Zero fields match everything; an Action ending in "*" matches
// by prefix, so "menu.*" selects every menu change.
type AuditFilters struct {
	UserID   string
	Action   string
	Result   string
	Resource string
	Since    *time.Time
	Until    *time.Time
}

func (f AuditFilters) scope(db *gorm.DB) *gorm.DB {
	if prefix, ok := strings.CutSuffix(f.Action, "*"); ok {
		db = db.Where("action LIKE ?", prefix+"%")
	} else if f.Action != "" {
		db = db.Where("action = ?", f.Action)
	}
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.Result != "" {
		db = db.Where("result = ?", f.Result)
	}
	if f.Resource != "" {
		db = db.Where("resource = ?", f.Resource)
	}
	if f.Since != nil {
		db = db.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		db = db.Where("created_at <= ?", *f.Until)
	}
	return db.Order("created_at DESC").Order("id DESC")
}

type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditPage is one page of entries. Page and PageSize are the values actually applied.
type AuditPage struct {
	Entries  []models.AuditLog
	Page     int
	PageSize int
	Total    int64
}

// AuditService writes and queries the audit_logs table.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, now: time.Now}, nil
}

// Log stores entry with its metadata as a JSON document.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	row, err := entry.row()
	if err != nil {
		return fmt.Errorf("audit service: %w", err)
	}
	return s.db.WithContext(ensureContext(ctx)).Create(&row).Error
}

// List returns one page of matching entries, newest first. Out of range sizes fall back to the
// default page size.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) (AuditPage, error) {
	page := AuditPage{Entries: []models.AuditLog{}, Page: max(opts.Page, 1), PageSize: opts.PageSize}
	if page.PageSize <= 0 || page.PageSize > maxAuditPageSize {
		page.PageSize = defaultAuditPageSize
	}

	query := s.db.WithContext(ensureContext(ctx)).Model(&models.AuditLog{}).Scopes(opts.Filters.scope)
	if err := query.Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("audit service: count logs: %w", err)
	}
	if page.Total == 0 {
		return page, nil
	}
	err := query.Offset((page.Page - 1) * page.PageSize).Limit(page.PageSize).Find(&page.Entries).Error
	if err != nil {
		return page, fmt.Errorf("audit service: list logs: %w", err)
	}
	return page, nil
}

// Export returns every matching entry, newest first.
func (s *AuditService) Export(ctx context.Context, filters AuditFilters) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := s.db.WithContext(ensureContext(ctx)).Scopes(filters.scope).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit service: export logs: %w", err)
	}
	return logs, nil
}

// CleanupOlderThan deletes entries created more than retentionDays ago.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ensureContext(ctx)).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
