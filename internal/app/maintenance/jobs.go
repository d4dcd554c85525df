// Package maintenance schedules the housekeeping the backend needs: lapsed refresh sessions, old
// activity entries and expired cache rows.
package maintenance

import (
	"context"
	"time"
)

const (
	JobSessions = "session_cleanup"
	JobAudit    = "audit_cleanup"
	JobCache    = "cache_cleanup"

	DefaultAuditRetentionDays = 90
)

// Job is one unit of housekeeping. Run reports how many rows it removed.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

type SessionPurger interface {
	Purge(ctx context.Context) (int64, error)
}

type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

type CacheSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionJob removes refresh sessions that were revoked or have lapsed.
func SessionJob(sessions SessionPurger, spec string) Job {
	return Job{Name: JobSessions, Spec: orDefault(spec, "@hourly"), Run: sessions.Purge}
}

// AuditJob drops activity entries older than days. Zero or less keeps the default retention.
func AuditJob(audit AuditPruner, days int, spec string) Job {
	if days <= 0 {
		days = DefaultAuditRetentionDays
	}
	return Job{
		Name: JobAudit,
		Spec: orDefault(spec, "@daily"),
		Run: func(ctx context.Context) (int64, error) {
			return audit.CleanupOlderThan(ctx, days)
		},
	}
}

// CacheJob sweeps cache rows that expired before now().
func CacheJob(cache CacheSweeper, now func() time.Time, spec string) Job {
	if now == nil {
		now = time.Now
	}
	return Job{
		Name: JobCache,
		Spec: orDefault(spec, "@every 10m"),
		Run: func(ctx context.Context) (int64, error) {
			return cache.DeleteExpired(ctx, now())
		},
	}
}

func orDefault(spec, fallback string) string {
	if spec == "" {
		return fallback
	}
	return spec
}
