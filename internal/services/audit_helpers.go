package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/auditctx"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

// recordAudit logs the supplied entry while tolerating audit failures. Missing actor details are taken
// from the request context.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}

	if caller, ok := auditctx.FromContext(ctx); ok {
		own := auditctx.Actor{Username: entry.Username, IPAddress: entry.IPAddress, UserAgent: entry.UserAgent}
		if entry.UserID != nil {
			own.UserID = *entry.UserID
		}
		actor := own.Merge(caller)
		if actor.UserID != "" {
			entry.UserID = &actor.UserID
		}
		entry.Username, entry.IPAddress, entry.UserAgent = actor.Username, actor.IPAddress, actor.UserAgent
		if actor.SessionID != "" {
			if entry.Metadata == nil {
				entry.Metadata = map[string]any{}
			}
			if _, set := entry.Metadata["session_id"]; !set {
				entry.Metadata["session_id"] = actor.SessionID
			}
		}
	}

	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("failed to record audit entry",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
