package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/services"
	"github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/response"
)

// ActivityHandler exposes the audit trail of console changes.
type ActivityHandler struct {
	svc *services.AuditService
	now func() time.Time
}

func NewActivityHandler(svc *services.AuditService) *ActivityHandler {
	return &ActivityHandler{svc: svc, now: time.Now}
}

// GET /api/activity
func (h *ActivityHandler) List(c *gin.Context) {
	filters, ok := activityFilters(c)
	if !ok {
		return
	}

	page, err := h.svc.List(requestContext(c), services.AuditListOptions{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "per_page", 0),
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Page(c, http.StatusOK, page.Entries, response.NewMeta(page.Page, page.PageSize, page.Total))
}

// GET /api/activity/export
func (h *ActivityHandler) Export(c *gin.Context) {
	filters, ok := activityFilters(c)
	if !ok {
		return
	}

	logs, err := h.svc.Export(requestContext(c), filters)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	var buf bytes.Buffer
	if err := services.WriteWorkbook(&buf, logs); err != nil {
		logger.WithModule("handlers").Error("activity export failed", zap.Error(err))
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	filename := fmt.Sprintf("activity-%s.xlsx", h.now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, services.AuditWorkbookContentType, buf.Bytes())
}

func activityFilters(c *gin.Context) (services.AuditFilters, bool) {
	filters := services.AuditFilters{
		UserID:   strings.TrimSpace(c.Query("user_id")),
		Action:   strings.TrimSpace(c.Query("action")),
		Result:   strings.TrimSpace(c.Query("result")),
		Resource: strings.TrimSpace(c.Query("resource")),
	}

	for key, dest := range map[string]**time.Time{"since": &filters.Since, "until": &filters.Until} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, errors.NewBadRequest(key+" must be an RFC3339 timestamp"))
			return filters, false
		}
		utc := parsed.UTC()
		*dest = &utc
	}
	return filters, true
}
