package services

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/charlesng35/hrconsole/internal/auditctx"
	"github.com/charlesng35/hrconsole/internal/models"
)

func TestAuditServiceLogListAndExport(t *testing.T) {
	env := newTestServices(t, MenuServiceConfig{})
	user := env.createUser(t, "auditor")
	ctx := context.Background()

	err := env.audit.Log(ctx, AuditEntry{
		UserID:   &user.ID,
		Username: "auditor",
		Action:   "payroll.run",
		Resource: "payroll:2026-10",
		Result:   "success",
		Metadata: map[string]any{"employees": 42},
	})
	require.NoError(t, err)

	page, err := env.audit.List(ctx, AuditListOptions{Page: 1, PageSize: 10, Filters: AuditFilters{UserID: user.ID}})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "payroll.run", page.Entries[0].Action)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal([]byte(page.Entries[0].Metadata), &metadata))
	require.EqualValues(t, 42, metadata["employees"])

	exported, err := env.audit.Export(ctx, AuditFilters{Action: "payroll.run"})
	require.NoError(t, err)
	require.Len(t, exported, 1)

	require.Error(t, env.audit.Log(ctx, AuditEntry{Result: "success"}))
	require.Error(t, env.audit.Log(ctx, AuditEntry{Action: "x"}))
	require.Error(t, env.audit.Log(ctx, AuditEntry{Action: "x", Result: "maybe"}))
	require.Error(t, env.audit.Log(ctx, AuditEntry{Action: "  ", Result: "success"}))
}

func TestAuditServiceListPaging(t *testing.T) {
	env := newTestServices(t, MenuServiceConfig{})
	ctx := context.Background()
	for _, action := range []string{"menu.create", "menu.update", "menu.delete", "role.create"} {
		require.NoError(t, env.audit.Log(ctx, AuditEntry{Action: action, Result: "success"}))
	}

	page, err := env.audit.List(ctx, AuditListOptions{Page: 2, PageSize: 2, Filters: AuditFilters{Action: "menu.*"}})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Len(t, page.Entries, 1)

	page, err = env.audit.List(ctx, AuditListOptions{PageSize: 10_000})
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, defaultAuditPageSize, page.PageSize)
	require.Len(t, page.Entries, 4)

	page, err = env.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: "payroll.*"}})
	require.NoError(t, err)
	require.Zero(t, page.Total)
	require.NotNil(t, page.Entries)
}

func TestRecordAuditFillsActorFromContext(t *testing.T) {
	env := newTestServices(t, MenuServiceConfig{})
	user := env.createUser(t, "actor")

	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{
		UserID:    user.ID,
		Username:  user.Username,
		IPAddress: "192.0.2.7",
		UserAgent: "console/1.0",
	})
	recordAudit(env.audit, ctx, AuditEntry{Action: "menu.create", Resource: "menu:1", Result: "success"})

	page, err := env.audit.List(context.Background(), AuditListOptions{Filters: AuditFilters{Action: "menu.create"}})
	require.NoError(t, err)
	logs := page.Entries
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].UserID)
	require.Equal(t, user.ID, *logs[0].UserID)
	require.Equal(t, "actor", logs[0].Username)
	require.Equal(t, "192.0.2.7", logs[0].IPAddress)
	require.Equal(t, "console/1.0", logs[0].UserAgent)
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	env := newTestServices(t, MenuServiceConfig{})

	oldLog := models.AuditLog{
		BaseModel: models.BaseModel{CreatedAt: time.Now().AddDate(0, 0, -10)},
		Action:    "old.action",
		Result:    "success",
		Metadata:  "{}",
	}
	require.NoError(t, env.db.Create(&oldLog).Error)
	require.NoError(t, env.audit.Log(context.Background(), AuditEntry{Action: "new.action", Result: "success"}))

	rows, err := env.audit.CleanupOlderThan(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	_, err = env.audit.CleanupOlderThan(context.Background(), 0)
	require.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	userID := "3f0a5c8e-1111-2222-3333-444455556666"
	logs := []models.AuditLog{
		{
			BaseModel: models.BaseModel{CreatedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)},
			UserID:    &userID,
			Username:  "hr",
			Action:    "leave.approve",
			Resource:  "leave:17",
			Result:    "success",
			Metadata:  `{"days":3}`,
		},
		{Action: "menu.delete", Result: "failure"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, logs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Activity")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, auditWorkbookHeaders, rows[0])
	require.Equal(t, "2026-10-01T09:30:00Z", rows[1][0])
	require.Equal(t, userID, rows[1][1])
	require.Equal(t, "leave.approve", rows[1][3])
	require.Equal(t, "menu.delete", rows[2][3])
}
