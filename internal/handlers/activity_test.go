package handlers_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/handlers/testutil"
	"github.com/charlesng35/hrconsole/internal/services"
)

type activityEntry struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Result   string `json:"result"`
	Username string `json:"username"`
}

func TestActivityListsMenuWrites(t *testing.T) {
	env := testutil.NewEnv(t)
	adminUser := env.CreateUser("Passw0rd!", database.AdminRoleName)
	admin := env.Login(adminUser.Username, "Passw0rd!").AccessToken

	for _, name := range []string{"reports", "archive", "handbook"} {
		w := env.Request(http.MethodPost, "/api/menus", map[string]any{"name": name, "label": name}, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := env.Request(http.MethodGet, "/api/activity?action=menu.create&per_page=2", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entries []activityEntry
	resp := testutil.Data(t, w, &entries)
	require.NotNil(t, resp.Meta)
	require.Equal(t, 3, resp.Meta.Total)
	require.Equal(t, 2, resp.Meta.PerPage)
	require.Equal(t, 2, resp.Meta.TotalPages)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.Equal(t, "menu.create", entry.Action)
		require.Equal(t, "success", entry.Result)
		require.Equal(t, adminUser.Username, entry.Username)
	}

	w = env.Request(http.MethodGet, "/api/activity?since=yesterday", nil, admin)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivityRequiresPermissions(t *testing.T) {
	env := testutil.NewEnv(t)

	employee := env.LoginAs(database.EmployeeRoleName)
	w := env.Request(http.MethodGet, "/api/activity", nil, employee)
	require.Equal(t, http.StatusForbidden, w.Code)

	// HR managers may read the log but not export it.
	hr := env.LoginAs(database.HRRoleName)
	w = env.Request(http.MethodGet, "/api/activity", nil, hr)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.Request(http.MethodGet, "/api/activity/export", nil, hr)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestActivityExportWorkbook(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.LoginAs(database.AdminRoleName)

	w := env.Request(http.MethodPost, "/api/menus", map[string]any{"name": "reports", "label": "Reports"}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/activity/export?action=menu.create", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, services.AuditWorkbookContentType, w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"activity-")

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(book.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Contains(t, rows[1], "menu.create")
}
