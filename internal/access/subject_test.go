package access

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/menutree"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

func ptr(v uint) *uint { return &v }

func consoleMenus() []menutree.Record {
	return []menutree.Record{
		{ID: 1, Name: "dashboard", Label: "Dashboard", Active: true},
		{ID: 2, Name: "admin", Label: "Administration", Active: true, RoleIDs: []uint{1}},
		{ID: 3, ParentID: ptr(2), Name: "menus", Label: "Menus", Active: true, PermissionIDs: []string{"menu.view"}},
		{ID: 4, ParentID: ptr(2), Name: "roles", Label: "Roles", Active: true, RoleIDs: []uint{1}},
		{ID: 5, Name: "payroll", Label: "Payroll", Active: true, PermissionIDs: []string{"payroll.view"}},
		{ID: 6, ParentID: ptr(5), Name: "runs", Label: "Runs", Active: true},
		{ID: 7, Name: "archive", Label: "Archive", Active: false},
	}
}

func visibleIDs(forest menutree.Forest) []uint {
	var out []uint
	forest.Walk(func(n *menutree.Node) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

func TestAllowed(t *testing.T) {
	m := FromRecords(consoleMenus())

	anonymousRole := Subject{}
	require.True(t, m.Allowed(1, anonymousRole), "unrestricted menu")
	require.False(t, m.Allowed(2, anonymousRole))

	admin := Subject{RoleIDs: []uint{1}}
	require.True(t, m.Allowed(2, admin))
	require.False(t, m.Allowed(3, admin), "menu 3 is gated by permission only")

	viewer := Subject{Evaluator: permissions.NewEvaluator(nil, permissions.Identifiers("menu.view"))}
	require.True(t, m.Allowed(3, viewer))

	require.True(t, m.Allowed(2, Subject{Root: true}))
}

func TestVisibleHidesSubtreeOfInaccessibleParent(t *testing.T) {
	records := consoleMenus()
	forest := menutree.Build(records)
	m := FromRecords(records)

	viewer := Subject{Evaluator: permissions.NewEvaluator(nil, permissions.Identifiers("menu.view"))}
	require.Equal(t, []uint{1}, visibleIDs(Visible(forest, m, viewer)))

	payroll := Subject{Evaluator: permissions.NewEvaluator(nil, permissions.Identifiers("payroll.view"))}
	require.Equal(t, []uint{1, 5, 6}, visibleIDs(Visible(forest, m, payroll)))

	admin := Subject{
		RoleIDs:   []uint{1},
		Evaluator: permissions.NewEvaluator(nil, permissions.Identifiers("menu.view")),
	}
	require.Equal(t, []uint{1, 2, 3, 4}, visibleIDs(Visible(forest, m, admin)))

	root := Subject{Root: true}
	require.Equal(t, []uint{1, 2, 3, 4, 5, 6}, visibleIDs(Visible(forest, m, root)), "inactive menus stay hidden")
}
