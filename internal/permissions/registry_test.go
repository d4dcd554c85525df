package permissions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultsNameToID(t *testing.T) {
	const id = "test.unnamed"
	require.NoError(t, Register(&Permission{ID: id, Module: " test "}))
	t.Cleanup(func() { removePermission(id) })

	def, ok := Get(id)
	require.True(t, ok)
	require.Equal(t, id, def.Name)
	require.Equal(t, "test", def.Module)

	err := Register(&Permission{ID: id})
	require.Error(t, err)
	require.True(t, errors.Is(err, errDuplicateID))
}

func TestRegisterRejectsSelfReferences(t *testing.T) {
	require.ErrorIs(t, Register(&Permission{ID: "test.self", DependsOn: []string{"test.self"}}), errSelfDependency)
	require.ErrorIs(t, Register(&Permission{ID: "test.self", Implies: []string{"test.self"}}), errSelfImplication)
	require.ErrorIs(t, Register(&Permission{ID: "  "}), errEmptyID)
}

func TestConsoleCatalogueIsConsistent(t *testing.T) {
	require.NoError(t, ValidateDependencies())

	for _, id := range []string{"menu.view", "menu.manage", "role.view", "role.manage", "activity.export", "leave.approve", "payroll.run"} {
		_, ok := Get(id)
		require.True(t, ok, id)
	}

	menus := GetByModule(ModuleMenu)
	require.Len(t, menus, 2)
	require.Equal(t, "menu.manage", menus[0].ID)
	require.Equal(t, "menu.view", menus[1].ID)
}

func TestListOrdersByModuleThenID(t *testing.T) {
	list := List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.Module == cur.Module {
			require.Less(t, prev.ID, cur.ID)
			continue
		}
		require.Less(t, prev.Module, cur.Module)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	def, ok := Get("leave.manage")
	require.True(t, ok)
	def.Implies[0] = "mutated"

	again, _ := Get("leave.manage")
	require.Equal(t, []string{"leave.approve"}, again.Implies)
}
