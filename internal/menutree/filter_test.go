package menutree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleForest() Forest {
	return Build([]Record{
		{ID: 1, Name: "admin", Label: "Administration", Active: true},
		{ID: 2, ParentID: ptr(1), Name: "menus", Label: "Menus", URL: "/admin/menus", Active: true},
		{ID: 3, ParentID: ptr(1), Name: "roles", Label: "Roles", URL: "/admin/roles", Active: false},
		{ID: 4, Name: "leave", Label: "Leave", URL: "/leave", Active: true, Order: 1},
		{ID: 5, ParentID: ptr(4), Name: "leave-approvals", Label: "Approvals", URL: "/leave/approvals", Active: true},
	})
}

func TestFilterScenario(t *testing.T) {
	forest := Build([]Record{
		{ID: 1, Order: 0, Label: "Root", Active: true},
		{ID: 2, ParentID: ptr(1), Order: 1, Label: "Child", Active: true},
	})

	kept := Filter(forest, "chi", false)
	require.Len(t, kept, 1)
	require.Equal(t, "Root", kept[0].Label)
	require.Len(t, kept[0].Children, 1)
	require.Equal(t, "Child", kept[0].Children[0].Label)

	require.Empty(t, Filter(forest, "zzz", false))
}

func TestFilterEmptyTermIncludeInactiveReturnsEqualCopy(t *testing.T) {
	forest := sampleForest()
	out := Filter(forest, "", true)

	require.Equal(t, forest, out)
	out[0].Children[0].Label = "mutated"
	require.Equal(t, "Menus", forest[0].Children[0].Label)
}

func TestFilterDropsInactive(t *testing.T) {
	out := Filter(sampleForest(), "", false)

	admin, ok := out.Find(1)
	require.True(t, ok)
	require.Len(t, admin.Children, 1)
	_, ok = out.Find(3)
	require.False(t, ok)
}

func TestFilterMatchesURLCaseInsensitively(t *testing.T) {
	out := Filter(sampleForest(), "APPROVALS", false)

	require.Len(t, out, 1)
	require.Equal(t, uint(4), out[0].ID)
	require.Equal(t, uint(5), out[0].Children[0].ID)
	require.Equal(t, 2, out.Count())
}

func TestFilterNeverKeepsUnmatchedLeaf(t *testing.T) {
	forest := sampleForest()
	for _, term := range []string{"admin", "roles", "leave", "menus", "x"} {
		for _, inactive := range []bool{true, false} {
			out := Filter(forest, term, inactive)
			out.Walk(func(n *Node) bool {
				if len(n.Children) == 0 {
					require.True(t, Matches(n.Record, term, inactive), "term %q leaf %d", term, n.ID)
				}
				return true
			})
		}
	}
}

func TestFilterInactiveMatchNeedsFlag(t *testing.T) {
	forest := sampleForest()

	require.Empty(t, Filter(forest, "roles", false))
	out := Filter(forest, "roles", true)
	require.Equal(t, 2, out.Count())
}

func TestSelectHidesSubtreeOfRejectedParent(t *testing.T) {
	forest := sampleForest()
	out := Select(forest, func(n *Node) bool { return n.ID != 4 })

	_, ok := out.Find(5)
	require.False(t, ok)
	require.Equal(t, 3, out.Count())
}
