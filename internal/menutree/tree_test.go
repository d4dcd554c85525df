package menutree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/hrconsole/pkg/logger"
)

func ptr(v uint) *uint { return &v }

func rec(id uint, parent *uint, order int, label string) Record {
	return Record{ID: id, ParentID: parent, Order: order, Name: label, Label: label, Active: true}
}

func requireLevels(t *testing.T, forest Forest) {
	t.Helper()
	var check func(nodes []*Node, level int)
	check = func(nodes []*Node, level int) {
		for _, n := range nodes {
			require.Equal(t, level, n.Level, "menu %d", n.ID)
			check(n.Children, level+1)
		}
	}
	check(forest, 0)
}

func TestBuildRootAndChild(t *testing.T) {
	forest := Build([]Record{
		rec(1, nil, 0, "Root"),
		rec(2, ptr(1), 1, "Child"),
	})

	require.Len(t, forest, 1)
	require.Equal(t, "Root", forest[0].Label)
	require.Equal(t, 0, forest[0].Level)
	require.Len(t, forest[0].Children, 1)
	require.Equal(t, "Child", forest[0].Children[0].Label)
	require.Equal(t, 1, forest[0].Children[0].Level)
}

func TestBuildPreservesCountAndLevels(t *testing.T) {
	records := []Record{
		rec(5, ptr(2), 0, "Payroll Runs"),
		rec(1, nil, 2, "Admin"),
		rec(2, nil, 1, "Finance"),
		rec(3, ptr(1), 0, "Menus"),
		rec(4, ptr(1), 1, "Roles"),
		rec(6, ptr(5), 0, "History"),
		rec(7, ptr(42), 0, "Lost"),
	}

	forest := Build(records)
	require.Equal(t, len(records), forest.Count())
	requireLevels(t, forest)
}

func TestBuildSortsSiblingsStably(t *testing.T) {
	forest := Build([]Record{
		rec(1, nil, 1, "B"),
		rec(2, nil, 0, "A"),
		rec(3, nil, 1, "C"),
		rec(4, ptr(2), 3, "A2"),
		rec(5, ptr(2), 1, "A1"),
	})

	var labels []string
	for _, n := range forest {
		labels = append(labels, n.Label)
	}
	require.Equal(t, []string{"A", "B", "C"}, labels)
	require.Equal(t, "A1", forest[0].Children[0].Label)
	require.Equal(t, "A2", forest[0].Children[1].Label)
}

func TestBuildPromotesOrphanAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	forest, report := BuildWithReport([]Record{
		rec(1, nil, 0, "Root"),
		rec(2, ptr(99), 0, "Orphan"),
	})

	require.Len(t, forest, 2)
	require.Equal(t, []uint{2}, report.Orphans)
	require.False(t, report.Clean())

	entries := logs.FilterMessage("orphaned parent reference").All()
	require.Len(t, entries, 1)
	require.Equal(t, "menutree", entries[0].ContextMap()["module"])
}

func TestBuildPromotesSelfParent(t *testing.T) {
	forest, report := BuildWithReport([]Record{rec(1, ptr(1), 0, "Loop")})

	require.Len(t, forest, 1)
	require.Empty(t, forest[0].Children)
	require.Equal(t, []uint{1}, report.SelfParents)
}

func TestBuildBreaksLongerCycleAtFirstInputNode(t *testing.T) {
	forest, report := BuildWithReport([]Record{
		rec(3, ptr(2), 0, "C"),
		rec(1, ptr(3), 0, "A"),
		rec(2, ptr(1), 0, "B"),
		rec(4, nil, 1, "D"),
	})

	require.Equal(t, 4, forest.Count())
	require.Equal(t, []uint{3}, report.Cycles)
	require.Len(t, forest, 2)
	require.Equal(t, uint(3), forest[0].ID)
	require.Equal(t, uint(1), forest[0].Children[0].ID)
	require.Equal(t, uint(2), forest[0].Children[0].Children[0].ID)
	requireLevels(t, forest)
}

func TestBuildCycleReachedFromOutsideTail(t *testing.T) {
	// 4 hangs off the 1 -> 2 -> 1 cycle without being part of it.
	forest, report := BuildWithReport([]Record{
		rec(4, ptr(2), 0, "Tail"),
		rec(1, ptr(2), 0, "A"),
		rec(2, ptr(1), 0, "B"),
	})

	require.Equal(t, 3, forest.Count())
	require.Equal(t, []uint{1}, report.Cycles)
	root, ok := forest.Find(1)
	require.True(t, ok)
	require.Equal(t, 0, root.Level)
	tail, ok := forest.Find(4)
	require.True(t, ok)
	require.Equal(t, 2, tail.Level)
}

func TestBuildKeepsDuplicates(t *testing.T) {
	forest, report := BuildWithReport([]Record{
		rec(1, nil, 0, "First"),
		rec(1, nil, 1, "Second"),
		rec(2, ptr(1), 0, "Child"),
	})

	require.Equal(t, 3, forest.Count())
	require.Equal(t, []uint{1}, report.Duplicates)
	require.Equal(t, "First", forest[0].Label)
	require.Len(t, forest[0].Children, 1)
	require.Empty(t, forest[1].Children)
}

func TestBuildDoesNotAliasInput(t *testing.T) {
	input := []Record{{ID: 1, RoleIDs: []uint{7}, Active: true}}
	forest := Build(input)
	forest[0].RoleIDs[0] = 8

	require.Equal(t, uint(7), input[0].RoleIDs[0])
}

func TestForestHelpers(t *testing.T) {
	forest := Build([]Record{
		rec(1, nil, 0, "Root"),
		rec(2, ptr(1), 0, "Child"),
		rec(3, ptr(2), 0, "Grandchild"),
	})

	node, ok := forest.Find(3)
	require.True(t, ok)
	require.Equal(t, 2, node.Level)

	_, ok = forest.Find(10)
	require.False(t, ok)

	flat := forest.Flatten()
	require.Len(t, flat, 3)
	require.Equal(t, []uint{1, 2, 3}, []uint{flat[0].ID, flat[1].ID, flat[2].ID})

	clone := forest.Clone()
	clone[0].Label = "Changed"
	clone[0].Children[0].Label = "Changed"
	require.Equal(t, "Root", forest[0].Label)
	require.Equal(t, "Child", forest[0].Children[0].Label)
}
