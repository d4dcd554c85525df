package menutree

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/metrics"
)

// Record is a flat menu entry as exchanged with the REST backend.
type Record struct {
	ID            uint     `json:"id"`
	ParentID      *uint    `json:"parent_id"`
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	URL           string   `json:"url,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	Order         int      `json:"menu_order"`
	Active        bool     `json:"is_active"`
	RoleIDs       []uint   `json:"role_ids"`
	PermissionIDs []string `json:"permission_ids"`
}

// IsRoot reports whether the record declares no parent.
func (r Record) IsRoot() bool {
	return r.ParentID == nil
}

// Node is a menu entry placed in the hierarchy.
type Node struct {
	Record
	Level    int     `json:"level"`
	Children []*Node `json:"children"`
}

// Forest is an ordered list of root nodes.
type Forest []*Node

// Report lists the records Build had to repair.
type Report struct {
	Orphans     []uint `json:"orphans,omitempty"`
	SelfParents []uint `json:"self_parents,omitempty"`
	Cycles      []uint `json:"cycles,omitempty"`
	Duplicates  []uint `json:"duplicates,omitempty"`
}

// Clean reports whether the input needed no repair.
func (r Report) Clean() bool {
	return len(r.Orphans) == 0 && len(r.SelfParents) == 0 && len(r.Cycles) == 0 && len(r.Duplicates) == 0
}

const noParent = -1

// Build assembles records into a forest. It never fails: broken parent references are promoted to roots.
func Build(records []Record) Forest {
	forest, _ := BuildWithReport(records)
	return forest
}

// BuildWithReport assembles records into a forest and describes every repair it made.
func BuildWithReport(records []Record) (Forest, Report) {
	log := logger.WithModule("menutree")
	var report Report

	nodes := make([]*Node, len(records))
	index := make(map[uint]int, len(records))
	for i, record := range records {
		nodes[i] = &Node{Record: cloneRecord(record), Children: []*Node{}}
		if _, exists := index[record.ID]; exists {
			report.Duplicates = append(report.Duplicates, record.ID)
			log.Warn("duplicate menu id", zap.Uint("menu_id", record.ID))
			continue
		}
		index[record.ID] = i
	}

	parents := make([]int, len(nodes))
	for i, node := range nodes {
		parents[i] = noParent
		if node.ParentID == nil {
			continue
		}

		pid := *node.ParentID
		switch idx, ok := index[pid]; {
		case pid == node.ID:
			report.SelfParents = append(report.SelfParents, node.ID)
			metrics.MenuTreeAnomalies.WithLabelValues("self_parent").Inc()
			log.Warn("menu references itself as parent", zap.Uint("menu_id", node.ID))
		case !ok:
			report.Orphans = append(report.Orphans, node.ID)
			metrics.MenuTreeAnomalies.WithLabelValues("orphan").Inc()
			log.Warn("orphaned parent reference",
				zap.Uint("menu_id", node.ID),
				zap.Uint("parent_id", pid),
			)
		default:
			parents[i] = idx
		}
	}

	for _, i := range breakCycles(parents) {
		report.Cycles = append(report.Cycles, nodes[i].ID)
		metrics.MenuTreeAnomalies.WithLabelValues("cycle").Inc()
		log.Warn("menu parent chain forms a cycle", zap.Uint("menu_id", nodes[i].ID))
	}

	var forest Forest
	for i, node := range nodes {
		if parents[i] == noParent {
			forest = append(forest, node)
			continue
		}
		parent := nodes[parents[i]]
		parent.Children = append(parent.Children, node)
	}

	sortSiblings(forest)
	assignLevels(forest, 0)

	return forest, report
}

// breakCycles detaches the first node of every parent cycle, in input order, and returns the detached indexes.
func breakCycles(parents []int) []int {
	const (
		unknown = iota
		visiting
		settled
	)

	state := make([]int, len(parents))
	var broken []int

	for start := range parents {
		if state[start] == settled {
			continue
		}

		var path []int
		current := start
		for current != noParent && state[current] == unknown {
			state[current] = visiting
			path = append(path, current)
			current = parents[current]
		}

		if current != noParent && state[current] == visiting {
			// current is the first node of the cycle reached from start; the earliest input index wins.
			head := current
			for next := parents[current]; next != current; next = parents[next] {
				if next < head {
					head = next
				}
			}
			parents[head] = noParent
			broken = append(broken, head)
		}

		for _, idx := range path {
			state[idx] = settled
		}
	}

	slices.Sort(broken)
	return broken
}

func sortSiblings(nodes []*Node) {
	slices.SortStableFunc(nodes, func(a, b *Node) int {
		return cmp.Compare(a.Order, b.Order)
	})
	for _, node := range nodes {
		sortSiblings(node.Children)
	}
}

func assignLevels(nodes []*Node, level int) {
	for _, node := range nodes {
		node.Level = level
		assignLevels(node.Children, level+1)
	}
}

func cloneRecord(record Record) Record {
	cp := record
	if record.ParentID != nil {
		pid := *record.ParentID
		cp.ParentID = &pid
	}
	if record.RoleIDs != nil {
		cp.RoleIDs = append([]uint{}, record.RoleIDs...)
	}
	if record.PermissionIDs != nil {
		cp.PermissionIDs = append([]string{}, record.PermissionIDs...)
	}
	return cp
}

// Count returns the number of nodes in the forest.
func (f Forest) Count() int {
	total := 0
	f.Walk(func(*Node) bool {
		total++
		return true
	})
	return total
}

// Walk visits nodes depth-first in sibling order. Returning false from fn skips the node's children.
func (f Forest) Walk(fn func(*Node) bool) {
	for _, node := range f {
		if fn(node) {
			Forest(node.Children).Walk(fn)
		}
	}
}

// Find returns the node with the given id.
func (f Forest) Find(id uint) (*Node, bool) {
	var found *Node
	f.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Flatten returns every node's record in depth-first order.
func (f Forest) Flatten() []Record {
	var out []Record
	f.Walk(func(n *Node) bool {
		out = append(out, cloneRecord(n.Record))
		return true
	})
	return out
}

// Clone returns a deep copy of the forest.
func (f Forest) Clone() Forest {
	if f == nil {
		return nil
	}
	out := make(Forest, len(f))
	for i, node := range f {
		out[i] = cloneNode(node, Forest(node.Children).Clone())
	}
	return out
}

func cloneNode(node *Node, children Forest) *Node {
	if children == nil {
		children = Forest{}
	}
	return &Node{
		Record:   cloneRecord(node.Record),
		Level:    node.Level,
		Children: children,
	}
}

// height returns the number of levels below n.
func height(n *Node) int {
	max := 0
	for _, child := range n.Children {
		if h := height(child) + 1; h > max {
			max = h
		}
	}
	return max
}
