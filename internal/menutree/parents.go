package menutree

import "errors"

// DefaultMaxDepth is the deepest level a menu may sit at. Roots are level 0.
const DefaultMaxDepth = 2

var (
	ErrSelfParent     = errors.New("menu cannot be its own parent")
	ErrParentNotFound = errors.New("parent menu not found")
	ErrCycle          = errors.New("parent menu is a descendant of the menu")
	ErrDepthExceeded  = errors.New("menu hierarchy too deep")
)

// EligibleParents lists the nodes menuID may be moved under without creating a cycle or exceeding maxDepth.
// A menuID of zero stands for a menu that does not exist yet. Returned nodes carry no children.
func EligibleParents(forest Forest, menuID uint, maxDepth int) []*Node {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	subtree := 0
	if menuID != 0 {
		if self, ok := forest.Find(menuID); ok {
			subtree = height(self)
		}
	}

	var out []*Node
	forest.Walk(func(n *Node) bool {
		if menuID != 0 && n.ID == menuID {
			return false
		}
		if n.Level+1+subtree <= maxDepth {
			out = append(out, cloneNode(n, nil))
		}
		return true
	})
	return out
}

// ValidateParent checks that menuID may take parentID as its parent. A nil parentID places the menu at the root.
func ValidateParent(forest Forest, menuID uint, parentID *uint, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	subtree := 0
	var self *Node
	if menuID != 0 {
		if n, ok := forest.Find(menuID); ok {
			self = n
			subtree = height(n)
		}
	}

	if parentID == nil {
		if subtree > maxDepth {
			return ErrDepthExceeded
		}
		return nil
	}

	if menuID != 0 && *parentID == menuID {
		return ErrSelfParent
	}

	parent, ok := forest.Find(*parentID)
	if !ok {
		return ErrParentNotFound
	}

	if self != nil {
		if _, inside := Forest(self.Children).Find(*parentID); inside {
			return ErrCycle
		}
	}

	if parent.Level+1+subtree > maxDepth {
		return ErrDepthExceeded
	}
	return nil
}
