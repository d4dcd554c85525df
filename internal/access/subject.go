package access

import (
	"github.com/charlesng35/hrconsole/internal/menutree"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

// Subject is an authenticated identity asking for menu access.
type Subject struct {
	Root      bool
	RoleIDs   []uint
	Evaluator permissions.Evaluator
}

// Allowed reports whether subject may see menuID. Menus without grants are open to every authenticated
// subject; restricted menus need one of their roles or one of their permissions.
func (m *Matrix) Allowed(menuID uint, subject Subject) bool {
	if subject.Root {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.menus[menuID]
	if !ok {
		return true
	}

	for _, roleID := range subject.RoleIDs {
		if _, granted := g.roles[roleID]; granted {
			return true
		}
	}
	for id := range g.permissions {
		if subject.Evaluator.HasPermission(id) {
			return true
		}
	}
	return false
}

// Visible returns the active menus subject may open. An inactive or inaccessible menu hides its subtree.
func Visible(forest menutree.Forest, matrix *Matrix, subject Subject) menutree.Forest {
	return menutree.Select(forest, func(n *menutree.Node) bool {
		return n.Active && matrix.Allowed(n.ID, subject)
	})
}
