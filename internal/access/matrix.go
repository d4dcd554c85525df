package access

import (
	"sort"
	"strings"
	"sync"

	"github.com/charlesng35/hrconsole/internal/menutree"
)

type grants struct {
	roles       map[uint]struct{}
	permissions map[string]struct{}
}

func (g *grants) empty() bool {
	return len(g.roles) == 0 && len(g.permissions) == 0
}

// Matrix associates menus with the roles and permissions that unlock them. It is safe for concurrent use.
type Matrix struct {
	mu    sync.RWMutex
	menus map[uint]*grants
}

// NewMatrix returns an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{menus: make(map[uint]*grants)}
}

// FromRecords builds a matrix from the role and permission ids carried by menu records.
func FromRecords(records []menutree.Record) *Matrix {
	m := NewMatrix()
	for _, record := range records {
		m.Replace(record.ID, record.RoleIDs, record.PermissionIDs)
	}
	return m
}

func (m *Matrix) entry(menuID uint) *grants {
	g, ok := m.menus[menuID]
	if !ok {
		g = &grants{roles: make(map[uint]struct{}), permissions: make(map[string]struct{})}
		m.menus[menuID] = g
	}
	return g
}

// AttachRole grants roleID access to menuID. It returns false when the grant already existed.
func (m *Matrix) AttachRole(menuID, roleID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.entry(menuID)
	if _, ok := g.roles[roleID]; ok {
		return false
	}
	g.roles[roleID] = struct{}{}
	return true
}

// DetachRole removes roleID from menuID. It returns false when there was nothing to remove.
func (m *Matrix) DetachRole(menuID, roleID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.menus[menuID]
	if !ok {
		return false
	}
	if _, ok := g.roles[roleID]; !ok {
		return false
	}
	delete(g.roles, roleID)
	m.compact(menuID, g)
	return true
}

// AttachPermission grants permissionID access to menuID. It returns false when the grant already existed.
func (m *Matrix) AttachPermission(menuID uint, permissionID string) bool {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.entry(menuID)
	if _, ok := g.permissions[permissionID]; ok {
		return false
	}
	g.permissions[permissionID] = struct{}{}
	return true
}

// DetachPermission removes permissionID from menuID. It returns false when there was nothing to remove.
func (m *Matrix) DetachPermission(menuID uint, permissionID string) bool {
	permissionID = strings.TrimSpace(permissionID)

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.menus[menuID]
	if !ok {
		return false
	}
	if _, ok := g.permissions[permissionID]; !ok {
		return false
	}
	delete(g.permissions, permissionID)
	m.compact(menuID, g)
	return true
}

// Replace sets the complete role and permission sets of menuID, discarding previous grants.
func (m *Matrix) Replace(menuID uint, roleIDs []uint, permissionIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := &grants{
		roles:       make(map[uint]struct{}, len(roleIDs)),
		permissions: make(map[string]struct{}, len(permissionIDs)),
	}
	for _, id := range roleIDs {
		g.roles[id] = struct{}{}
	}
	for _, id := range permissionIDs {
		if id = strings.TrimSpace(id); id != "" {
			g.permissions[id] = struct{}{}
		}
	}

	if g.empty() {
		delete(m.menus, menuID)
		return
	}
	m.menus[menuID] = g
}

func (m *Matrix) compact(menuID uint, g *grants) {
	if g.empty() {
		delete(m.menus, menuID)
	}
}

// RoleIDs returns the sorted role ids granted on menuID.
func (m *Matrix) RoleIDs(menuID uint) []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []uint{}
	if g, ok := m.menus[menuID]; ok {
		for id := range g.roles {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionIDs returns the sorted permission ids granted on menuID.
func (m *Matrix) PermissionIDs(menuID uint) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []string{}
	if g, ok := m.menus[menuID]; ok {
		for id := range g.permissions {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// MenusForRole returns the sorted ids of menus granted to roleID.
func (m *Matrix) MenusForRole(roleID uint) []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []uint{}
	for menuID, g := range m.menus {
		if _, ok := g.roles[roleID]; ok {
			out = append(out, menuID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Restricted reports whether any role or permission grant exists for menuID.
func (m *Matrix) Restricted(menuID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.menus[menuID]
	return ok
}

// Apply returns copies of records with their role and permission ids taken from the matrix.
func (m *Matrix) Apply(records []menutree.Record) []menutree.Record {
	out := make([]menutree.Record, len(records))
	for i, record := range records {
		record.RoleIDs = m.RoleIDs(record.ID)
		record.PermissionIDs = m.PermissionIDs(record.ID)
		if record.ParentID != nil {
			pid := *record.ParentID
			record.ParentID = &pid
		}
		out[i] = record
	}
	return out
}
