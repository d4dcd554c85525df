package permissions

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Permission is one entry of the catalogue. DependsOn must be held alongside the permission for it
// to take effect; Implies is granted along with it.
type Permission struct {
	ID          string
	Name        string
	Module      string
	DependsOn   []string
	Implies     []string
	Description string
}

func (p *Permission) clone() *Permission {
	cp := *p
	cp.DependsOn = slices.Clone(p.DependsOn)
	cp.Implies = slices.Clone(p.Implies)
	return &cp
}

var (
	errNilPermission   = errors.New("permission: nil definition")
	errEmptyID         = errors.New("permission: id is required")
	errDuplicateID     = errors.New("permission: already registered")
	errSelfDependency  = errors.New("permission: cannot depend on itself")
	errSelfImplication = errors.New("permission: cannot imply itself")
)

// catalogue is a concurrency safe set of definitions. Reads hand out copies.
type catalogue struct {
	mu   sync.RWMutex
	defs map[string]*Permission
}

var registered = &catalogue{defs: make(map[string]*Permission)}

func (c *catalogue) add(perm *Permission) error {
	def, err := normalise(perm)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.defs[def.ID]; exists {
		return fmt.Errorf("%w: %s", errDuplicateID, def.ID)
	}
	c.defs[def.ID] = def
	return nil
}

func (c *catalogue) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.defs, id)
}

func (c *catalogue) get(id string) (*Permission, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	if !ok {
		return nil, false
	}
	return def.clone(), true
}

// filter returns copies of the definitions keep accepts, ordered by module then id.
func (c *catalogue) filter(keep func(*Permission) bool) []*Permission {
	c.mu.RLock()
	out := make([]*Permission, 0, len(c.defs))
	for _, def := range c.defs {
		if keep == nil || keep(def) {
			out = append(out, def.clone())
		}
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Permission) int {
		return cmp.Or(cmp.Compare(a.Module, b.Module), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func normalise(perm *Permission) (*Permission, error) {
	if perm == nil {
		return nil, errNilPermission
	}
	def := perm.clone()
	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		return nil, errEmptyID
	}
	def.Module = strings.TrimSpace(def.Module)
	if def.Name = strings.TrimSpace(def.Name); def.Name == "" {
		def.Name = def.ID
	}

	var err error
	if def.DependsOn, err = referenceList(def.DependsOn, def.ID, errSelfDependency); err != nil {
		return nil, err
	}
	if def.Implies, err = referenceList(def.Implies, def.ID, errSelfImplication); err != nil {
		return nil, err
	}
	return def, nil
}

// referenceList trims and deduplicates ids, rejecting a reference to self.
func referenceList(ids []string, self string, selfErr error) ([]string, error) {
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		switch {
		case id == "" || slices.Contains(out, id):
			continue
		case id == self:
			return nil, selfErr
		}
		out = append(out, id)
	}
	return out, nil
}

// Register adds perm to the catalogue. Ids are unique.
func Register(perm *Permission) error {
	return registered.add(perm)
}

// Get returns a copy of the definition of id.
func Get(id string) (*Permission, bool) {
	return registered.get(id)
}

// GetAll returns copies of every definition keyed by id.
func GetAll() map[string]*Permission {
	all := registered.filter(nil)
	out := make(map[string]*Permission, len(all))
	for _, def := range all {
		out[def.ID] = def
	}
	return out
}

// GetByModule returns the definitions of one module ordered by id.
func GetByModule(module string) []*Permission {
	module = strings.TrimSpace(module)
	return registered.filter(func(p *Permission) bool { return p.Module == module })
}

// List returns every definition ordered by module then id.
func List() []*Permission {
	return registered.filter(nil)
}

// ValidateDependencies checks that every reference names a registered permission and that
// DependsOn has no cycle.
func ValidateDependencies() error {
	r := newResolver()
	ids := make([]string, 0, len(r.defs))
	for id, perm := range r.defs {
		for _, implied := range perm.Implies {
			if _, ok := r.defs[implied]; !ok {
				return fmt.Errorf("permission: %s implies unknown permission %s", id, implied)
			}
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := r.visit(id); err != nil {
			return err
		}
	}
	return nil
}
