package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownPermission indicates a lookup of an identifier missing from the catalogue.
	ErrUnknownPermission = errors.New("permission: unknown permission")
	// ErrCircularDependency signals that the depends_on graph contains a cycle.
	ErrCircularDependency = errors.New("permission: circular dependency detected")
)

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// resolver walks the depends_on graph of one catalogue snapshot.
type resolver struct {
	defs  map[string]*Permission
	state map[string]visitState
	path  []string
	out   map[string]struct{}
}

func newResolver() *resolver {
	defs := GetAll()
	return &resolver{
		defs:  defs,
		state: make(map[string]visitState, len(defs)),
		out:   make(map[string]struct{}),
	}
}

func (r *resolver) visit(id string) error {
	perm, ok := r.defs[id]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownPermission, id)
	}

	switch r.state[id] {
	case visited:
		return nil
	case visiting:
		return fmt.Errorf("%w: %s -> %s", ErrCircularDependency, strings.Join(r.path, " -> "), id)
	}

	r.state[id] = visiting
	r.path = append(r.path, id)
	for _, dep := range perm.DependsOn {
		if err := r.visit(dep); err != nil {
			return err
		}
		r.out[dep] = struct{}{}
	}
	r.path = r.path[:len(r.path)-1]
	r.state[id] = visited
	return nil
}

func (r *resolver) sorted() []string {
	ids := make([]string, 0, len(r.out))
	for id := range r.out {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveDependencies returns the sorted transitive dependencies of a permission, excluding itself.
func ResolveDependencies(permissionID string) ([]string, error) {
	r := newResolver()
	if err := r.visit(permissionID); err != nil {
		return nil, err
	}
	delete(r.out, permissionID)
	return r.sorted(), nil
}

// Closure returns the given permissions together with everything they depend on, sorted and
// deduplicated. Blank identifiers are skipped.
func Closure(ids []string) ([]string, error) {
	r := newResolver()
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := r.visit(id); err != nil {
			return nil, err
		}
		r.out[id] = struct{}{}
	}
	return r.sorted(), nil
}
