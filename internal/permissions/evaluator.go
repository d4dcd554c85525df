package permissions

// Evaluator answers capability questions for one identity. It is immutable once built and safe for
// concurrent use. The zero value grants nothing.
type Evaluator struct {
	roles       []string
	permissions []string
	roleSet     map[string]struct{}
	permSet     map[string]struct{}
}

// NewEvaluator normalizes the given roles and permissions. Empty identifiers are dropped.
func NewEvaluator(roles, perms []Identifier) Evaluator {
	e := Evaluator{}
	e.roles, e.roleSet = collect(roles)
	e.permissions, e.permSet = collect(perms)
	return e
}

func collect(ids []Identifier) ([]string, map[string]struct{}) {
	names := make([]string, 0, len(ids))
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = ParseIdentifier(id)
		if !id.Valid() {
			continue
		}
		if _, seen := set[id.Name]; seen {
			continue
		}
		set[id.Name] = struct{}{}
		names = append(names, id.Name)
	}
	return names, set
}

// HasRole reports whether the identity holds the named role.
func (e Evaluator) HasRole(role string) bool {
	return contains(e.roleSet, role)
}

// HasPermission reports whether the identity holds the named permission.
func (e Evaluator) HasPermission(permission string) bool {
	return contains(e.permSet, permission)
}

// HasAnyRole reports whether the identity holds at least one of the roles. An empty list is false.
func (e Evaluator) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if e.HasRole(role) {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether the identity holds at least one of the permissions. An empty list is false.
func (e Evaluator) HasAnyPermission(perms ...string) bool {
	for _, perm := range perms {
		if e.HasPermission(perm) {
			return true
		}
	}
	return false
}

// Roles returns the normalized role names in first-seen order.
func (e Evaluator) Roles() []string {
	return append([]string(nil), e.roles...)
}

// Permissions returns the normalized permission names in first-seen order.
func (e Evaluator) Permissions() []string {
	return append([]string(nil), e.permissions...)
}

func contains(set map[string]struct{}, name string) bool {
	name = ParseIdentifier(name).Name
	if name == "" {
		return false
	}
	_, ok := set[name]
	return ok
}
