package menutree

import "strings"

// Prune keeps every node for which keep returns true, plus the ancestors of kept nodes.
// The input forest is never modified.
func Prune(forest Forest, keep func(*Node) bool) Forest {
	out := Forest{}
	for _, node := range forest {
		children := Prune(node.Children, keep)
		if keep(node) || len(children) > 0 {
			out = append(out, cloneNode(node, children))
		}
	}
	return out
}

// Select walks the forest top-down. A rejected node hides its whole subtree.
// The input forest is never modified.
func Select(forest Forest, keep func(*Node) bool) Forest {
	out := Forest{}
	for _, node := range forest {
		if !keep(node) {
			continue
		}
		out = append(out, cloneNode(node, Select(node.Children, keep)))
	}
	return out
}

// Filter returns the nodes matching term (case-insensitive, against name, label and URL) together with
// their ancestors. Inactive nodes only match when includeInactive is set.
func Filter(forest Forest, term string, includeInactive bool) Forest {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" && includeInactive {
		return forest.Clone()
	}

	return Prune(forest, func(n *Node) bool {
		return Matches(n.Record, needle, includeInactive)
	})
}

// Matches reports whether a single record passes the search predicate. term must already be lower case.
func Matches(record Record, term string, includeInactive bool) bool {
	if !includeInactive && !record.Active {
		return false
	}
	if term == "" {
		return true
	}
	for _, field := range []string{record.Name, record.Label, record.URL} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
