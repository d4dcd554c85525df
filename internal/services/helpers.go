package services

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

// distinct keeps the first occurrence of each value that passes keep.
func distinct[T comparable](values []T, keep func(T) bool) []T {
	var out []T
	seen := make(map[T]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup || !keep(v) {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// normaliseIDs trims permission ids and drops blanks and repeats, preserving order.
func normaliseIDs(values []string) []string {
	trimmed := make([]string, len(values))
	for i, v := range values {
		trimmed[i] = strings.TrimSpace(v)
	}
	return distinct(trimmed, func(v string) bool { return v != "" })
}

// normaliseUintIDs drops zero and repeated row ids and sorts the rest.
func normaliseUintIDs(values []uint) []uint {
	out := distinct(values, func(v uint) bool { return v != 0 })
	slices.SortFunc(out, cmp.Compare[uint])
	return out
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
